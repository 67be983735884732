package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SourceType identifies what a scan path points at.
type SourceType string

const (
	SourceFile  SourceType = "file"
	SourceTable SourceType = "table"
)

// ParseSourceType converts user input to a SourceType.
func ParseSourceType(s string) (SourceType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "file":
		return SourceFile, nil
	case "table":
		return SourceTable, nil
	default:
		return "", fmt.Errorf("unknown source type %q (expected file or table)", s)
	}
}

// Severity of a detected issue.
type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

// ScanRequest is the body of POST /api/scan.
type ScanRequest struct {
	Path string     `json:"path"`
	Type SourceType `json:"type"`
}

// NewScanRequest validates and builds a ScanRequest.
func NewScanRequest(path string, st SourceType) (ScanRequest, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return ScanRequest{}, PreconditionViolation("scan path is empty")
	}
	if st == "" {
		st = SourceFile
	}
	if st != SourceFile && st != SourceTable {
		return ScanRequest{}, PreconditionViolation("unknown source type %q", st)
	}
	return ScanRequest{Path: path, Type: st}, nil
}

// Issue is a single data-quality finding.
type Issue struct {
	Type     string   `json:"type"`
	Severity Severity `json:"severity"`
	Details  string   `json:"details"`
	Column   string   `json:"column,omitempty"`
}

// QualityResults holds the score and findings of a scan.
type QualityResults struct {
	DQScore  float64 `json:"dq_score"`
	RowCount int64   `json:"row_count,omitempty"`
	Issues   []Issue `json:"issues"`
}

// ScanResult is the response of POST /api/scan.
type ScanResult struct {
	ScanID     string         `json:"scan_id"`
	Results    QualityResults `json:"results"`
	Analysis   Analysis       `json:"analysis"`
	ReportPath string         `json:"report_path"`
}

// Analysis is the analyzer payload. It is kept verbatim so that every report
// view receives exactly what the server sent; accessors read single fields.
type Analysis struct {
	raw json.RawMessage
}

// NewAnalysis wraps a raw JSON object.
func NewAnalysis(raw []byte) Analysis {
	return Analysis{raw: append(json.RawMessage(nil), raw...)}
}

func (a *Analysis) UnmarshalJSON(data []byte) error {
	a.raw = append(a.raw[:0], data...)
	return nil
}

func (a Analysis) MarshalJSON() ([]byte, error) {
	if len(a.raw) == 0 {
		return []byte("null"), nil
	}
	return a.raw, nil
}

// Raw returns the payload bytes as received.
func (a Analysis) Raw() json.RawMessage {
	return a.raw
}

// Field returns a top-level string field, or "" if absent or not a string.
func (a Analysis) Field(name string) string {
	if len(a.raw) == 0 || bytes.Equal(a.raw, []byte("null")) {
		return ""
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(a.raw, &fields); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(fields[name], &s); err != nil {
		return ""
	}
	return s
}

// Summary returns the executive summary.
func (a Analysis) Summary() string { return a.Field("summary") }

// PipelineHealth returns the pipeline health label.
func (a Analysis) PipelineHealth() string { return a.Field("pipeline_health") }

// Status is the response of GET /api/status.
type Status struct {
	Status string `json:"status,omitempty"`
	Model  string `json:"model"`
}

// Catalog is the top level of the metadata hierarchy.
type Catalog struct {
	Name    string `json:"name"`
	Comment string `json:"comment,omitempty"`
}

// CatalogList is the response of GET /api/catalogs.
type CatalogList struct {
	Catalogs []Catalog `json:"catalogs"`
	Mock     bool      `json:"mock"`
}

// Schema is the middle level of the metadata hierarchy.
type Schema struct {
	Name    string `json:"name"`
	Comment string `json:"comment,omitempty"`
}

type schemaList struct {
	Schemas []Schema `json:"schemas"`
}

// Table is a leaf of the metadata hierarchy.
type Table struct {
	Name             string `json:"name"`
	TableType        string `json:"table_type"`
	DataSourceFormat string `json:"data_source_format"`
}

type tableList struct {
	Tables []Table `json:"tables"`
}

// Column describes one column of a table.
type Column struct {
	Name     string `json:"name"`
	TypeName string `json:"type_name"`
	Nullable bool   `json:"nullable"`
}

// TableDetail is the response of the table detail endpoint.
type TableDetail struct {
	FullName         string   `json:"full_name"`
	Comment          string   `json:"comment"`
	TableType        string   `json:"table_type"`
	DataSourceFormat string   `json:"data_source_format"`
	Owner            string   `json:"owner"`
	Columns          []Column `json:"columns"`
}

// Artifact is a generated fix-it notebook.
type Artifact struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type scanIDRequest struct {
	ScanID string `json:"scan_id"`
}

// UploadRequest is the body of POST /api/upload-notebook.
type UploadRequest struct {
	ScanID        string `json:"scan_id"`
	WorkspacePath string `json:"workspace_path,omitempty"`
}

// UploadResult is either a workspace location or an error message, never
// both.
type UploadResult struct {
	WorkspacePath string `json:"workspace_path,omitempty"`
	WorkspaceURL  string `json:"workspace_url,omitempty"`
	Error         string `json:"error,omitempty"`
}

// OK reports whether the upload succeeded.
func (r *UploadResult) OK() bool {
	return r != nil && r.Error == "" && r.WorkspacePath != ""
}

func (r *UploadResult) validate() error {
	hasPath := r.WorkspacePath != ""
	hasErr := r.Error != ""
	switch {
	case hasPath && hasErr:
		return fmt.Errorf("upload response carries both workspace_path and error")
	case !hasPath && !hasErr:
		return fmt.Errorf("upload response carries neither workspace_path nor error")
	}
	return nil
}
