package demo

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dqguardrail/guardrail/internal/catalog"
	"github.com/dqguardrail/guardrail/internal/remote"
	"github.com/dqguardrail/guardrail/internal/report"
)

const defaultWorkspaceDir = "/Shared/DataQualityReports/"

type scanRequest struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

type scanResponse struct {
	ScanID     string                `json:"scan_id"`
	Status     string                `json:"status"`
	Results    remote.QualityResults `json:"results"`
	Analysis   remote.Analysis       `json:"analysis"`
	ReportPath string                `json:"report_path"`
}

type scanIDRequest struct {
	ScanID        string `json:"scan_id"`
	WorkspacePath string `json:"workspace_path,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, remote.Status{Status: "online", Model: s.model})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	path := strings.TrimSpace(req.Path)
	if path == "" {
		errorResponse(w, http.StatusUnprocessableEntity, "path is required")
		return
	}
	st, err := remote.ParseSourceType(req.Type)
	if err != nil {
		errorResponse(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ds := s.datasetFor(path, st)
	results := profile(ds)
	a := analyze(results, path)
	now := s.now()
	id := s.newID()

	rec := &scanRecord{
		source:     path,
		results:    results,
		analysis:   a,
		report:     renderReport(results, a, now),
		reportPath: fmt.Sprintf("outputs/reports/dq_report_%s.md", now.Format("20060102_150405")),
	}
	if s.reportDir != "" {
		rec.reportPath = filepath.Join(s.reportDir, fmt.Sprintf("dq_report_%s.md", id))
		if err := report.WriteText(rec.reportPath, rec.report); err != nil {
			s.logger.Error("writing report", "path", rec.reportPath, "error", err)
			errorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	s.mu.Lock()
	s.scans[id] = rec
	s.mu.Unlock()

	s.logger.Info("scan complete", "scan_id", id, "path", path, "type", st, "dq_score", results.DQScore, "issues", len(results.Issues))
	jsonResponse(w, http.StatusOK, scanResponse{
		ScanID:     id,
		Status:     "complete",
		Results:    results,
		Analysis:   a.raw(),
		ReportPath: rec.reportPath,
	})
}

// datasetFor picks the rows to profile. Catalog tables get synthetic rows;
// anything else falls back to the sample dataset.
func (s *Server) datasetFor(path string, st remote.SourceType) *dataset {
	if path == "sample" {
		return sampleDataset()
	}
	if st == remote.SourceTable {
		c, sc, t, err := catalog.SplitTableKey(path)
		if err == nil {
			if _, ok := lookupTable(c, sc, t); ok {
				return tableDataset(path, tableDetail(c, sc, t).Columns)
			}
		}
		s.logger.Warn("table not in demo catalog, using sample data", "path", path)
		return sampleDataset()
	}
	s.logger.Info("unknown path, using sample data", "path", path)
	return sampleDataset()
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(r.PathValue("scan_id"))
	if !ok {
		errorResponse(w, http.StatusNotFound, "Scan not found")
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(rec.report))
}

func (s *Server) handleListCatalogs(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, remote.CatalogList{Catalogs: demoCatalogs, Mock: true})
}

func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	schemas := demoSchemas[r.PathValue("catalog")]
	if schemas == nil {
		schemas = []remote.Schema{}
	}
	jsonResponse(w, http.StatusOK, map[string]any{"schemas": schemas, "mock": true})
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables := demoTables[catalog.SchemaKey(r.PathValue("catalog"), r.PathValue("schema"))]
	if tables == nil {
		tables = []remote.Table{}
	}
	jsonResponse(w, http.StatusOK, map[string]any{"tables": tables, "mock": true})
}

func (s *Server) handleTableDetail(w http.ResponseWriter, r *http.Request) {
	c, sc, t := r.PathValue("catalog"), r.PathValue("schema"), r.PathValue("table")
	if _, ok := lookupTable(c, sc, t); !ok {
		errorResponse(w, http.StatusNotFound, "Table not found")
		return
	}
	jsonResponse(w, http.StatusOK, tableDetail(c, sc, t))
}

func (s *Server) handleGenerateFixIt(w http.ResponseWriter, r *http.Request) {
	var req scanIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec, ok := s.lookup(req.ScanID)
	if !ok {
		errorResponse(w, http.StatusNotFound, "Scan not found")
		return
	}

	target := "table_name"
	if _, _, _, err := catalog.SplitTableKey(rec.source); err == nil {
		target = rec.source
	}
	art := &remote.Artifact{
		Filename: fmt.Sprintf("fixit_%s.py", req.ScanID),
		Content:  renderNotebook(rec.results, rec.analysis, target),
	}

	s.mu.Lock()
	rec.notebook = art
	s.mu.Unlock()

	s.logger.Info("fix-it generated", "scan_id", req.ScanID, "filename", art.Filename)
	jsonResponse(w, http.StatusOK, art)
}

func (s *Server) handleUploadNotebook(w http.ResponseWriter, r *http.Request) {
	var req scanIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec, ok := s.lookup(req.ScanID)
	if !ok {
		errorResponse(w, http.StatusNotFound, "Scan not found")
		return
	}
	s.mu.Lock()
	art := rec.notebook
	s.mu.Unlock()
	if art == nil {
		errorResponse(w, http.StatusBadRequest, "No notebook generated yet. Generate a Fix-It notebook first.")
		return
	}

	if s.uploadError != "" {
		s.logger.Warn("upload failed", "scan_id", req.ScanID, "error", s.uploadError)
		jsonResponse(w, http.StatusOK, remote.UploadResult{Error: s.uploadError})
		return
	}

	dest := req.WorkspacePath
	switch {
	case dest == "":
		dest = defaultWorkspaceDir + art.Filename
	case strings.HasSuffix(dest, "/"):
		dest += art.Filename
	}
	s.logger.Info("notebook uploaded", "scan_id", req.ScanID, "path", dest)
	jsonResponse(w, http.StatusOK, remote.UploadResult{
		WorkspacePath: dest,
		WorkspaceURL:  s.workspaceHost + "#workspace" + dest,
	})
}
