package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 30 * time.Second

	requestIDHeader = "X-Request-ID"
)

// Client talks to the data-quality backend. Every method issues exactly one
// HTTP request and holds no state between calls.
type Client struct {
	httpc  *resty.Client
	logger *slog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpc.SetTimeout(d)
		}
	}
}

// WithToken sends a bearer token with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		if token != "" {
			c.httpc.SetAuthToken(token)
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpc := resty.New()
	httpc.SetBaseURL(strings.TrimRight(baseURL, "/"))
	httpc.SetTimeout(DefaultTimeout)
	httpc.SetHeader("Accept", "application/json")

	c := &Client{
		httpc:  httpc,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status probes the backend.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var out Status
	if _, err := c.do(ctx, "status", http.MethodGet, "/api/status", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Scan runs a data-quality scan and waits for its result.
func (c *Client) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	var out ScanResult
	if _, err := c.do(ctx, "scan", http.MethodPost, "/api/scan", nil, req, &out); err != nil {
		return nil, err
	}
	if out.ScanID == "" {
		return nil, &TransportError{Op: "scan", Err: fmt.Errorf("response has no scan_id")}
	}
	return &out, nil
}

// Report fetches the markdown report of a scan.
func (c *Client) Report(ctx context.Context, scanID string) (string, error) {
	body, err := c.do(ctx, "report", http.MethodGet, "/api/report/{scan_id}",
		map[string]string{"scan_id": scanID}, nil, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ListCatalogs lists catalogs and whether the server is serving demo data.
func (c *Client) ListCatalogs(ctx context.Context) (*CatalogList, error) {
	var out CatalogList
	if _, err := c.do(ctx, "list catalogs", http.MethodGet, "/api/catalogs", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSchemas lists the schemas of a catalog.
func (c *Client) ListSchemas(ctx context.Context, catalog string) ([]Schema, error) {
	var out schemaList
	if _, err := c.do(ctx, "list schemas", http.MethodGet, "/api/catalogs/{catalog}/schemas",
		map[string]string{"catalog": catalog}, nil, &out); err != nil {
		return nil, err
	}
	return out.Schemas, nil
}

// ListTables lists the tables of a schema.
func (c *Client) ListTables(ctx context.Context, catalog, schema string) ([]Table, error) {
	var out tableList
	if _, err := c.do(ctx, "list tables", http.MethodGet, "/api/catalogs/{catalog}/schemas/{schema}/tables",
		map[string]string{"catalog": catalog, "schema": schema}, nil, &out); err != nil {
		return nil, err
	}
	return out.Tables, nil
}

// TableDetail fetches column-level metadata of one table.
func (c *Client) TableDetail(ctx context.Context, catalog, schema, table string) (*TableDetail, error) {
	var out TableDetail
	if _, err := c.do(ctx, "table detail", http.MethodGet, "/api/catalogs/{catalog}/schemas/{schema}/tables/{table}",
		map[string]string{"catalog": catalog, "schema": schema, "table": table}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateFixIt asks the backend to generate a remediation notebook.
func (c *Client) GenerateFixIt(ctx context.Context, scanID string) (*Artifact, error) {
	var out Artifact
	if _, err := c.do(ctx, "generate fix-it", http.MethodPost, "/api/generate-fixit", nil,
		scanIDRequest{ScanID: scanID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadNotebook publishes the last generated notebook of a scan. A 2xx
// response carrying an error payload is returned as a result, not an error.
func (c *Client) UploadNotebook(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	var out UploadResult
	if _, err := c.do(ctx, "upload notebook", http.MethodPost, "/api/upload-notebook", nil, req, &out); err != nil {
		return nil, err
	}
	if err := out.validate(); err != nil {
		return nil, &TransportError{Op: "upload notebook", Err: err}
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, pathParams map[string]string, body, out any) ([]byte, error) {
	reqID := uuid.NewString()
	req := c.httpc.R().
		SetContext(ctx).
		SetHeader(requestIDHeader, reqID)
	if pathParams != nil {
		req.SetPathParams(pathParams)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	start := time.Now()
	resp, err := req.Execute(method, path)
	if err != nil {
		c.logger.Warn("request failed", "op", op, "path", path, "request_id", reqID, "error", err)
		return nil, &TransportError{Op: op, Err: err}
	}
	c.logger.Debug("http request",
		"op", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode(),
		"request_id", reqID,
		"duration", time.Since(start),
	)

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, &RequestRejected{
			Op:         op,
			StatusCode: resp.StatusCode(),
			Message:    errorMessage(resp.Body()),
		}
	}

	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return nil, &TransportError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
		}
	}
	return resp.Body(), nil
}

// errorMessage extracts a server message from an error body. The backend
// uses {"detail": ...}; the upload endpoint may use {"error": ...}.
func errorMessage(body []byte) string {
	var payload struct {
		Detail any    `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}
	if s, ok := payload.Detail.(string); ok && s != "" {
		return s
	}
	if payload.Error != "" {
		return payload.Error
	}
	if payload.Detail != nil {
		b, _ := json.Marshal(payload.Detail)
		return string(b)
	}
	return ""
}
