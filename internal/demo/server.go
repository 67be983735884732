package demo

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dqguardrail/guardrail/internal/remote"
)

// DefaultModel is reported by /api/status when no model is configured.
const DefaultModel = "Mock Mode (Demo)"

// Server is an in-process backend serving the scan API from synthetic data.
type Server struct {
	logger        *slog.Logger
	port          int
	server        *http.Server
	model         string
	token         string
	workspaceHost string
	uploadError   string
	reportDir     string
	newID         func() string
	now           func() time.Time

	mu    sync.Mutex
	scans map[string]*scanRecord
}

type scanRecord struct {
	source     string
	results    remote.QualityResults
	analysis   analysis
	report     string
	reportPath string
	notebook   *remote.Artifact
}

// Option configures the demo server.
type Option func(*Server)

// WithModel sets the model name reported by /api/status.
func WithModel(name string) Option {
	return func(s *Server) {
		s.model = name
	}
}

// WithToken requires a bearer token on every request.
func WithToken(token string) Option {
	return func(s *Server) {
		s.token = token
	}
}

// WithWorkspaceHost sets the host used to build workspace URLs.
func WithWorkspaceHost(host string) Option {
	return func(s *Server) {
		s.workspaceHost = host
	}
}

// WithUploadError makes every upload answer with the given error payload.
func WithUploadError(msg string) Option {
	return func(s *Server) {
		s.uploadError = msg
	}
}

// WithReportDir persists generated reports under dir.
func WithReportDir(dir string) Option {
	return func(s *Server) {
		s.reportDir = dir
	}
}

// WithIDGenerator overrides scan ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Server) {
		s.newID = fn
	}
}

// New creates a demo server.
func New(logger *slog.Logger, port int, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		logger:        logger,
		port:          port,
		model:         DefaultModel,
		workspaceHost: "https://demo.cloud.databricks.com",
		newID:         uuid.NewString,
		now:           time.Now,
		scans:         make(map[string]*scanRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	var handler http.Handler = mux
	if s.token != "" {
		handler = requireToken(s.token, handler)
	}
	return requestLogger(s.logger, handler)
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", s.port, err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	s.logger.Info("starting demo backend", "addr", ln.Addr().String(), "model", s.model)
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/scan", s.handleScan)
	mux.HandleFunc("GET /api/report/{scan_id}", s.handleReport)
	mux.HandleFunc("GET /api/catalogs", s.handleListCatalogs)
	mux.HandleFunc("GET /api/catalogs/{catalog}/schemas", s.handleListSchemas)
	mux.HandleFunc("GET /api/catalogs/{catalog}/schemas/{schema}/tables", s.handleListTables)
	mux.HandleFunc("GET /api/catalogs/{catalog}/schemas/{schema}/tables/{table}", s.handleTableDetail)
	mux.HandleFunc("POST /api/generate-fixit", s.handleGenerateFixIt)
	mux.HandleFunc("POST /api/upload-notebook", s.handleUploadNotebook)
}

func (s *Server) lookup(scanID string) (*scanRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.scans[scanID]
	return rec, ok
}
