package patch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dqguardrail/guardrail/internal/remote"
)

// ErrUploadFailed is wrapped by Upload when the backend answered with an
// error payload.
var ErrUploadFailed = errors.New("notebook upload failed")

// Stage is the position of a scan in the fix-it workflow.
type Stage int

const (
	NoArtifact Stage = iota
	Generated
	Uploaded
	UploadFailed
)

func (s Stage) String() string {
	switch s {
	case NoArtifact:
		return "no artifact"
	case Generated:
		return "generated"
	case Uploaded:
		return "uploaded"
	case UploadFailed:
		return "upload failed"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Client is the subset of the backend API used by the workflow.
type Client interface {
	GenerateFixIt(ctx context.Context, scanID string) (*remote.Artifact, error)
	UploadNotebook(ctx context.Context, req remote.UploadRequest) (*remote.UploadResult, error)
}

// ScanGate reports whether a scan ID belongs to a completed scan.
type ScanGate interface {
	HasCompleted(scanID string) bool
}

// Status is a snapshot of one scan's workflow.
type Status struct {
	ScanID      string
	Stage       Stage
	Artifact    *remote.Artifact
	Upload      *remote.UploadResult
	Err         error
	Generations int
}

type entry struct {
	stage       Stage
	artifact    *remote.Artifact
	upload      *remote.UploadResult
	err         error
	generations int
}

// Workflow sequences notebook generation and upload per scan.
type Workflow struct {
	client        Client
	gate          ScanGate
	logger        *slog.Logger
	workspacePath string

	mu      sync.Mutex
	entries map[string]*entry
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithWorkspacePath sets the upload destination sent to the backend.
func WithWorkspacePath(path string) Option {
	return func(w *Workflow) {
		w.workspacePath = path
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		w.logger = logger
	}
}

// New creates a workflow. A nil gate accepts any non-empty scan ID.
func New(client Client, gate ScanGate, opts ...Option) *Workflow {
	w := &Workflow{
		client:  client,
		gate:    gate,
		logger:  slog.Default(),
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Generate asks the backend for a fresh notebook. Each call yields an
// independent artifact; the latest success replaces the current one. A
// failure keeps the previous artifact.
func (w *Workflow) Generate(ctx context.Context, scanID string) (*remote.Artifact, error) {
	scanID = strings.TrimSpace(scanID)
	if scanID == "" {
		return nil, remote.PreconditionViolation("generate requires a scan id")
	}
	if w.gate != nil && !w.gate.HasCompleted(scanID) {
		return nil, remote.PreconditionViolation("scan %s has not completed", scanID)
	}

	art, err := w.client.GenerateFixIt(ctx, scanID)

	w.mu.Lock()
	defer w.mu.Unlock()
	e := w.entry(scanID)
	if err != nil {
		e.err = err
		w.logger.Warn("fix-it generation failed", "scan_id", scanID, "error", err)
		return nil, fmt.Errorf("generating fix-it for %s: %w", scanID, err)
	}
	e.artifact = art
	e.stage = Generated
	e.upload = nil
	e.err = nil
	e.generations++
	w.logger.Info("fix-it generated", "scan_id", scanID, "filename", art.Filename, "bytes", len(art.Content))
	return art, nil
}

// Upload publishes the current artifact of scanID. Without an artifact it
// fails with a precondition error before any request is made. Whenever a
// request was made the returned result is non-nil; err is non-nil unless the
// upload succeeded.
func (w *Workflow) Upload(ctx context.Context, scanID string) (*remote.UploadResult, error) {
	scanID = strings.TrimSpace(scanID)

	w.mu.Lock()
	e, ok := w.entries[scanID]
	if !ok || e.artifact == nil {
		w.mu.Unlock()
		return nil, remote.PreconditionViolation("no generated notebook for scan %q", scanID)
	}
	w.mu.Unlock()

	res, err := w.client.UploadNotebook(ctx, remote.UploadRequest{
		ScanID:        scanID,
		WorkspacePath: w.workspacePath,
	})
	if err != nil {
		res = &remote.UploadResult{Error: err.Error()}
		err = fmt.Errorf("uploading notebook for %s: %w", scanID, err)
	} else if !res.OK() {
		err = fmt.Errorf("uploading notebook for %s: %w: %s", scanID, ErrUploadFailed, res.Error)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	e.upload = res
	e.err = err
	if err != nil {
		e.stage = UploadFailed
		w.logger.Warn("notebook upload failed", "scan_id", scanID, "error", err)
		return res, err
	}
	e.stage = Uploaded
	w.logger.Info("notebook uploaded", "scan_id", scanID, "path", res.WorkspacePath)
	return res, nil
}

// Save writes the current artifact of scanID into dir and returns the file
// path.
func (w *Workflow) Save(scanID, dir string) (string, error) {
	w.mu.Lock()
	e, ok := w.entries[scanID]
	var art *remote.Artifact
	if ok {
		art = e.artifact
	}
	w.mu.Unlock()
	if art == nil {
		return "", remote.PreconditionViolation("no generated notebook for scan %q", scanID)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	name := filepath.Base(art.Filename)
	if name == "." || name == string(filepath.Separator) {
		name = "fixit_" + scanID + ".py"
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(art.Content), 0o644); err != nil {
		return "", fmt.Errorf("writing notebook: %w", err)
	}
	return path, nil
}

// Status returns a snapshot of the workflow for scanID.
func (w *Workflow) Status(scanID string) Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := Status{ScanID: scanID}
	if e, ok := w.entries[scanID]; ok {
		st.Stage = e.stage
		st.Artifact = e.artifact
		st.Upload = e.upload
		st.Err = e.err
		st.Generations = e.generations
	}
	return st
}

// CanUpload reports whether an artifact exists for scanID.
func (w *Workflow) CanUpload(scanID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entries[scanID]
	return ok && e.artifact != nil
}

func (w *Workflow) entry(scanID string) *entry {
	e, ok := w.entries[scanID]
	if !ok {
		e = &entry{}
		w.entries[scanID] = e
	}
	return e
}
