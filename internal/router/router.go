package router

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dqguardrail/guardrail/internal/remote"
	"github.com/dqguardrail/guardrail/internal/scan"
)

// MainView is the top-level screen.
type MainView int

const (
	Scanner MainView = iota
	CatalogBrowser
)

func (v MainView) String() string {
	if v == CatalogBrowser {
		return "catalog"
	}
	return "scanner"
}

// Tab is a sub-tab of the scanner view.
type Tab int

const (
	Results Tab = iota
	Report
	FixIt
)

func (t Tab) String() string {
	switch t {
	case Report:
		return "report"
	case FixIt:
		return "fix-it"
	default:
		return "results"
	}
}

// Connectivity is the advisory backend status shown in the header.
type Connectivity int

const (
	Loading Connectivity = iota
	Online
	Offline
)

func (c Connectivity) String() string {
	switch c {
	case Online:
		return "online"
	case Offline:
		return "offline"
	default:
		return "loading"
	}
}

// Scans is the orchestrator surface the router drives.
type Scans interface {
	Start(path string, st remote.SourceType) (*scan.Pending, error)
	Current() (*remote.ScanResult, bool)
	OnComplete(l scan.Listener)
}

// Prober checks backend health.
type Prober interface {
	Status(ctx context.Context) (*remote.Status, error)
}

// Snapshot is the render state of the router.
type Snapshot struct {
	View         MainView
	Tab          Tab
	Connectivity Connectivity
	Model        string
	HasResult    bool
}

// Router holds which view and tab are on screen.
type Router struct {
	scans  Scans
	logger *slog.Logger

	mu    sync.Mutex
	view  MainView
	tab   Tab
	conn  Connectivity
	model string
}

// New returns a router at Scanner/Results that follows completed scans.
func New(scans Scans, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{scans: scans, logger: logger}
	scans.OnComplete(func(*remote.ScanResult) {
		r.mu.Lock()
		r.view = Scanner
		r.tab = Results
		r.mu.Unlock()
	})
	return r
}

// ShowView switches the main view.
func (r *Router) ShowView(v MainView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view = v
}

// SelectTab switches the scanner sub-tab. It does nothing and returns false
// outside the scanner view, or for Report and FixIt without a result.
func (r *Router) SelectTab(t Tab) bool {
	if t != Results {
		if res, _ := r.scans.Current(); res == nil {
			return false
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.view != Scanner {
		return false
	}
	r.tab = t
	return true
}

// SelectTable starts a table scan for fullName and brings the scanner view
// forward. The caller waits on the returned scan.
func (r *Router) SelectTable(fullName string) (*scan.Pending, error) {
	p, err := r.scans.Start(fullName, remote.SourceTable)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.view = Scanner
	r.mu.Unlock()
	return p, nil
}

// Probe checks connectivity and records the result. Failure is advisory:
// scans may still be submitted.
func (r *Router) Probe(ctx context.Context, p Prober) Connectivity {
	st, err := p.Status(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.logger.Warn("backend unreachable", "error", err)
		r.conn = Offline
		r.model = ""
		return r.conn
	}
	r.conn = Online
	r.model = st.Model
	return r.conn
}

// Snapshot returns the current render state.
func (r *Router) Snapshot() Snapshot {
	res, _ := r.scans.Current()
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		View:         r.view,
		Tab:          r.tab,
		Connectivity: r.conn,
		Model:        r.model,
		HasResult:    res != nil,
	}
}
