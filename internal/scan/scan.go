package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dqguardrail/guardrail/internal/remote"
)

// ErrSuperseded is returned to the caller of a scan whose response arrived
// after a newer scan was submitted. The response is discarded.
var ErrSuperseded = errors.New("scan superseded by a newer request")

// State is the lifecycle state of the orchestrator.
type State int

const (
	Idle State = iota
	Scanning
	Complete
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Client is the subset of the backend API used for scanning.
type Client interface {
	Scan(ctx context.Context, req remote.ScanRequest) (*remote.ScanResult, error)
	Report(ctx context.Context, scanID string) (string, error)
}

// Listener is notified when a scan completes and becomes current.
type Listener func(res *remote.ScanResult)

// Orchestrator drives one in-flight scan at a time. Submitting a new scan
// while one is running does not cancel the old request; its response is
// discarded when it arrives.
type Orchestrator struct {
	client  Client
	logger  *slog.Logger
	timeout time.Duration

	mu        sync.Mutex
	state     State
	seq       uint64
	request   *remote.ScanRequest
	current   *remote.ScanResult
	lastErr   error
	completed map[string]bool
	listeners []Listener
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithTimeout bounds each scan request.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates an idle orchestrator.
func New(client Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:    client,
		logger:    slog.Default(),
		timeout:   remote.DefaultTimeout,
		completed: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OnComplete registers a listener for completed scans. Listeners run on the
// goroutine that resolved the scan, outside the orchestrator's lock.
func (o *Orchestrator) OnComplete(l Listener) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, l)
}

// Pending is a submitted scan whose request has not been sent yet.
type Pending struct {
	o     *Orchestrator
	token uint64
	req   remote.ScanRequest
}

// Request returns the immutable request of this scan.
func (p *Pending) Request() remote.ScanRequest {
	return p.req
}

// Start validates the request and moves the orchestrator to Scanning. An
// empty path is rejected without touching state or the network.
func (o *Orchestrator) Start(path string, st remote.SourceType) (*Pending, error) {
	req, err := remote.NewScanRequest(path, st)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.seq++
	token := o.seq
	o.state = Scanning
	o.request = &req
	o.mu.Unlock()

	o.logger.Info("scan submitted", "path", req.Path, "type", req.Type, "token", token)
	return &Pending{o: o, token: token, req: req}, nil
}

// Wait sends the request and applies the response if this scan is still
// the latest one.
func (p *Pending) Wait(ctx context.Context) (*remote.ScanResult, error) {
	o := p.o
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	res, err := o.client.Scan(ctx, p.req)

	o.mu.Lock()
	if p.token != o.seq {
		o.mu.Unlock()
		o.logger.Debug("discarding stale scan response", "path", p.req.Path, "token", p.token)
		return nil, ErrSuperseded
	}
	if err != nil {
		o.state = Failed
		o.lastErr = err
		o.mu.Unlock()
		o.logger.Warn("scan failed", "path", p.req.Path, "error", err)
		return nil, fmt.Errorf("scanning %s: %w", p.req.Path, err)
	}
	o.state = Complete
	o.current = res
	o.lastErr = nil
	o.completed[res.ScanID] = true
	listeners := append([]Listener(nil), o.listeners...)
	o.mu.Unlock()

	o.logger.Info("scan complete", "scan_id", res.ScanID, "dq_score", res.Results.DQScore, "issues", len(res.Results.Issues))
	for _, l := range listeners {
		l(res)
	}
	return res, nil
}

// Submit starts a scan and waits for it.
func (o *Orchestrator) Submit(ctx context.Context, path string, st remote.SourceType) (*remote.ScanResult, error) {
	p, err := o.Start(path, st)
	if err != nil {
		return nil, err
	}
	return p.Wait(ctx)
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Current returns the current result. stale is true while a newer scan is
// in flight; the result is kept for display until that scan resolves.
func (o *Orchestrator) Current() (res *remote.ScanResult, stale bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current, o.current != nil && o.state == Scanning
}

// LastRequest returns the most recently submitted request, if any.
func (o *Orchestrator) LastRequest() (remote.ScanRequest, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.request == nil {
		return remote.ScanRequest{}, false
	}
	return *o.request, true
}

// LastError returns the error of the latest scan when it failed.
func (o *Orchestrator) LastError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != Failed {
		return nil
	}
	return o.lastErr
}

// HasCompleted reports whether scanID belongs to a scan that completed in
// this session.
func (o *Orchestrator) HasCompleted(scanID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.completed[scanID]
}

// Report fetches the markdown report of the current scan.
func (o *Orchestrator) Report(ctx context.Context) (string, error) {
	res, _ := o.Current()
	if res == nil {
		return "", remote.PreconditionViolation("no completed scan")
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	text, err := o.client.Report(ctx, res.ScanID)
	if err != nil {
		return "", fmt.Errorf("fetching report for %s: %w", res.ScanID, err)
	}
	return text, nil
}
