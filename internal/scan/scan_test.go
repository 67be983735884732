package scan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dqguardrail/guardrail/internal/remote"
)

type reply struct {
	res *remote.ScanResult
	err error
}

// fakeClient blocks each Scan call until a reply is pushed for its path.
type fakeClient struct {
	mu      sync.Mutex
	calls   int
	replies map[string]chan reply
	report  string
}

func newFakeClient() *fakeClient {
	return &fakeClient{replies: make(map[string]chan reply)}
}

func (f *fakeClient) ch(path string) chan reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.replies[path]
	if !ok {
		c = make(chan reply, 1)
		f.replies[path] = c
	}
	return c
}

func (f *fakeClient) Scan(ctx context.Context, req remote.ScanRequest) (*remote.ScanResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	select {
	case r := <-f.ch(req.Path):
		return r.res, r.err
	case <-ctx.Done():
		return nil, &remote.TransportError{Op: "scan", Err: ctx.Err()}
	}
}

func (f *fakeClient) Report(ctx context.Context, scanID string) (string, error) {
	return f.report, nil
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func result(id string, score float64) *remote.ScanResult {
	return &remote.ScanResult{ScanID: id, Results: remote.QualityResults{DQScore: score}}
}

func TestSubmit_EmptyPathRejectedLocally(t *testing.T) {
	fc := newFakeClient()
	o := New(fc)

	for _, p := range []string{"", "   ", "\t\n"} {
		_, err := o.Submit(context.Background(), p, remote.SourceFile)
		if !errors.Is(err, remote.ErrPrecondition) {
			t.Errorf("Submit(%q): expected ErrPrecondition, got %v", p, err)
		}
	}
	if fc.callCount() != 0 {
		t.Errorf("expected no network calls, got %d", fc.callCount())
	}
	if o.State() != Idle {
		t.Errorf("state = %s, want idle", o.State())
	}
}

func TestSubmit_TransitionsThroughScanning(t *testing.T) {
	fc := newFakeClient()
	o := New(fc)

	p, err := o.Start("sample", remote.SourceFile)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if o.State() != Scanning {
		t.Fatalf("state after Start = %s, want scanning", o.State())
	}

	fc.ch("sample") <- reply{res: result("abc123", 85)}
	res, err := p.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res.ScanID != "abc123" {
		t.Errorf("scan id = %q", res.ScanID)
	}
	if o.State() != Complete {
		t.Errorf("state = %s, want complete", o.State())
	}
	if !o.HasCompleted("abc123") {
		t.Error("abc123 should be recorded as completed")
	}
}

func TestSubmit_FailureRetainsPreviousResult(t *testing.T) {
	fc := newFakeClient()
	o := New(fc)

	fc.ch("a") <- reply{res: result("first", 90)}
	if _, err := o.Submit(context.Background(), "a", remote.SourceFile); err != nil {
		t.Fatalf("first scan: %v", err)
	}

	fc.ch("b") <- reply{err: &remote.RequestRejected{Op: "scan", StatusCode: 500}}
	_, err := o.Submit(context.Background(), "b", remote.SourceFile)
	if !remote.IsRejected(err) {
		t.Fatalf("expected RequestRejected, got %v", err)
	}
	if o.State() != Failed {
		t.Errorf("state = %s, want failed", o.State())
	}
	if o.LastError() == nil {
		t.Error("LastError should be set after failure")
	}
	cur, _ := o.Current()
	if cur == nil || cur.ScanID != "first" {
		t.Errorf("previous result should be retained, got %+v", cur)
	}
}

func TestSubmit_StaleResponseDiscarded(t *testing.T) {
	fc := newFakeClient()
	o := New(fc)

	first, _ := o.Start("first", remote.SourceFile)
	second, _ := o.Start("second", remote.SourceFile)

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = first.Wait(context.Background())
	}()

	// The newer scan resolves first, then the stale one arrives.
	fc.ch("second") <- reply{res: result("s2", 70)}
	if _, err := second.Wait(context.Background()); err != nil {
		t.Fatalf("second scan: %v", err)
	}
	fc.ch("first") <- reply{res: result("s1", 10)}
	wg.Wait()

	if !errors.Is(firstErr, ErrSuperseded) {
		t.Errorf("first scan: expected ErrSuperseded, got %v", firstErr)
	}
	cur, stale := o.Current()
	if cur == nil || cur.ScanID != "s2" {
		t.Errorf("current = %+v, want s2", cur)
	}
	if stale {
		t.Error("current result should not be stale")
	}
	if o.HasCompleted("s1") {
		t.Error("discarded scan must not be recorded as completed")
	}
}

func TestSubmit_StaleFailureDoesNotFailNewerScan(t *testing.T) {
	fc := newFakeClient()
	o := New(fc)

	first, _ := o.Start("first", remote.SourceFile)
	second, _ := o.Start("second", remote.SourceFile)

	fc.ch("first") <- reply{err: &remote.TransportError{Op: "scan", Err: errors.New("reset")}}
	if _, err := first.Wait(context.Background()); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if o.State() != Scanning {
		t.Errorf("state = %s, want scanning", o.State())
	}

	fc.ch("second") <- reply{res: result("s2", 60)}
	if _, err := second.Wait(context.Background()); err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if o.State() != Complete {
		t.Errorf("state = %s, want complete", o.State())
	}
}

func TestSubmit_StaleFlagWhileRescanning(t *testing.T) {
	fc := newFakeClient()
	o := New(fc)

	fc.ch("a") <- reply{res: result("a1", 80)}
	o.Submit(context.Background(), "a", remote.SourceFile)

	p, _ := o.Start("b", remote.SourceFile)
	cur, stale := o.Current()
	if cur == nil || cur.ScanID != "a1" || !stale {
		t.Errorf("Current() = %+v, stale=%v; want a1, stale", cur, stale)
	}
	fc.ch("b") <- reply{res: result("b1", 40)}
	p.Wait(context.Background())
}

func TestSubmit_TimeoutBecomesFailed(t *testing.T) {
	fc := newFakeClient()
	o := New(fc, WithTimeout(20*time.Millisecond))

	_, err := o.Submit(context.Background(), "hang", remote.SourceFile)
	if !remote.IsTransport(err) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if o.State() != Failed {
		t.Errorf("state = %s, want failed", o.State())
	}
}

func TestOnComplete_NotifiesListeners(t *testing.T) {
	fc := newFakeClient()
	o := New(fc)

	var got []string
	o.OnComplete(func(res *remote.ScanResult) {
		got = append(got, res.ScanID)
	})

	fc.ch("x") <- reply{res: result("x1", 50)}
	o.Submit(context.Background(), "x", remote.SourceTable)
	fc.ch("y") <- reply{err: errors.New("nope")}
	o.Submit(context.Background(), "y", remote.SourceTable)

	if len(got) != 1 || got[0] != "x1" {
		t.Errorf("listener calls = %v, want [x1]", got)
	}
}

func TestReport_RequiresCompletedScan(t *testing.T) {
	fc := newFakeClient()
	fc.report = "# Report"
	o := New(fc)

	if _, err := o.Report(context.Background()); !errors.Is(err, remote.ErrPrecondition) {
		t.Errorf("expected ErrPrecondition, got %v", err)
	}

	fc.ch("s") <- reply{res: result("abc", 90)}
	o.Submit(context.Background(), "s", remote.SourceFile)
	text, err := o.Report(context.Background())
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if text != "# Report" {
		t.Errorf("report = %q", text)
	}
}
