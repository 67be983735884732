package cmd

import (
	"bytes"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dqguardrail/guardrail/internal/demo"
	"github.com/dqguardrail/guardrail/internal/remote"
	"github.com/dqguardrail/guardrail/internal/report"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Cleanup(func() {
		apiURL, scanSection = "", ""
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestShow_PrintsSavedResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	res := &remote.ScanResult{
		ScanID: "abc123",
		Results: remote.QualityResults{
			DQScore: 42,
			Issues:  []remote.Issue{{Type: "Duplicate Rows", Severity: remote.SeverityHigh}},
		},
	}
	if err := report.WriteJSON(res, path); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	out, err := execute(t, "show", path)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"abc123", "42.0 (poor)", "Duplicate Rows"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestShow_MissingFile(t *testing.T) {
	if _, err := execute(t, "show", filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestScan_Section(t *testing.T) {
	srv := httptest.NewServer(demo.New(slog.Default(), 0).Handler())
	t.Cleanup(srv.Close)

	if _, err := execute(t, "scan", "sample", "--api-url", srv.URL, "--section", "Recommendations"); err != nil {
		t.Fatalf("scan --section: %v", err)
	}
	_, err := execute(t, "scan", "sample", "--api-url", srv.URL, "--section", "Appendix")
	if err == nil || !strings.Contains(err.Error(), "no section") {
		t.Errorf("err = %v, want a missing section error", err)
	}
}
