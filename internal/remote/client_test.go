package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, opts...)
}

func TestScan_SendsRequestAndDecodes(t *testing.T) {
	var got ScanRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/scan" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID header")
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"scan_id":"abc123","results":{"dq_score":85,"issues":[{"type":"Duplicate Rows","severity":"High","details":"5 dupes"}]},"analysis":{"summary":"ok","extra":[1,2]},"report_path":"/r.md"}`))
	})

	res, err := c.Scan(context.Background(), ScanRequest{Path: "sample", Type: SourceFile})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got.Path != "sample" || got.Type != SourceFile {
		t.Errorf("request body = %+v", got)
	}
	if res.ScanID != "abc123" {
		t.Errorf("scan_id = %q, want abc123", res.ScanID)
	}
	if res.Results.DQScore != 85 {
		t.Errorf("dq_score = %v, want 85", res.Results.DQScore)
	}
	if len(res.Results.Issues) != 1 || res.Results.Issues[0].Severity != SeverityHigh {
		t.Errorf("issues = %+v", res.Results.Issues)
	}
	if res.Analysis.Summary() != "ok" {
		t.Errorf("summary = %q, want ok", res.Analysis.Summary())
	}
	if !strings.Contains(string(res.Analysis.Raw()), `"extra":[1,2]`) {
		t.Errorf("analysis payload not passed through: %s", res.Analysis.Raw())
	}
}

func TestScan_NonSuccessIsRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"boom"}`))
	})

	_, err := c.Scan(context.Background(), ScanRequest{Path: "x", Type: SourceFile})
	var rej *RequestRejected
	if !errors.As(err, &rej) {
		t.Fatalf("expected RequestRejected, got %v", err)
	}
	if rej.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d", rej.StatusCode)
	}
	if rej.Message != "boom" {
		t.Errorf("message = %q, want boom", rej.Message)
	}
}

func TestScan_MalformedBodyIsTransportError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	_, err := c.Scan(context.Background(), ScanRequest{Path: "x", Type: SourceFile})
	if !IsTransport(err) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestClient_UnreachableIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url)
	_, err := c.Status(context.Background())
	if !IsTransport(err) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestClient_TimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	}, WithTimeout(50*time.Millisecond))
	defer close(release)

	_, err := c.Status(context.Background())
	if !IsTransport(err) {
		t.Fatalf("expected TransportError on timeout, got %v", err)
	}
}

func TestClient_PathParamsAreEscaped(t *testing.T) {
	var rawPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rawPath = r.URL.EscapedPath()
		w.Write([]byte(`{"tables":[]}`))
	})

	if _, err := c.ListTables(context.Background(), "main", "my schema"); err != nil {
		t.Fatalf("ListTables: %v", err)
	}
	if rawPath != "/api/catalogs/main/schemas/my%20schema/tables" {
		t.Errorf("path = %q", rawPath)
	}
}

func TestClient_BearerToken(t *testing.T) {
	var auth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`{"model":"m"}`))
	}, WithToken("s3cret"))

	st, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if auth != "Bearer s3cret" {
		t.Errorf("Authorization = %q", auth)
	}
	if st.Model != "m" {
		t.Errorf("model = %q", st.Model)
	}
}

func TestUploadNotebook_Union(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantOK  bool
		wantErr bool
	}{
		{"success", `{"workspace_path":"/Shared/a.py","workspace_url":"https://x#a"}`, true, false},
		{"error payload", `{"error":"no permission"}`, false, false},
		{"both", `{"workspace_path":"/a","error":"e"}`, false, true},
		{"neither", `{}`, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})
			res, err := c.UploadNotebook(context.Background(), UploadRequest{ScanID: "abc"})
			if tt.wantErr {
				if !IsTransport(err) {
					t.Fatalf("expected TransportError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.OK() != tt.wantOK {
				t.Errorf("OK() = %v, want %v", res.OK(), tt.wantOK)
			}
		})
	}
}

func TestReport_ReturnsRawText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/report/abc123" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("# Data Quality Assessment Report\n"))
	})

	text, err := c.Report(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if !strings.HasPrefix(text, "# Data Quality") {
		t.Errorf("report = %q", text)
	}
}

func TestNewScanRequest(t *testing.T) {
	if _, err := NewScanRequest("   ", SourceFile); !errors.Is(err, ErrPrecondition) {
		t.Errorf("whitespace path: expected ErrPrecondition, got %v", err)
	}
	req, err := NewScanRequest(" main.sales.orders ", SourceTable)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Path != "main.sales.orders" || req.Type != SourceTable {
		t.Errorf("request = %+v", req)
	}
	if _, err := NewScanRequest("x", SourceType("stream")); !errors.Is(err, ErrPrecondition) {
		t.Errorf("bad type: expected ErrPrecondition, got %v", err)
	}
}

func TestParseSourceType(t *testing.T) {
	tests := []struct {
		in      string
		want    SourceType
		wantErr bool
	}{
		{"", SourceFile, false},
		{"file", SourceFile, false},
		{"TABLE", SourceTable, false},
		{"view", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSourceType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSourceType(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseSourceType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
