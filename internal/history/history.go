package history

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dqguardrail/guardrail/internal/config"
	"github.com/dqguardrail/guardrail/internal/remote"
	"github.com/dqguardrail/guardrail/internal/scan"
)

const (
	DefaultPath = "~/.guardrail/history.yaml"
	MaxEntries  = 50
)

// Entry records one completed scan and what was done with it.
type Entry struct {
	ScanID       string            `yaml:"scan_id"`
	Source       string            `yaml:"source"`
	Type         remote.SourceType `yaml:"type"`
	Score        float64           `yaml:"score"`
	Band         scan.Band         `yaml:"band"`
	Issues       int               `yaml:"issues"`
	CompletedAt  time.Time         `yaml:"completed_at"`
	ReportPath   string            `yaml:"report_path,omitempty"`
	NotebookPath string            `yaml:"notebook_path,omitempty"`
	UploadedTo   string            `yaml:"uploaded_to,omitempty"`
}

// History is the list of recent scans, newest first.
type History struct {
	LastUpdated time.Time `yaml:"last_updated"`
	Entries     []Entry   `yaml:"entries,omitempty"`
}

// Load reads the history from disk. A missing file yields an empty history.
func Load(path string) (*History, error) {
	if path == "" {
		path = config.ExpandHome(DefaultPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &History{}, nil
		}
		return nil, fmt.Errorf("reading history: %w", err)
	}

	h := &History{}
	if err := yaml.Unmarshal(data, h); err != nil {
		return nil, fmt.Errorf("parsing history: %w", err)
	}
	return h, nil
}

// Save writes the history to disk.
func (h *History) Save(path string) error {
	if path == "" {
		path = config.ExpandHome(DefaultPath)
	}

	h.LastUpdated = time.Now()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}

	data, err := yaml.Marshal(h)
	if err != nil {
		return fmt.Errorf("marshaling history: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Record adds a completed scan at the front, replacing any entry with the
// same scan ID and dropping the oldest beyond MaxEntries.
func (h *History) Record(req remote.ScanRequest, res *remote.ScanResult) *Entry {
	e := Entry{
		ScanID:      res.ScanID,
		Source:      req.Path,
		Type:        req.Type,
		Score:       res.Results.DQScore,
		Band:        scan.Classify(res.Results.DQScore),
		Issues:      len(res.Results.Issues),
		CompletedAt: time.Now(),
		ReportPath:  res.ReportPath,
	}

	entries := []Entry{e}
	for _, old := range h.Entries {
		if old.ScanID != e.ScanID {
			entries = append(entries, old)
		}
	}
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	h.Entries = entries
	return &h.Entries[0]
}

// Find returns the entry for scanID.
func (h *History) Find(scanID string) (*Entry, bool) {
	for i := range h.Entries {
		if h.Entries[i].ScanID == scanID {
			return &h.Entries[i], true
		}
	}
	return nil, false
}
