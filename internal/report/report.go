package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/dqguardrail/guardrail/internal/remote"
	"github.com/dqguardrail/guardrail/internal/scan"
)

// Heading is one heading of a markdown report.
type Heading struct {
	Level int
	Text  string
	// offset of the heading line in the source
	start int
}

func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
	)
}

// Outline returns the headings of a markdown document in order.
func Outline(markdown string) []Heading {
	source := []byte(markdown)
	doc := newMarkdown().Parser().Parse(text.NewReader(source))

	var headings []Heading
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		start := 0
		if h.Lines().Len() > 0 {
			start = lineStart(source, h.Lines().At(0).Start)
		}
		headings = append(headings, Heading{
			Level: h.Level,
			Text:  strings.TrimSpace(string(h.Text(source))),
			start: start,
		})
		return ast.WalkSkipChildren, nil
	})
	return headings
}

// Section returns the markdown body under the first heading whose text
// matches title (case-insensitive), up to the next heading of the same or a
// higher level. ok is false when no such heading exists.
func Section(markdown, title string) (body string, ok bool) {
	headings := Outline(markdown)
	for i, h := range headings {
		if !strings.EqualFold(h.Text, title) {
			continue
		}
		from := lineEnd(markdown, h.start)
		to := len(markdown)
		for _, next := range headings[i+1:] {
			if next.Level <= h.Level {
				to = next.start
				break
			}
		}
		if from > to {
			from = to
		}
		return strings.TrimSpace(markdown[from:to]), true
	}
	return "", false
}

// HTML renders markdown to sanitized HTML.
func HTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := newMarkdown().Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return bluemonday.UGCPolicy().Sanitize(buf.String()), nil
}

// FormatText renders a scan result as human-readable text.
func FormatText(res *remote.ScanResult) string {
	var b strings.Builder

	b.WriteString("=== Data Quality Scan ===\n")
	b.WriteString(fmt.Sprintf("Scan ID:  %s\n", res.ScanID))
	b.WriteString(fmt.Sprintf("Score:    %.1f (%s)\n", res.Results.DQScore, scan.Classify(res.Results.DQScore)))
	if res.Results.RowCount > 0 {
		b.WriteString(fmt.Sprintf("Rows:     %d\n", res.Results.RowCount))
	}
	if res.ReportPath != "" {
		b.WriteString(fmt.Sprintf("Report:   %s\n", res.ReportPath))
	}
	b.WriteString("\n")

	counts := scan.CountSeverities(res.Results.Issues)
	b.WriteString(fmt.Sprintf("Issues: %d (high %d, medium %d, low %d)\n",
		counts.Total(), counts.High, counts.Medium, counts.Low))
	for _, issue := range res.Results.Issues {
		line := fmt.Sprintf("  [%s] %s", issue.Severity, issue.Type)
		if issue.Column != "" {
			line += fmt.Sprintf(" (%s)", issue.Column)
		}
		if issue.Details != "" {
			line += ": " + issue.Details
		}
		b.WriteString(line + "\n")
	}

	if summary := res.Analysis.Summary(); summary != "" {
		b.WriteString("\nSummary:\n")
		b.WriteString("  " + summary + "\n")
	}
	if health := res.Analysis.PipelineHealth(); health != "" {
		b.WriteString(fmt.Sprintf("Pipeline health: %s\n", health))
	}
	return b.String()
}

// WriteText writes text to path, creating parent directories.
func WriteText(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// WriteHTML renders markdown and writes it to path.
func WriteHTML(path, markdown string) error {
	html, err := HTML(markdown)
	if err != nil {
		return err
	}
	return WriteText(path, html)
}

// WriteJSON writes the scan result as JSON. The analysis payload is written
// unchanged.
func WriteJSON(res *remote.ScanResult, path string) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling scan result: %w", err)
	}
	return WriteText(path, string(data))
}

// ReadJSON reads a scan result from a JSON file.
func ReadJSON(path string) (*remote.ScanResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scan result: %w", err)
	}
	res := &remote.ScanResult{}
	if err := json.Unmarshal(data, res); err != nil {
		return nil, fmt.Errorf("parsing scan result: %w", err)
	}
	return res, nil
}

func lineStart(src []byte, off int) int {
	if i := bytes.LastIndexByte(src[:off], '\n'); i >= 0 {
		return i + 1
	}
	return 0
}

func lineEnd(s string, off int) int {
	if i := strings.IndexByte(s[off:], '\n'); i >= 0 {
		return off + i + 1
	}
	return len(s)
}
