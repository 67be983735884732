package tui

import (
	"fmt"
	"strings"

	"github.com/dqguardrail/guardrail/internal/catalog"
	"github.com/dqguardrail/guardrail/internal/patch"
	"github.com/dqguardrail/guardrail/internal/report"
	"github.com/dqguardrail/guardrail/internal/router"
	"github.com/dqguardrail/guardrail/internal/scan"
)

const previewLines = 12

func (m Model) View() string {
	if m.done {
		return ""
	}
	snap := m.deps.Router.Snapshot()

	var b strings.Builder
	b.WriteString(titleStyle.Render("Data Quality Guardrail"))
	b.WriteString("  ")
	b.WriteString(m.connectivityLine(snap))
	b.WriteString("\n\n")

	if snap.View == router.CatalogBrowser {
		m.viewCatalog(&b)
	} else {
		m.viewScanner(&b, snap)
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.helpLine(snap)))
	b.WriteString("\n")
	return b.String()
}

func (m Model) connectivityLine(snap router.Snapshot) string {
	switch snap.Connectivity {
	case router.Online:
		return successStyle.Render("● online") + dimStyle.Render(" "+snap.Model)
	case router.Offline:
		return errStyle.Render("● offline")
	default:
		return dimStyle.Render("● connecting...")
	}
}

func (m Model) helpLine(snap router.Snapshot) string {
	if snap.View == router.CatalogBrowser {
		return "  ↑/↓ move • enter expand/select • s scan table • ctrl+b back • esc quit"
	}
	help := "  enter scan • ctrl+t source type • tab switch tab • ctrl+b catalogs • esc quit"
	if snap.Tab == router.FixIt {
		help += "\n  ctrl+g generate • ctrl+u upload • ctrl+s save"
	}
	return help
}

func (m Model) viewScanner(b *strings.Builder, snap router.Snapshot) {
	fmt.Fprintf(b, "  Source (%s): %s\n", highlightStyle.Render(string(m.sourceType)), m.input.View())
	if m.scanning {
		fmt.Fprintf(b, "  %s Scanning...\n", m.spinner.View())
	}
	if m.scanErr != nil {
		b.WriteString(errStyle.Render("  Scan failed: " + m.scanErr.Error()))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString("  ")
	for i, t := range []router.Tab{router.Results, router.Report, router.FixIt} {
		if i > 0 {
			b.WriteString(dimStyle.Render(" │ "))
		}
		label := t.String()
		switch {
		case t == snap.Tab:
			b.WriteString(activeTabStyle.Render(label))
		case !snap.HasResult && t != router.Results:
			b.WriteString(dimStyle.Render(label))
		default:
			b.WriteString(tabStyle.Render(label))
		}
	}
	b.WriteString("\n\n")

	switch snap.Tab {
	case router.Report:
		m.viewReport(b)
	case router.FixIt:
		m.viewFixIt(b)
	default:
		m.viewResults(b)
	}
}

func (m Model) viewResults(b *strings.Builder) {
	res, stale := m.deps.Scans.Current()
	if res == nil {
		b.WriteString(dimStyle.Render("  No scan yet. Enter a path and press enter."))
		b.WriteString("\n")
		return
	}
	if stale {
		b.WriteString(warnStyle.Render("  Showing the previous result; the latest scan failed."))
		b.WriteString("\n")
	}

	band := scan.Classify(res.Results.DQScore)
	fmt.Fprintf(b, "  Scan %s\n", dimStyle.Render(res.ScanID))
	fmt.Fprintf(b, "  Score: %s\n", bandStyle(band).Render(fmt.Sprintf("%.1f (%s)", res.Results.DQScore, band)))
	if res.Results.RowCount > 0 {
		fmt.Fprintf(b, "  Rows:  %d\n", res.Results.RowCount)
	}

	counts := scan.CountSeverities(res.Results.Issues)
	fmt.Fprintf(b, "\n  Issues: %d  %s  %s  %s\n", counts.Total(),
		errStyle.Render(fmt.Sprintf("high %d", counts.High)),
		warnStyle.Render(fmt.Sprintf("medium %d", counts.Medium)),
		dimStyle.Render(fmt.Sprintf("low %d", counts.Low)))
	for _, iss := range res.Results.Issues {
		col := ""
		if iss.Column != "" {
			col = " (" + iss.Column + ")"
		}
		fmt.Fprintf(b, "    %s %s%s: %s\n", severityStyle(iss.Severity).Render("["+string(iss.Severity)+"]"), iss.Type, col, iss.Details)
	}

	if s := res.Analysis.Summary(); s != "" {
		b.WriteString("\n")
		b.WriteString(headingStyle.Render("  Summary"))
		fmt.Fprintf(b, "\n  %s\n", s)
	}
	if h := res.Analysis.PipelineHealth(); h != "" {
		fmt.Fprintf(b, "\n  Pipeline health: %s\n", h)
	}
}

func (m Model) viewReport(b *strings.Builder) {
	if m.loadingReport {
		fmt.Fprintf(b, "  %s Loading report...\n", m.spinner.View())
		return
	}
	if m.reportErr != nil {
		b.WriteString(errStyle.Render("  Could not load report: " + m.reportErr.Error()))
		b.WriteString("\n")
		return
	}
	if m.report == "" {
		b.WriteString(dimStyle.Render("  No report loaded."))
		b.WriteString("\n")
		return
	}

	outline := report.Outline(m.report)
	if len(outline) > 0 {
		b.WriteString(headingStyle.Render("  Contents"))
		b.WriteString("\n")
		for _, h := range outline {
			if h.Level > 3 {
				continue
			}
			fmt.Fprintf(b, "  %s- %s\n", strings.Repeat("  ", h.Level-1), h.Text)
		}
		b.WriteString("\n")
	}

	lines := strings.Split(m.report, "\n")
	limit := m.height - 16
	if limit < previewLines {
		limit = previewLines
	}
	if rest := len(lines) - limit; rest > 0 {
		lines = append(lines[:limit:limit], dimStyle.Render(fmt.Sprintf("... %d more lines", rest)))
	}
	for _, l := range lines {
		fmt.Fprintf(b, "  %s\n", l)
	}
}

func (m Model) viewFixIt(b *strings.Builder) {
	id := m.currentScanID()
	if id == "" {
		b.WriteString(dimStyle.Render("  Run a scan first."))
		b.WriteString("\n")
		return
	}
	st := m.deps.Patch.Status(id)
	fmt.Fprintf(b, "  Stage: %s\n", highlightStyle.Render(st.Stage.String()))

	if m.fixitBusy {
		fmt.Fprintf(b, "  %s Working...\n", m.spinner.View())
	}
	if m.fixitErr != nil {
		b.WriteString(errStyle.Render("  " + m.fixitErr.Error()))
		b.WriteString("\n")
	} else if m.fixitMsg != "" {
		b.WriteString(successStyle.Render("  " + m.fixitMsg))
		b.WriteString("\n")
	}

	if st.Upload != nil {
		switch {
		case st.Upload.OK():
			fmt.Fprintf(b, "  Workspace: %s\n", st.Upload.WorkspacePath)
			if st.Upload.WorkspaceURL != "" {
				fmt.Fprintf(b, "  URL:       %s\n", dimStyle.Render(st.Upload.WorkspaceURL))
			}
		case st.Stage == patch.UploadFailed:
			b.WriteString(errStyle.Render("  Upload failed: " + st.Upload.Error))
			b.WriteString("\n")
		}
	}

	if st.Artifact == nil {
		b.WriteString(dimStyle.Render("  No notebook yet. Press ctrl+g to generate one."))
		b.WriteString("\n")
		return
	}
	fmt.Fprintf(b, "\n  %s\n", headingStyle.Render(st.Artifact.Filename))
	lines := strings.Split(st.Artifact.Content, "\n")
	if len(lines) > previewLines {
		lines = lines[:previewLines]
	}
	for _, l := range lines {
		fmt.Fprintf(b, "  %s\n", dimStyle.Render(l))
	}
}

func (m Model) viewCatalog(b *strings.Builder) {
	b.WriteString(headingStyle.Render("  Unity Catalog"))
	b.WriteString("\n")
	if m.deps.Catalog.Mock() {
		b.WriteString("  ")
		b.WriteString(bannerStyle.Render("Demo catalog: no workspace credentials configured"))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.loadingRoots {
		fmt.Fprintf(b, "  %s Loading catalogs...\n", m.spinner.View())
	}
	if m.catalogErr != nil {
		b.WriteString(errStyle.Render("  " + m.catalogErr.Error()))
		b.WriteString("\n")
		if !m.rootsLoaded {
			b.WriteString(dimStyle.Render("  Press r to retry"))
			b.WriteString("\n")
		}
	}

	nodes := m.deps.Catalog.Visible()
	activeKey, detail := m.deps.Catalog.ActiveDetail()
	for i, n := range nodes {
		cursor := "  "
		if i == m.cursor {
			cursor = highlightStyle.Render("> ")
		}
		marker := "  "
		switch {
		case n.Kind == catalog.KindTable:
		case m.pending[n.Key()]:
			marker = m.spinner.View() + " "
		case n.Expanded:
			marker = "▾ "
		default:
			marker = "▸ "
		}
		name := n.Name()
		if n.Key() == activeKey {
			name = highlightStyle.Render(name)
		}
		fmt.Fprintf(b, "  %s%s%s%s", cursor, strings.Repeat("  ", n.Depth), marker, name)
		if n.Badge != "" {
			b.WriteString(" ")
			b.WriteString(dimStyle.Render(n.Badge))
		}
		b.WriteString("\n")
	}

	if m.detailErr != nil {
		b.WriteString("\n")
		b.WriteString(errStyle.Render("  " + m.detailErr.Error()))
		b.WriteString("\n")
	}
	if detail != nil {
		b.WriteString("\n")
		b.WriteString(headingStyle.Render("  " + detail.FullName))
		b.WriteString("\n")
		if detail.Comment != "" {
			fmt.Fprintf(b, "  %s\n", dimStyle.Render(detail.Comment))
		}
		fmt.Fprintf(b, "  %s • %s • owner %s\n", detail.TableType, detail.DataSourceFormat, detail.Owner)
		for _, c := range detail.Columns {
			null := ""
			if c.Nullable {
				null = dimStyle.Render(" nullable")
			}
			fmt.Fprintf(b, "    %-24s %s%s\n", c.Name, c.TypeName, null)
		}
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("  Press s to scan this table"))
		b.WriteString("\n")
	}
}
