package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dqguardrail/guardrail/internal/remote"
	"github.com/dqguardrail/guardrail/internal/router"
	"github.com/dqguardrail/guardrail/internal/scan"
)

type probeDoneMsg struct {
	conn router.Connectivity
}

type scanDoneMsg struct {
	res *remote.ScanResult
	err error
}

type reportDoneMsg struct {
	scanID string
	text   string
	err    error
}

type rootsDoneMsg struct {
	err error
}

type toggleDoneMsg struct {
	key string
	err error
}

type detailDoneMsg struct {
	key    string
	detail *remote.TableDetail
	err    error
}

type generateDoneMsg struct {
	scanID string
	art    *remote.Artifact
	err    error
}

type uploadDoneMsg struct {
	scanID string
	res    *remote.UploadResult
	err    error
}

type saveDoneMsg struct {
	path string
	err  error
}

func (m Model) probeCmd() tea.Cmd {
	if m.deps.Prober == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.deps.Timeout)
		defer cancel()
		return probeDoneMsg{conn: m.deps.Router.Probe(ctx, m.deps.Prober)}
	}
}

// waitCmd resolves a started scan. Superseded responses produce no message.
func waitCmd(p *scan.Pending) tea.Cmd {
	return func() tea.Msg {
		res, err := p.Wait(context.Background())
		if errors.Is(err, scan.ErrSuperseded) {
			return nil
		}
		return scanDoneMsg{res: res, err: err}
	}
}

func (m Model) reportCmd(scanID string) tea.Cmd {
	return func() tea.Msg {
		text, err := m.deps.Scans.Report(context.Background())
		return reportDoneMsg{scanID: scanID, text: text, err: err}
	}
}

func (m Model) rootsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.deps.Timeout)
		defer cancel()
		_, _, err := m.deps.Catalog.LoadRoots(ctx)
		return rootsDoneMsg{err: err}
	}
}

func (m Model) toggleCatalogCmd(name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.deps.Timeout)
		defer cancel()
		_, err := m.deps.Catalog.ToggleCatalog(ctx, name)
		return toggleDoneMsg{key: name, err: err}
	}
}

func (m Model) toggleSchemaCmd(catalogName, schema string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.deps.Timeout)
		defer cancel()
		_, err := m.deps.Catalog.ToggleSchema(ctx, catalogName, schema)
		return toggleDoneMsg{key: catalogName + "." + schema, err: err}
	}
}

func (m Model) detailCmd(catalogName, schema, table string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.deps.Timeout)
		defer cancel()
		d, err := m.deps.Catalog.SelectTable(ctx, catalogName, schema, table)
		return detailDoneMsg{key: catalogName + "." + schema + "." + table, detail: d, err: err}
	}
}

func (m Model) generateCmd(scanID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.deps.Timeout)
		defer cancel()
		art, err := m.deps.Patch.Generate(ctx, scanID)
		return generateDoneMsg{scanID: scanID, art: art, err: err}
	}
}

func (m Model) uploadCmd(scanID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.deps.Timeout)
		defer cancel()
		res, err := m.deps.Patch.Upload(ctx, scanID)
		return uploadDoneMsg{scanID: scanID, res: res, err: err}
	}
}

func (m Model) saveCmd(scanID string) tea.Cmd {
	return func() tea.Msg {
		path, err := m.deps.Patch.Save(scanID, m.deps.OutputDir)
		return saveDoneMsg{path: path, err: err}
	}
}
