package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dqguardrail/guardrail/internal/catalog"
	"github.com/dqguardrail/guardrail/internal/patch"
	"github.com/dqguardrail/guardrail/internal/remote"
	"github.com/dqguardrail/guardrail/internal/router"
	"github.com/dqguardrail/guardrail/internal/scan"
)

// Deps are the components the UI drives.
type Deps struct {
	Scans       *scan.Orchestrator
	Catalog     *catalog.Cache
	Patch       *patch.Workflow
	Router      *router.Router
	Prober      router.Prober
	DefaultPath string
	DefaultType remote.SourceType
	OutputDir   string
	Timeout     time.Duration
}

// Model is the root bubbletea model.
type Model struct {
	deps       Deps
	input      textinput.Model
	sourceType remote.SourceType
	spinner    spinner.Model

	scanning bool
	scanErr  error

	report        string
	reportFor     string
	reportErr     error
	loadingReport bool

	rootsLoaded  bool
	loadingRoots bool
	catalogErr   error
	cursor       int
	pending      map[string]bool
	detailErr    error

	fixitBusy bool
	fixitMsg  string
	fixitErr  error

	width  int
	height int
	done   bool
}

// New creates the root model.
func New(deps Deps) Model {
	if deps.Timeout == 0 {
		deps.Timeout = remote.DefaultTimeout
	}
	if deps.DefaultType == "" {
		deps.DefaultType = remote.SourceFile
	}
	if deps.OutputDir == "" {
		deps.OutputDir = "."
	}

	input := textinput.New()
	input.Placeholder = "sample, dbfs:/path/file.csv or catalog.schema.table"
	input.CharLimit = 512
	input.SetValue(deps.DefaultPath)
	input.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		deps:       deps,
		input:      input,
		sourceType: deps.DefaultType,
		spinner:    s,
		pending:    make(map[string]bool),
		width:      80,
		height:     24,
	}
}

// Run starts the UI and blocks until the user quits.
func Run(deps Deps) error {
	p := tea.NewProgram(New(deps), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running terminal UI: %w", err)
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.probeCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case probeDoneMsg:
		return m, nil

	case scanDoneMsg:
		m.scanning = false
		m.scanErr = msg.err
		if msg.err == nil {
			m.fixitMsg, m.fixitErr = "", nil
		}
		return m, nil

	case reportDoneMsg:
		m.loadingReport = false
		if cur, _ := m.deps.Scans.Current(); cur == nil || cur.ScanID != msg.scanID {
			return m, nil
		}
		m.report, m.reportFor, m.reportErr = msg.text, msg.scanID, msg.err
		return m, nil

	case rootsDoneMsg:
		m.loadingRoots = false
		m.catalogErr = msg.err
		m.rootsLoaded = msg.err == nil
		return m, nil

	case toggleDoneMsg:
		delete(m.pending, msg.key)
		m.catalogErr = msg.err
		m.clampCursor()
		return m, nil

	case detailDoneMsg:
		delete(m.pending, msg.key)
		m.detailErr = msg.err
		return m, nil

	case generateDoneMsg:
		m.fixitBusy = false
		m.fixitErr = msg.err
		if msg.err == nil {
			m.fixitMsg = fmt.Sprintf("Generated %s", msg.art.Filename)
		}
		return m, nil

	case uploadDoneMsg:
		m.fixitBusy = false
		m.fixitErr = msg.err
		if msg.err == nil {
			m.fixitMsg = fmt.Sprintf("Uploaded to %s", msg.res.WorkspacePath)
		}
		return m, nil

	case saveDoneMsg:
		m.fixitErr = msg.err
		if msg.err == nil {
			m.fixitMsg = fmt.Sprintf("Saved to %s", msg.path)
		}
		return m, nil

	case spinner.TickMsg:
		if m.busy() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	if m.deps.Router.Snapshot().View == router.Scanner {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.done = true
		return m, tea.Quit

	case "ctrl+b":
		if m.deps.Router.Snapshot().View == router.CatalogBrowser {
			m.deps.Router.ShowView(router.Scanner)
			m.input.Focus()
			return m, nil
		}
		m.deps.Router.ShowView(router.CatalogBrowser)
		m.input.Blur()
		if !m.rootsLoaded && !m.loadingRoots {
			m.loadingRoots = true
			return m, tea.Batch(m.spinner.Tick, m.rootsCmd())
		}
		return m, nil
	}

	if m.deps.Router.Snapshot().View == router.CatalogBrowser {
		return m.handleCatalogKey(msg)
	}
	return m.handleScannerKey(msg)
}

func (m Model) handleScannerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return m.startScan(m.input.Value(), m.sourceType)

	case "ctrl+t":
		if m.sourceType == remote.SourceFile {
			m.sourceType = remote.SourceTable
		} else {
			m.sourceType = remote.SourceFile
		}
		return m, nil

	case "tab":
		return m.selectTab(nextTab(m.deps.Router.Snapshot().Tab, 1))

	case "shift+tab":
		return m.selectTab(nextTab(m.deps.Router.Snapshot().Tab, -1))

	case "ctrl+g":
		return m.generate()

	case "ctrl+u":
		return m.upload()

	case "ctrl+s":
		return m.save()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleCatalogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	nodes := m.deps.Catalog.Visible()
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(nodes)-1 {
			m.cursor++
		}
	case "home":
		m.cursor = 0
	case "end":
		if len(nodes) > 0 {
			m.cursor = len(nodes) - 1
		}
	case "enter", " ", "right", "left":
		if m.cursor >= len(nodes) {
			return m, nil
		}
		return m.activate(nodes[m.cursor], msg.String())
	case "s":
		return m.scanActiveTable()
	case "r":
		if !m.rootsLoaded && !m.loadingRoots {
			m.loadingRoots = true
			return m, tea.Batch(m.spinner.Tick, m.rootsCmd())
		}
	}
	return m, nil
}

// activate expands or collapses a tree node, or loads the detail of a
// table.
func (m Model) activate(n catalog.Node, key string) (tea.Model, tea.Cmd) {
	if m.pending[n.Key()] {
		return m, nil
	}
	if (key == "right" && n.Expanded) || (key == "left" && !n.Expanded) {
		return m, nil
	}
	switch n.Kind {
	case catalog.KindCatalog:
		m.pending[n.Key()] = true
		return m, tea.Batch(m.spinner.Tick, m.toggleCatalogCmd(n.Catalog))
	case catalog.KindSchema:
		m.pending[n.Key()] = true
		return m, tea.Batch(m.spinner.Tick, m.toggleSchemaCmd(n.Catalog, n.Schema))
	}
	if key != "enter" {
		return m, nil
	}
	m.pending[n.Key()] = true
	m.detailErr = nil
	return m, tea.Batch(m.spinner.Tick, m.detailCmd(n.Catalog, n.Schema, n.Table))
}

// scanActiveTable starts a table scan of the table whose detail is shown
// and moves to the scanner view.
func (m Model) scanActiveTable() (tea.Model, tea.Cmd) {
	_, detail := m.deps.Catalog.ActiveDetail()
	if detail == nil || m.scanning {
		return m, nil
	}
	p, err := m.deps.Router.SelectTable(detail.FullName)
	if err != nil {
		m.detailErr = err
		return m, nil
	}
	m.input.SetValue(detail.FullName)
	m.sourceType = remote.SourceTable
	m.input.Focus()
	m.scanning = true
	m.scanErr = nil
	return m, tea.Batch(m.spinner.Tick, waitCmd(p))
}

func (m Model) startScan(path string, st remote.SourceType) (tea.Model, tea.Cmd) {
	p, err := m.deps.Scans.Start(path, st)
	if err != nil {
		m.scanErr = err
		return m, nil
	}
	m.scanning = true
	m.scanErr = nil
	return m, tea.Batch(m.spinner.Tick, waitCmd(p))
}

func (m Model) selectTab(t router.Tab) (tea.Model, tea.Cmd) {
	if !m.deps.Router.SelectTab(t) {
		return m, nil
	}
	if t != router.Report {
		return m, nil
	}
	cur, _ := m.deps.Scans.Current()
	if cur == nil || m.loadingReport || (m.reportFor == cur.ScanID && m.reportErr == nil) {
		return m, nil
	}
	m.loadingReport = true
	return m, tea.Batch(m.spinner.Tick, m.reportCmd(cur.ScanID))
}

func (m Model) currentScanID() string {
	cur, _ := m.deps.Scans.Current()
	if cur == nil {
		return ""
	}
	return cur.ScanID
}

func (m Model) generate() (tea.Model, tea.Cmd) {
	id := m.currentScanID()
	if id == "" || m.fixitBusy {
		return m, nil
	}
	m.fixitBusy = true
	m.fixitErr = nil
	return m, tea.Batch(m.spinner.Tick, m.generateCmd(id))
}

func (m Model) upload() (tea.Model, tea.Cmd) {
	id := m.currentScanID()
	if id == "" || m.fixitBusy || !m.deps.Patch.CanUpload(id) {
		return m, nil
	}
	m.fixitBusy = true
	m.fixitErr = nil
	return m, tea.Batch(m.spinner.Tick, m.uploadCmd(id))
}

func (m Model) save() (tea.Model, tea.Cmd) {
	id := m.currentScanID()
	if id == "" || !m.deps.Patch.CanUpload(id) {
		return m, nil
	}
	return m, m.saveCmd(id)
}

func (m Model) busy() bool {
	return m.scanning || m.loadingReport || m.loadingRoots || m.fixitBusy || len(m.pending) > 0
}

func (m *Model) clampCursor() {
	n := len(m.deps.Catalog.Visible())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func nextTab(t router.Tab, delta int) router.Tab {
	const tabs = 3
	return router.Tab((int(t) + delta + tabs) % tabs)
}

// Done returns true once the user quit.
func (m Model) Done() bool {
	return m.done
}
