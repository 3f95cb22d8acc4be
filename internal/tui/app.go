// Package tui defines the Bubble Tea model for browsing launchpad run history.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	v1 "github.com/f9-o/launchpad/api/v1"
)

// RunStore is the subset of the state DB the browser needs.
type RunStore interface {
	ListRuns(target string) ([]v1.RunRecord, error)
	DeleteRun(id string) error
}

// Config carries dependencies into the TUI app.
type Config struct {
	Store  RunStore
	Target string // empty lists every run
}

// Model is the root Bubble Tea model (Elm architecture).
type Model struct {
	cfg    Config
	keys   Keymap
	styles Styles

	width  int
	height int

	runs       []v1.RunRecord
	table      table.Model
	detail     viewport.Model
	showDetail bool

	lastError error
}

// runsMsg carries a freshly loaded run list.
type runsMsg []v1.RunRecord

// errMsg carries an error to display in the footer.
type errMsg struct{ err error }

var columns = []table.Column{
	{Title: "STARTED", Width: 17},
	{Title: "PROJECT", Width: 14},
	{Title: "TARGET", Width: 28},
	{Title: "STAGE", Width: 26},
	{Title: "RESULT", Width: 8},
}

// New constructs a new TUI Model.
func New(cfg Config) *Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	st := table.DefaultStyles()
	st.Header = st.Header.Bold(true).Foreground(lipgloss.Color("#FF8C42"))
	st.Selected = st.Selected.Foreground(lipgloss.Color("#1A1410")).Background(lipgloss.Color("#FFD166"))
	t.SetStyles(st)

	return &Model{
		cfg:    cfg,
		keys:   defaultKeymap(),
		styles: newStyles(),
		table:  t,
		detail: viewport.New(100, 20),
	}
}

// Run starts the browser in the alternate screen and blocks until it exits.
func Run(cfg Config) error {
	_, err := tea.NewProgram(New(cfg), tea.WithAltScreen()).Run()
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// Init
// ─────────────────────────────────────────────────────────────────────────────

func (m *Model) Init() tea.Cmd {
	return m.loadRunsCmd()
}

// ─────────────────────────────────────────────────────────────────────────────
// Update
// ─────────────────────────────────────────────────────────────────────────────

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.table.SetHeight(max(m.height-6, 3))
		m.detail.Width = m.width
		m.detail.Height = max(m.height-6, 3)
		return m, nil

	case runsMsg:
		m.runs = msg
		m.lastError = nil
		m.table.SetRows(rows(msg))
		switch c := m.table.Cursor(); {
		case len(msg) == 0:
		case c < 0:
			m.table.SetCursor(0)
		case c >= len(msg):
			m.table.SetCursor(len(msg) - 1)
		}
		return m, nil

	case errMsg:
		m.lastError = msg.err
		return m, nil

	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	if m.showDetail {
		m.detail, cmd = m.detail.Update(msg)
	} else {
		m.table, cmd = m.table.Update(msg)
	}
	return m, cmd
}

// handleKey processes the browser's own shortcuts; other keys fall through
// to the focused component.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit, true

	case key.Matches(msg, m.keys.Back) && m.showDetail:
		m.showDetail = false
		return nil, true

	case key.Matches(msg, m.keys.Open) && !m.showDetail:
		if rec, ok := m.selected(); ok {
			m.detail.SetContent(m.renderDetail(rec))
			m.detail.GotoTop()
			m.showDetail = true
		}
		return nil, true

	case key.Matches(msg, m.keys.Delete) && !m.showDetail:
		if rec, ok := m.selected(); ok {
			return m.deleteRunCmd(rec.ID), true
		}
		return nil, true

	case key.Matches(msg, m.keys.Refresh):
		return m.loadRunsCmd(), true
	}
	return nil, false
}

func (m *Model) selected() (v1.RunRecord, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.runs) {
		return v1.RunRecord{}, false
	}
	return m.runs[i], true
}

// ─────────────────────────────────────────────────────────────────────────────
// View
// ─────────────────────────────────────────────────────────────────────────────

func (m *Model) View() string {
	title := fmt.Sprintf("LAUNCHPAD HISTORY  %d runs", len(m.runs))
	if m.cfg.Target != "" {
		title += "  " + m.cfg.Target
	}
	header := m.styles.Header.Width(m.width).Render(title)

	var body string
	switch {
	case m.showDetail:
		body = lipgloss.JoinVertical(lipgloss.Left, m.styles.PanelTitle.Render("STAGES"), m.detail.View())
	case len(m.runs) == 0:
		body = m.styles.Muted.Render("\n  No runs recorded yet. Scaffold a project with `launchpad <target-dir>`.")
	default:
		body = m.table.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.footer())
}

func (m *Model) footer() string {
	if m.lastError != nil {
		return m.styles.Footer.Width(m.width).Render(m.styles.StatusErr.Render("error: " + m.lastError.Error()))
	}
	var parts []string
	for _, b := range m.keys.shortHelp() {
		h := b.Help()
		parts = append(parts, m.styles.FooterKey.Render(h.Key)+" "+h.Desc)
	}
	return m.styles.Footer.Width(m.width).Render(strings.Join(parts, "  "))
}

func (m *Model) renderDetail(rec v1.RunRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run      %s\n", rec.ID)
	fmt.Fprintf(&b, "target   %s\n", rec.Target)
	fmt.Fprintf(&b, "project  %s/%s\n", rec.Project, rec.App)
	fmt.Fprintf(&b, "deploy   %v   dry-run %v\n", rec.Deploy, rec.DryRun)
	if rec.Commit != "" {
		fmt.Fprintf(&b, "commit   %s\n", rec.Commit)
	}
	b.WriteString("\n")

	for _, st := range rec.Stages {
		status := m.statusStyle(st.Status).Render(fmt.Sprintf("%-8s", st.Status))
		fmt.Fprintf(&b, "%s %-27s %8s", status, st.Stage, st.Duration.Round(time.Millisecond))
		if st.Detail != "" {
			fmt.Fprintf(&b, "  %s", st.Detail)
		}
		b.WriteString("\n")
		for _, f := range st.Files {
			fmt.Fprintf(&b, "           %s\n", m.styles.Muted.Render(f))
		}
		if st.Err != "" {
			fmt.Fprintf(&b, "           %s\n", m.styles.StatusErr.Render(st.Err))
		}
	}
	if rec.Error != "" && len(rec.Stages) == 0 {
		b.WriteString(m.styles.StatusErr.Render(rec.Error) + "\n")
	}
	return m.styles.Detail.Render(b.String())
}

func (m *Model) statusStyle(s v1.StageStatus) lipgloss.Style {
	switch s {
	case v1.StageOK:
		return m.styles.StatusOK
	case v1.StageSkipped:
		return m.styles.StatusWarn
	default:
		return m.styles.StatusErr
	}
}

func rows(runs []v1.RunRecord) []table.Row {
	out := make([]table.Row, 0, len(runs))
	for _, r := range runs {
		out = append(out, table.Row{
			r.Started.Local().Format("2006-01-02 15:04"),
			r.Project,
			r.Target,
			string(r.Stage),
			r.Result(),
		})
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Commands
// ─────────────────────────────────────────────────────────────────────────────

func (m *Model) loadRunsCmd() tea.Cmd {
	return func() tea.Msg {
		runs, err := m.cfg.Store.ListRuns(m.cfg.Target)
		if err != nil {
			return errMsg{err}
		}
		return runsMsg(runs)
	}
}

func (m *Model) deleteRunCmd(id string) tea.Cmd {
	return func() tea.Msg {
		if err := m.cfg.Store.DeleteRun(id); err != nil {
			return errMsg{err}
		}
		runs, err := m.cfg.Store.ListRuns(m.cfg.Target)
		if err != nil {
			return errMsg{err}
		}
		return runsMsg(runs)
	}
}
