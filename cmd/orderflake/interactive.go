package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/unbound-force/orderflake/internal/report"
	"github.com/unbound-force/orderflake/internal/taxonomy"
)

// keyMap defines keybindings for the interactive TUI.
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Next     key.Binding
	Prev     key.Binding
	Quit     key.Binding
	Help     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.Quit, k.Help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Next, k.Prev},
		{k.Quit, k.Help},
	}
}

var defaultKeyMap = keyMap{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("^/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("v/j", "down")),
	PageUp:   key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up")),
	PageDown: key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down")),
	Next:     key.NewBinding(key.WithKeys("n", "tab"), key.WithHelp("n", "next finding")),
	Prev:     key.NewBinding(key.WithKeys("p", "shift+tab"), key.WithHelp("p", "previous finding")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

// Styles for the TUI.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")).
			MarginBottom(1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	tuiHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("208"))
)

// scanModel is the Bubble Tea model for browsing scan findings.
type scanModel struct {
	rpt      *taxonomy.Report
	selected int
	viewport viewport.Model
	help     help.Model
	keys     keyMap
	ready    bool
}

func newScanModel(rpt *taxonomy.Report) scanModel {
	if rpt == nil {
		rpt = &taxonomy.Report{}
	}
	return scanModel{
		rpt:  rpt,
		help: help.New(),
		keys: defaultKeyMap,
	}
}

// renderScanContent renders every finding with its evidence table,
// highlighting the selected one.
func renderScanContent(rpt *taxonomy.Report, selected int) string {
	var sb strings.Builder
	s := report.DefaultStyles()

	sb.WriteString(titleStyle.Render(
		fmt.Sprintf("orderflake: %d flaky test(s) in %d file(s), %d skipped",
			len(rpt.Findings), rpt.Summary.FilesScanned, len(rpt.Skipped))))
	sb.WriteString("\n\n")

	for i, f := range rpt.Findings {
		header := tuiHeaderStyle
		marker := "  "
		if i == selected {
			header = selectedStyle
			marker = "> "
		}
		sb.WriteString(header.Render(fmt.Sprintf("%s%s", marker, f.QualifiedName())))
		sb.WriteString("\n")
		sb.WriteString(statusStyle.Render(fmt.Sprintf("    %s:%d", f.File, f.Line)))
		sb.WriteString("\n")
		if len(f.Evidence) > 0 {
			sb.WriteString(report.EvidenceTable(f, s))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	for _, sk := range rpt.Skipped {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("skipped %s: %s", sk.Path, sk.Reason)))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m scanModel) Init() tea.Cmd {
	return nil
}

func (m scanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		headerHeight := 0
		footerHeight := 2
		verticalMargin := headerHeight + footerHeight

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-verticalMargin)
			m.viewport.SetContent(renderScanContent(m.rpt, m.selected))
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - verticalMargin
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.Next):
			m.selectFinding(m.selected + 1)
			return m, nil
		case key.Matches(msg, m.keys.Prev):
			m.selectFinding(m.selected - 1)
			return m, nil
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// selectFinding moves the highlight, wrapping at both ends.
func (m *scanModel) selectFinding(i int) {
	n := len(m.rpt.Findings)
	if n == 0 {
		return
	}
	m.selected = (i%n + n) % n
	if m.ready {
		m.viewport.SetContent(renderScanContent(m.rpt, m.selected))
	}
}

func (m scanModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	footer := statusStyle.Render(
		fmt.Sprintf(" %3.f%% ", m.viewport.ScrollPercent()*100)) +
		" " + m.help.View(m.keys)

	return m.viewport.View() + "\n" + footer
}

// runInteractiveScan launches the Bubble Tea TUI for browsing scan
// findings.
func runInteractiveScan(rpt *taxonomy.Report) error {
	model := newScanModel(rpt)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
