package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/modhost/host"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateLoading modelState = iota
	stateBrowse
	stateFilter
	stateDetail
)

type reportMsg struct {
	err error
	rep *host.Report
}

type interactiveModel struct {
	ctx     context.Context
	err     error
	host    *host.Host
	root    string
	rows    []row
	visible []row
	filter  textinput.Model
	table   table.Model
	state   modelState
	load    bool
}

func newInteractiveModel(ctx context.Context, h *host.Host, root string, load bool) *interactiveModel {
	ti := textinput.New()
	ti.Prompt = "filter: "
	ti.Placeholder = "mod name"
	ti.Width = 40

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Mod", Width: 28},
			{Title: "Version", Width: 10},
			{Title: "Status", Width: 8},
			{Title: "Details", Width: 60},
		}),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	styles := table.DefaultStyles()
	styles.Selected = selectedStyle
	t.SetStyles(styles)

	return &interactiveModel{
		ctx:    ctx,
		host:   h,
		root:   root,
		load:   load,
		filter: ti,
		table:  t,
		state:  stateLoading,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.runPass
}

func (m *interactiveModel) runPass() tea.Msg {
	rep, err := pass(m.ctx, m.host, m.load)
	return reportMsg{rep: rep, err: err}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if h := msg.Height - 8; h > 3 {
			m.table.SetHeight(h)
		}

	case reportMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		if msg.rep != nil {
			m.rows = reportRows(msg.rep, m.load)
			m.applyFilter()
		}
		m.state = stateBrowse
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.state {
		case stateFilter:
			switch msg.String() {
			case "enter", "esc":
				m.filter.Blur()
				m.table.Focus()
				m.state = stateBrowse
				return m, nil
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			m.applyFilter()
			return m, cmd

		case stateDetail:
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "esc", "enter":
				m.state = stateBrowse
			}
			return m, nil

		case stateBrowse:
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "/":
				m.table.Blur()
				m.state = stateFilter
				return m, m.filter.Focus()
			case "esc":
				m.filter.SetValue("")
				m.applyFilter()
				return m, nil
			case "enter":
				if len(m.visible) > 0 {
					m.state = stateDetail
				}
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *interactiveModel) applyFilter() {
	q := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	m.visible = m.visible[:0]
	rows := make([]table.Row, 0, len(m.rows))
	for _, r := range m.rows {
		if q != "" && !strings.Contains(strings.ToLower(r.name), q) {
			continue
		}
		m.visible = append(m.visible, r)
		rows = append(rows, table.Row{r.name, r.version, r.state.String(), r.detail})
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(max(len(rows)-1, 0))
	}
}

func (m *interactiveModel) View() string {
	if m.state == stateLoading {
		return "Loading mods from " + m.root + "..."
	}

	var b strings.Builder
	title := "modhost load"
	if !m.load {
		title = "modhost check"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString(" ")
	b.WriteString(m.root)
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
	}

	if m.state == stateDetail {
		m.writeDetail(&b, m.visible[m.table.Cursor()])
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("esc back • q quit"))
		return b.String()
	}

	b.WriteString(m.table.View())
	b.WriteString("\n")
	if m.state == stateFilter || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
		b.WriteString("\n")
	}
	b.WriteString(m.summary())
	b.WriteString("\n")
	if m.state == stateFilter {
		b.WriteString(helpStyle.Render("enter/esc done"))
	} else {
		b.WriteString(helpStyle.Render("↑/↓ select • enter details • / filter • esc clear • q quit"))
	}
	return b.String()
}

func (m *interactiveModel) summary() string {
	var ok, failed, skipped int
	for _, r := range m.rows {
		switch r.state {
		case rowLoaded, rowChecked:
			ok++
		case rowFailed:
			failed++
		default:
			skipped++
		}
	}
	return okStyle.Render(fmt.Sprintf("%d ok", ok)) + "  " +
		errorStyle.Render(fmt.Sprintf("%d failed", failed)) + "  " +
		helpStyle.Render(fmt.Sprintf("%d ignored", skipped))
}

func (m *interactiveModel) writeDetail(b *strings.Builder, r row) {
	field := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-12s", label)))
		b.WriteString(value)
		b.WriteString("\n")
	}

	rec := r.rec
	field("Name", r.name)
	field("ID", rec.ID())
	field("Version", r.version)
	field("Author", r.author)
	field("Folder", rec.RelativePathWithRoot())
	field("Status", r.state.String())
	if rec.Failed() {
		field("Reason", rec.FailReason.String())
		b.WriteString(errorStyle.Render(rec.Error))
		b.WriteString("\n")
		field("Details", rec.ErrorDetails)
	}
	if w := rec.Warnings(); w != 0 {
		field("Warnings", w.String())
	}
	if rec.Manifest == nil {
		return
	}
	if rec.Manifest.EntryBinary != "" {
		field("Binary", rec.Manifest.EntryBinary)
	}
	for _, d := range rec.Manifest.Dependencies {
		dep := d.UniqueID
		if d.MinimumVersion != nil {
			dep += " >= " + d.MinimumVersion.String()
		}
		if !d.IsRequired {
			dep += " (optional)"
		}
		field("Needs", dep)
	}
}

func runInteractive(ctx context.Context, h *host.Host, root string, load bool) error {
	p := tea.NewProgram(newInteractiveModel(ctx, h, root, load), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
