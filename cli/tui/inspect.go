package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/forge/journal"
)

// InspectModel is a Bubble Tea model for inspect views.
type InspectModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	return InspectModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "inspect_run":
		content = m.renderInspectRun()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m InspectModel) renderInspectRun() string {
	data, ok := m.data.(*journal.Summary)
	if !ok {
		return "Invalid data type for inspect_run"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Run Journal"))
	b.WriteString("\n\n")

	completeness := "complete"
	if !data.Complete {
		completeness = "truncated"
	}

	rows := [][]string{
		{"Run ID", data.RunID},
		{"Journal", fmt.Sprintf("v%s (%s)", data.JournalVersion, completeness)},
		{"Events", fmt.Sprintf("%d", data.Events)},
		{"Artifacts", fmt.Sprintf("%d", data.Artifacts)},
		{"Alerts", fmt.Sprintf("%d", data.Alerts)},
	}
	if data.FirstTs != "" {
		rows = append(rows, []string{"First Event", data.FirstTs})
	}
	if data.LastTs != "" {
		rows = append(rows, []string{"Last Event", data.LastTs})
	}

	for _, row := range rows {
		label := LabelStyle.Render(row[0] + ":")
		value := ValueStyle.Render(row[1])
		b.WriteString(fmt.Sprintf("%s %s\n", label, value))
	}

	if len(data.Actions) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Actions"))
		b.WriteString("\n")
		for _, a := range data.Actions {
			status := StateStyle(string(a.Status)).Render(string(a.Status))
			line := fmt.Sprintf("  %s  %-16s %s", status, a.Type, a.FilePath)
			b.WriteString(strings.TrimRight(line, " "))
			b.WriteString("\n")
			if a.Error != "" {
				b.WriteString(ErrorStyle.Render("      " + a.Error))
				b.WriteString("\n")
			}
		}
	}

	return BoxStyle.Render(b.String())
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	model := NewInspectModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
