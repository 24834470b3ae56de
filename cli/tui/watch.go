package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/justapithecus/forge/types"
)

// Messages the run loop sends into the watch program.
type (
	// ActionUpdateMsg carries an action status change.
	ActionUpdateMsg types.ActionSnapshot
	// AlertMsg carries a broadcast alert.
	AlertMsg types.Alert
	// RunDoneMsg terminates the watch view with the final report.
	RunDoneMsg struct {
		Report *types.RunReport
	}
)

// WatchModel is the live status view behind `forge run --watch`.
// It renders the per-action lifecycle as updates arrive; the run loop
// owns execution and feeds the model through Watch.Send.
type WatchModel struct {
	spinner spinner.Model
	order   []string
	actions map[string]types.ActionSnapshot
	alerts  []types.Alert
	report  *types.RunReport
	done    bool
}

// NewWatchModel creates an empty watch model.
func NewWatchModel() WatchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = WarningStyle
	return WatchModel{
		spinner: sp,
		actions: make(map[string]types.ActionSnapshot),
	}
}

// Init implements tea.Model.
func (m WatchModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ActionUpdateMsg:
		snap := types.ActionSnapshot(msg)
		if _, seen := m.actions[snap.Action.ID]; !seen {
			m.order = append(m.order, snap.Action.ID)
		}
		m.actions[snap.Action.ID] = snap
		return m, nil

	case AlertMsg:
		m.alerts = append(m.alerts, types.Alert(msg))
		return m, nil

	case RunDoneMsg:
		m.done = true
		m.report = msg.Report
		return m, tea.Quit
	}

	return m, nil
}

// View implements tea.Model.
func (m WatchModel) View() string {
	var b strings.Builder

	if m.done {
		b.WriteString(TitleStyle.Render("Run finished"))
	} else {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(TitleStyle.Render("Executing actions"))
	}
	b.WriteString("\n\n")

	for _, id := range m.order {
		snap := m.actions[id]
		status := StateStyle(string(snap.Status)).Render(fmt.Sprintf("%-8s", snap.Status))
		target := snap.Action.FilePath
		if target == "" {
			target = firstLine(snap.Action.Content)
		}
		b.WriteString(fmt.Sprintf("  %s %-16s %s\n", status, snap.Action.Type, target))
		if snap.Error != "" {
			b.WriteString(ErrorStyle.Render("           " + snap.Error))
			b.WriteString("\n")
		}
	}

	for _, alert := range m.alerts {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render("! " + alert.Title + ": " + alert.Description))
		b.WriteString("\n")
	}

	if m.done && m.report != nil {
		b.WriteString("\n")
		outcome := StateStyle(string(m.report.Outcome)).Render(string(m.report.Outcome))
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Outcome:"), outcome))
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Duration:"), ValueStyle.Render(m.report.Duration.String())))
	} else {
		b.WriteString(HelpStyle.Render("\nPress q to detach (the run continues)"))
		b.WriteString("\n")
	}

	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const max = 60
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}

// Watch wraps a running Bubble Tea program fed by the run loop.
type Watch struct {
	program *tea.Program
	errCh   chan error
}

// NewWatch starts the live status program. Callers must eventually call
// Wait to reap it.
func NewWatch() *Watch {
	p := tea.NewProgram(NewWatchModel())
	w := &Watch{program: p, errCh: make(chan error, 1)}
	go func() {
		_, err := p.Run()
		w.errCh <- err
	}()
	return w
}

// Send forwards a message to the watch program. Safe to call from any
// goroutine.
func (w *Watch) Send(msg tea.Msg) {
	w.program.Send(msg)
}

// Done signals run completion and blocks until the program exits.
func (w *Watch) Done(report *types.RunReport) error {
	w.program.Send(RunDoneMsg{Report: report})
	return <-w.errCh
}
