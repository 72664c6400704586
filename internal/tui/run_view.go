// File: internal/tui/run_view.go

// Package tui renders live run progress in the terminal. It follows The Elm
// Architecture via bubbletea: orchestrator events arrive as messages, Update
// folds them into the model, View draws the step list.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/xkilldash9x/marionette-cli/internal/action"
	"github.com/xkilldash9x/marionette-cli/internal/orchestrator"
)

type stepState int

const (
	stepPending stepState = iota
	stepRunning
	stepRetrying
	stepDone
	stepFailed
)

type step struct {
	action   action.Action
	state    stepState
	attempts int
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	commandStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#CCCCCC"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#5AF78E"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F3F99D"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).MarginTop(1)
)

// RunView is the bubbletea model for one command execution.
type RunView struct {
	command string
	cancel  func()

	spinner  spinner.Model
	steps    []step
	planID   string
	state    orchestrator.State
	reason   string
	canceled bool
	width    int
}

// NewRunView builds the model. cancel is invoked when the user asks to stop;
// the view stays open until the orchestrator reports a terminal state.
func NewRunView(command string, cancel func()) *RunView {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))
	return &RunView{
		command: command,
		cancel:  cancel,
		spinner: sp,
		state:   orchestrator.StateRunning,
	}
}

// Init starts the spinner tick loop.
func (v *RunView) Init() tea.Cmd {
	return v.spinner.Tick
}

// Update folds messages into the model. Orchestrator events are forwarded to
// the running program with Send.
func (v *RunView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		v.width = msg.Width
		return v, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			if !v.state.Terminal() && !v.canceled {
				v.canceled = true
				if v.cancel != nil {
					v.cancel()
				}
			}
			return v, nil
		}

	case orchestrator.Event:
		return v.applyEvent(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd
	}

	return v, nil
}

func (v *RunView) applyEvent(ev orchestrator.Event) (tea.Model, tea.Cmd) {
	switch ev.Type {
	case orchestrator.EventPlanStarted:
		v.planID = ev.PlanID
		v.steps = make([]step, ev.Total)

	case orchestrator.EventActionStarted:
		if ev.Index < len(v.steps) {
			v.steps[ev.Index] = step{action: ev.Action, state: stepRunning, attempts: 1}
		}

	case orchestrator.EventActionRetry:
		if ev.Index < len(v.steps) {
			v.steps[ev.Index].state = stepRetrying
			v.steps[ev.Index].attempts = ev.Attempt + 1
		}

	case orchestrator.EventActionFinished:
		if ev.Index < len(v.steps) {
			st := stepDone
			if ev.Reason != "" {
				st = stepFailed
			}
			v.steps[ev.Index].state = st
			v.steps[ev.Index].attempts = ev.Attempt
		}

	case orchestrator.EventPlanFinished:
		v.state = ev.State
		v.reason = ev.Reason
		return v, tea.Quit
	}
	return v, nil
}

// View renders the step list with one status glyph per action.
func (v *RunView) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("MARIONETTE"))
	b.WriteString("  ")
	b.WriteString(commandStyle.Render(fmt.Sprintf("%q", v.command)))
	b.WriteString("\n\n")

	if len(v.steps) == 0 && !v.state.Terminal() {
		b.WriteString(v.spinner.View())
		b.WriteString(dimStyle.Render(" planning..."))
		b.WriteString("\n")
	}

	for i, s := range v.steps {
		b.WriteString(v.renderStep(i, s))
		b.WriteString("\n")
	}

	b.WriteString(v.renderFooter())
	return b.String()
}

func (v *RunView) renderStep(index int, s step) string {
	label := fmt.Sprintf("%2d. %s", index+1, s.action)
	switch s.state {
	case stepRunning:
		return fmt.Sprintf("%s %s", v.spinner.View(), label)
	case stepRetrying:
		return warnStyle.Render(fmt.Sprintf(" ↻ %s (attempt %d)", label, s.attempts))
	case stepDone:
		return okStyle.Render(" ✓ ") + label
	case stepFailed:
		return failStyle.Render(" ✗ ") + label
	default:
		return dimStyle.Render("    " + label)
	}
}

func (v *RunView) renderFooter() string {
	switch {
	case v.state == orchestrator.StateSucceeded:
		return footerStyle.Render(okStyle.Render("done") + dimStyle.Render(" · "+v.reason))
	case v.state == orchestrator.StateFailed:
		return footerStyle.Render(failStyle.Render("failed") + dimStyle.Render(" · "+v.reason))
	case v.state == orchestrator.StateAborted:
		return footerStyle.Render(warnStyle.Render("aborted") + dimStyle.Render(" · "+v.reason))
	case v.canceled:
		return footerStyle.Render(warnStyle.Render("stopping after the current action..."))
	default:
		return footerStyle.Render(dimStyle.Render("Esc → cancel after the current action"))
	}
}

// FinalState reports the terminal state the view observed.
func (v *RunView) FinalState() (orchestrator.State, string) {
	return v.state, v.reason
}

// Notifier adapts a running program into an orchestrator notifier. Send is
// asynchronous, so the automation loop never waits on the terminal.
func Notifier(p *tea.Program) orchestrator.Notifier {
	return orchestrator.NotifierFunc(func(ev orchestrator.Event) {
		p.Send(ev)
	})
}
