// File: internal/tui/run_view_test.go
package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/marionette-cli/internal/action"
	"github.com/xkilldash9x/marionette-cli/internal/orchestrator"
)

func typeAction(text string) action.Action {
	return action.Action{Kind: action.KindType, Text: text}
}

func feed(t *testing.T, v *RunView, msgs ...tea.Msg) *RunView {
	t.Helper()
	var model tea.Model = v
	for _, msg := range msgs {
		model, _ = model.Update(msg)
	}
	rv, ok := model.(*RunView)
	require.True(t, ok)
	return rv
}

func TestRunViewTracksActionProgress(t *testing.T) {
	t.Parallel()
	v := NewRunView("open notes", nil)

	v = feed(t, v,
		orchestrator.Event{Type: orchestrator.EventPlanStarted, PlanID: "p1", Total: 2},
		orchestrator.Event{Type: orchestrator.EventActionStarted, Index: 0, Action: typeAction("notes")},
		orchestrator.Event{Type: orchestrator.EventActionFinished, Index: 0, Action: typeAction("notes"), Attempt: 1},
		orchestrator.Event{Type: orchestrator.EventActionStarted, Index: 1, Action: typeAction("more")},
	)

	require.Len(t, v.steps, 2)
	assert.Equal(t, stepDone, v.steps[0].state)
	assert.Equal(t, stepRunning, v.steps[1].state)

	out := v.View()
	assert.Contains(t, out, "TYPE:notes")
	assert.Contains(t, out, "✓")
}

func TestRunViewMarksRetriesAndFailures(t *testing.T) {
	t.Parallel()
	v := NewRunView("open notes", nil)

	v = feed(t, v,
		orchestrator.Event{Type: orchestrator.EventPlanStarted, PlanID: "p1", Total: 1},
		orchestrator.Event{Type: orchestrator.EventActionStarted, Index: 0, Action: typeAction("x")},
		orchestrator.Event{Type: orchestrator.EventActionRetry, Index: 0, Attempt: 1},
	)
	assert.Equal(t, stepRetrying, v.steps[0].state)
	assert.Contains(t, v.View(), "attempt 2")

	v = feed(t, v, orchestrator.Event{
		Type: orchestrator.EventActionFinished, Index: 0,
		Attempt: 3, Reason: "screen did not change",
	})
	assert.Equal(t, stepFailed, v.steps[0].state)
	assert.Contains(t, v.View(), "✗")
}

func TestRunViewQuitsOnPlanFinished(t *testing.T) {
	t.Parallel()
	v := NewRunView("open notes", nil)

	model, cmd := v.Update(orchestrator.Event{
		Type: orchestrator.EventPlanFinished, State: orchestrator.StateSucceeded, Reason: "completed 2 actions",
	})
	require.NotNil(t, cmd, "terminal state must quit the program")

	rv := model.(*RunView)
	state, reason := rv.FinalState()
	assert.Equal(t, orchestrator.StateSucceeded, state)
	assert.Equal(t, "completed 2 actions", reason)
	assert.Contains(t, rv.View(), "done")
}

func TestRunViewEscCancelsOnce(t *testing.T) {
	t.Parallel()
	calls := 0
	v := NewRunView("open notes", func() { calls++ })

	v = feed(t, v,
		tea.KeyMsg{Type: tea.KeyEsc},
		tea.KeyMsg{Type: tea.KeyEsc},
	)
	assert.Equal(t, 1, calls, "cancel fires once")
	assert.True(t, v.canceled)
	assert.Contains(t, v.View(), "stopping")
}

func TestRunViewIgnoresCancelAfterTerminalState(t *testing.T) {
	t.Parallel()
	calls := 0
	v := NewRunView("open notes", func() { calls++ })

	v = feed(t, v,
		orchestrator.Event{Type: orchestrator.EventPlanFinished, State: orchestrator.StateFailed, Reason: "step 1 failed"},
		tea.KeyMsg{Type: tea.KeyEsc},
	)
	assert.Zero(t, calls)
	assert.Contains(t, v.View(), "failed")
}
