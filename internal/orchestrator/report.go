// File: internal/orchestrator/report.go
package orchestrator

import (
	"time"

	"github.com/xkilldash9x/marionette-cli/internal/action"
	"github.com/xkilldash9x/marionette-cli/internal/executor"
	"github.com/xkilldash9x/marionette-cli/internal/verify"
)

// State is the lifecycle state of one plan execution.
type State string

const (
	// StateRunning means actions are still being executed.
	StateRunning State = "running"
	// StateSucceeded means every action was executed and confirmed.
	StateSucceeded State = "succeeded"
	// StateFailed means an action exhausted its retries or hit a fatal error.
	StateFailed State = "failed"
	// StateAborted means the user canceled between actions.
	StateAborted State = "aborted"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool { return s != StateRunning }

// ActionResult records how one action fared, including its last outcome.
type ActionResult struct {
	Action   action.Action    `json:"action"`
	Attempts int              `json:"attempts"`
	Verdict  verify.Verdict   `json:"verdict"`
	Outcome  executor.Outcome `json:"outcome"`
	Error    string           `json:"error,omitempty"`
}

// Succeeded reports whether the action ultimately completed.
func (r ActionResult) Succeeded() bool { return r.Error == "" }

// RunReport is the full record of one command execution: the plan identity,
// the terminal state with a human-readable reason, and per-action results up
// to the point execution stopped.
type RunReport struct {
	PlanID    string         `json:"plan_id"`
	Command   string         `json:"command"`
	State     State          `json:"state"`
	Reason    string         `json:"reason"`
	Actions   []ActionResult `json:"actions"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
}

// EventType enumerates progress notifications.
type EventType string

const (
	EventPlanStarted    EventType = "plan_started"
	EventActionStarted  EventType = "action_started"
	EventActionRetry    EventType = "action_retry"
	EventActionFinished EventType = "action_finished"
	EventPlanFinished   EventType = "plan_finished"
)

// Event is one progress notification. Fields beyond Type and PlanID are
// populated where they make sense for the event type.
type Event struct {
	Type    EventType
	PlanID  string
	Command string
	Action  action.Action
	Index   int
	Total   int
	Attempt int
	Verdict verify.Verdict
	State   State
	Reason  string
}

// Notifier receives progress events during a run. Implementations must not
// block; a slow notifier stalls the automation loop between actions.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Event)

// Notify calls the function.
func (f NotifierFunc) Notify(ev Event) { f(ev) }
