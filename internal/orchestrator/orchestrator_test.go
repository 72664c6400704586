// File: internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette-cli/internal/action"
	"github.com/xkilldash9x/marionette-cli/internal/config"
	"github.com/xkilldash9x/marionette-cli/internal/executor"
	"github.com/xkilldash9x/marionette-cli/internal/grid"
	"github.com/xkilldash9x/marionette-cli/internal/verify"
)

// -- Fakes --

type fakePlanner struct {
	plan action.Plan
	err  error
}

func (f *fakePlanner) Plan(ctx context.Context, command string, _ image.Image) (action.Plan, error) {
	if f.err != nil {
		return action.Plan{}, f.err
	}
	return f.plan, nil
}

// fakeExecutor records executed actions; errFor can fail specific calls.
type fakeExecutor struct {
	mu      sync.Mutex
	calls   []action.Action
	errFor  func(call int, act action.Action) error
	block   chan struct{} // when set, Execute blocks until closed
	entered chan struct{}
}

func (f *fakeExecutor) Execute(ctx context.Context, act action.Action) (executor.Outcome, error) {
	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, act)
	f.mu.Unlock()

	if f.entered != nil && n == 0 {
		close(f.entered)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return executor.Outcome{Action: act}, ctx.Err()
		}
	}
	if f.errFor != nil {
		if err := f.errFor(n, act); err != nil {
			return executor.Outcome{Action: act}, err
		}
	}
	return executor.Outcome{Action: act}, nil
}

func (f *fakeExecutor) executed() []action.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]action.Action(nil), f.calls...)
}

// fakeCapturer serves a constant frame and counts captures.
type fakeCapturer struct {
	mu    sync.Mutex
	count int
}

func (f *fakeCapturer) Capture(ctx context.Context) (image.Image, error) {
	f.mu.Lock()
	f.count++
	f.mu.Unlock()
	return image.NewRGBA(image.Rect(0, 0, 10, 10)), nil
}

func (f *fakeCapturer) captures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

// fakeVerifier returns scripted verdicts per Verify call, Confirmed once the
// script runs out.
type fakeVerifier struct {
	mu      sync.Mutex
	script  []verify.Verdict
	calls   int
	regions []image.Rectangle
}

func (f *fakeVerifier) Verify(pre, post image.Image, region image.Rectangle) verify.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := verify.Confirmed
	if f.calls < len(f.script) {
		v = f.script[f.calls]
	}
	f.calls++
	f.regions = append(f.regions, region)
	return verify.Result{Verdict: v, Region: region}
}

// eventRecorder collects notifications; onEvent fires synchronously.
type eventRecorder struct {
	mu      sync.Mutex
	events  []Event
	onEvent func(Event)
}

func (r *eventRecorder) Notify(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	cb := r.onEvent
	r.mu.Unlock()
	if cb != nil {
		cb(ev)
	}
}

func (r *eventRecorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

// -- Fixture --

type fixture struct {
	Planner  *fakePlanner
	Executor *fakeExecutor
	Capturer *fakeCapturer
	Verifier *fakeVerifier
	Events   *eventRecorder
	Orch     *Orchestrator
}

func launchPlan(command string) action.Plan {
	return action.NewPlan(command, []action.Action{
		{Kind: action.KindHotkey, Keys: "command+space"},
		{Kind: action.KindType, Text: "notes"},
		{Kind: action.KindHotkey, Keys: "enter"},
	})
}

func setupOrchestrator(t *testing.T, plan action.Plan) *fixture {
	t.Helper()
	g, err := grid.Build(image.Rect(0, 0, 400, 400), 4, 4)
	require.NoError(t, err)

	f := &fixture{
		Planner:  &fakePlanner{plan: plan},
		Executor: &fakeExecutor{},
		Capturer: &fakeCapturer{},
		Verifier: &fakeVerifier{},
		Events:   &eventRecorder{},
	}
	f.Orch = New(
		f.Planner, f.Executor, f.Capturer, f.Verifier, g, f.Events,
		config.RetryConfig{MaxRetries: 2, Backoff: time.Millisecond},
		0, // no settle pause in tests
		zap.NewNop(),
	)
	return f
}

// -- Tests --

func TestRunHappyPath(t *testing.T) {
	t.Parallel()
	f := setupOrchestrator(t, launchPlan("open notes"))

	report, err := f.Orch.Run(context.Background(), "open notes")
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, report.State)
	require.Len(t, report.Actions, 3)
	for _, res := range report.Actions {
		assert.True(t, res.Succeeded())
		assert.Equal(t, 1, res.Attempts)
		assert.Equal(t, verify.Confirmed, res.Verdict)
	}
	assert.Len(t, f.Executor.executed(), 3)

	assert.Equal(t, []EventType{
		EventPlanStarted,
		EventActionStarted, EventActionFinished,
		EventActionStarted, EventActionFinished,
		EventActionStarted, EventActionFinished,
		EventPlanFinished,
	}, f.Events.types())
}

func TestRunRetriesExhaustAndHalt(t *testing.T) {
	t.Parallel()
	f := setupOrchestrator(t, launchPlan("open notes"))
	// Action 1 confirms; every verification after that reports no change, so
	// action 2 burns its full budget and action 3 never runs.
	f.Verifier.script = []verify.Verdict{
		verify.Confirmed,
		verify.Failed, verify.Failed, verify.Failed,
	}

	report, err := f.Orch.Run(context.Background(), "open notes")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, report.State)
	require.Len(t, report.Actions, 2)
	assert.Equal(t, 3, report.Actions[1].Attempts, "initial attempt plus two retries")

	executed := f.Executor.executed()
	require.Len(t, executed, 4, "action 2 executed three times, action 3 never")
	assert.Equal(t, action.KindType, executed[1].Kind)
	assert.Equal(t, action.KindType, executed[3].Kind)
	assert.Contains(t, report.Reason, "step 2")
}

func TestRunAmbiguousRecaptureNotChargedToRetries(t *testing.T) {
	t.Parallel()
	plan := action.NewPlan("press enter", []action.Action{{Kind: action.KindHotkey, Keys: "enter"}})
	f := setupOrchestrator(t, plan)
	f.Verifier.script = []verify.Verdict{verify.Ambiguous, verify.Confirmed}

	report, err := f.Orch.Run(context.Background(), "press enter")
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, report.State)
	assert.Equal(t, 1, report.Actions[0].Attempts)
	assert.Len(t, f.Executor.executed(), 1, "ambiguity re-captures, never re-executes")

	// Planning frame, pre frame, post frame, and one extra ambiguous frame.
	assert.Equal(t, 4, f.Capturer.captures())
	assert.Equal(t, 2, f.Verifier.calls)
	assert.NotContains(t, f.Events.types(), EventActionRetry)
}

func TestRunCancelBetweenActionsAborts(t *testing.T) {
	t.Parallel()
	f := setupOrchestrator(t, launchPlan("open notes"))

	ctx, cancel := context.WithCancel(context.Background())
	f.Events.onEvent = func(ev Event) {
		if ev.Type == EventActionFinished && ev.Index == 0 {
			cancel()
		}
	}

	report, err := f.Orch.Run(ctx, "open notes")
	require.NoError(t, err)
	assert.Equal(t, StateAborted, report.State)
	assert.Len(t, report.Actions, 1, "only the first action ran")
	assert.Len(t, f.Executor.executed(), 1)
	assert.Contains(t, report.Reason, "canceled")
}

func TestRunNonRetryableFailureFailsFast(t *testing.T) {
	t.Parallel()
	plan := action.NewPlan("click it", []action.Action{{Kind: action.KindClick, Cell: "zz99"}})
	f := setupOrchestrator(t, plan)
	f.Executor.errFor = func(call int, act action.Action) error {
		return fmt.Errorf("%w: no such cell", executor.ErrTargetUnresolvable)
	}

	report, err := f.Orch.Run(context.Background(), "click it")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, 1, report.Actions[0].Attempts, "unresolvable targets are not retried")
}

func TestRunTerminalActionSkipsScreenVerification(t *testing.T) {
	t.Parallel()
	plan := action.NewPlan("run ls", []action.Action{{Kind: action.KindTerminal, Command: "ls"}})
	f := setupOrchestrator(t, plan)

	report, err := f.Orch.Run(context.Background(), "run ls")
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, report.State)
	assert.Equal(t, 1, f.Capturer.captures(), "only the planning frame is captured")
	assert.Zero(t, f.Verifier.calls)
}

func TestRunTerminalFailureIsFatal(t *testing.T) {
	t.Parallel()
	plan := action.NewPlan("run boom", []action.Action{
		{Kind: action.KindTerminal, Command: "boom"},
		{Kind: action.KindType, Text: "never typed"},
	})
	f := setupOrchestrator(t, plan)
	f.Executor.errFor = func(call int, act action.Action) error {
		if act.Kind == action.KindTerminal {
			return fmt.Errorf("%w: exit 127", executor.ErrCommandExecution)
		}
		return nil
	}

	report, err := f.Orch.Run(context.Background(), "run boom")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, report.State)
	assert.Len(t, f.Executor.executed(), 1, "command failure halts without retry")
}

func TestRunPlanningFailureReturnsError(t *testing.T) {
	t.Parallel()
	f := setupOrchestrator(t, action.Plan{})
	f.Planner.err = errors.New("model unavailable")

	report, err := f.Orch.Run(context.Background(), "open notes")
	require.Error(t, err)
	assert.Equal(t, StateFailed, report.State)
	assert.Empty(t, f.Executor.executed())
}

func TestRunRejectsConcurrentSession(t *testing.T) {
	t.Parallel()
	plan := action.NewPlan("run sleep", []action.Action{{Kind: action.KindTerminal, Command: "sleep"}})
	f := setupOrchestrator(t, plan)
	f.Executor.block = make(chan struct{})
	f.Executor.entered = make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := f.Orch.Run(context.Background(), "run sleep")
		assert.NoError(t, err)
	}()

	<-f.Executor.entered
	_, err := f.Orch.Run(context.Background(), "second command")
	assert.ErrorIs(t, err, ErrSessionBusy)

	close(f.Executor.block)
	<-done

	// The session frees up once the first run completes.
	_, err = f.Orch.Run(context.Background(), "run sleep")
	assert.NoError(t, err)
}

func TestRunNarrowsRegionForClicks(t *testing.T) {
	t.Parallel()
	plan := action.NewPlan("click", []action.Action{
		{Kind: action.KindClick, Cell: "ab02"},
		{Kind: action.KindType, Text: "hi"},
	})
	f := setupOrchestrator(t, plan)

	_, err := f.Orch.Run(context.Background(), "click")
	require.NoError(t, err)
	require.Len(t, f.Verifier.regions, 2)
	// The click verifies against the cell neighborhood, the typing against
	// the full frame.
	assert.False(t, f.Verifier.regions[0].Empty())
	assert.True(t, f.Verifier.regions[1].Empty())
}

func TestStateTerminal(t *testing.T) {
	t.Parallel()
	assert.False(t, StateRunning.Terminal())
	assert.True(t, StateSucceeded.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.True(t, StateAborted.Terminal())
}
