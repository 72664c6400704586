// File: internal/orchestrator/orchestrator.go

// Package orchestrator runs the command lifecycle: plan, then for each action
// capture, execute, capture, verify, with bounded retries. It owns the
// execution state machine; everything else (planner, executor, verifier,
// capturer) is a collaborator behind an interface.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/marionette-cli/internal/action"
	"github.com/xkilldash9x/marionette-cli/internal/config"
	"github.com/xkilldash9x/marionette-cli/internal/desktop"
	"github.com/xkilldash9x/marionette-cli/internal/executor"
	"github.com/xkilldash9x/marionette-cli/internal/grid"
	"github.com/xkilldash9x/marionette-cli/internal/planner"
	"github.com/xkilldash9x/marionette-cli/internal/verify"
)

// ErrSessionBusy marks a Run attempted while another command is already
// executing. One command at a time; overlapping input streams would
// interleave keystrokes.
var ErrSessionBusy = errors.New("a command is already running in this session")

// ActionExecutor performs one action. Satisfied by *executor.Executor.
type ActionExecutor interface {
	Execute(ctx context.Context, act action.Action) (executor.Outcome, error)
}

// Verifier judges whether the screen changed enough between two captures.
// Satisfied by *verify.Engine.
type Verifier interface {
	Verify(pre, post image.Image, region image.Rectangle) verify.Result
}

// Capturer is the screenshot source the orchestrator needs. Satisfied by
// desktop.Capturer implementations.
type Capturer interface {
	Capture(ctx context.Context) (image.Image, error)
}

// Orchestrator drives plans to completion. Safe for concurrent Run calls;
// all but one will fail fast with ErrSessionBusy.
type Orchestrator struct {
	planner  planner.Planner
	executor ActionExecutor
	capturer Capturer
	verifier Verifier
	grid     *grid.Grid
	notifier Notifier

	maxRetries int
	backoff    time.Duration
	settle     time.Duration

	sem    *semaphore.Weighted
	logger *zap.Logger
}

// New wires an orchestrator. notifier may be nil.
func New(
	p planner.Planner,
	exec ActionExecutor,
	capturer Capturer,
	v Verifier,
	g *grid.Grid,
	notifier Notifier,
	retry config.RetryConfig,
	settle time.Duration,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		planner:    p,
		executor:   exec,
		capturer:   capturer,
		verifier:   v,
		grid:       g,
		notifier:   notifier,
		maxRetries: retry.MaxRetries,
		backoff:    retry.Backoff,
		settle:     settle,
		sem:        semaphore.NewWeighted(1),
		logger:     logger.Named("orchestrator"),
	}
}

// Run executes one natural-language command end to end and reports what
// happened. The error return is reserved for pre-execution failures (busy
// session, planning); execution failures are reported through the report's
// State so partial progress is never lost.
func (o *Orchestrator) Run(ctx context.Context, command string) (*RunReport, error) {
	if !o.sem.TryAcquire(1) {
		return nil, ErrSessionBusy
	}
	defer o.sem.Release(1)

	report := &RunReport{Command: command, State: StateRunning, StartedAt: time.Now()}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	plan, err := o.buildPlan(ctx, command)
	if err != nil {
		report.State = StateFailed
		report.Reason = err.Error()
		return report, err
	}
	report.PlanID = plan.ID

	o.logger.Info("plan accepted",
		zap.String("plan_id", plan.ID),
		zap.String("command", command),
		zap.Int("actions", len(plan.Actions)),
	)
	o.notify(Event{Type: EventPlanStarted, PlanID: plan.ID, Command: command, Total: len(plan.Actions)})

	for i, act := range plan.Actions {
		// Cancellation is honored between actions, never mid-injection.
		if ctx.Err() != nil {
			o.finish(report, StateAborted, fmt.Sprintf("canceled before step %d (%s)", i+1, act))
			return report, nil
		}

		o.notify(Event{Type: EventActionStarted, PlanID: plan.ID, Action: act, Index: i, Total: len(plan.Actions)})
		res := o.runAction(ctx, plan.ID, i, len(plan.Actions), act)
		report.Actions = append(report.Actions, res)
		o.notify(Event{
			Type: EventActionFinished, PlanID: plan.ID, Action: act,
			Index: i, Total: len(plan.Actions),
			Attempt: res.Attempts, Verdict: res.Verdict, Reason: res.Error,
		})

		if res.Error != "" {
			if ctx.Err() != nil {
				o.finish(report, StateAborted, fmt.Sprintf("canceled during step %d (%s)", i+1, act))
				return report, nil
			}
			o.finish(report, StateFailed, fmt.Sprintf("step %d (%s): %s", i+1, act, res.Error))
			return report, nil
		}
	}

	o.finish(report, StateSucceeded, fmt.Sprintf("completed %d actions", len(plan.Actions)))
	return report, nil
}

func (o *Orchestrator) buildPlan(ctx context.Context, command string) (action.Plan, error) {
	screen, err := o.capturer.Capture(ctx)
	if err != nil {
		return action.Plan{}, fmt.Errorf("capturing screen for planning: %w", err)
	}
	return o.planner.Plan(ctx, command, screen)
}

// runAction drives one action through the attempt loop. An ambiguous verdict
// buys one re-capture per attempt without consuming the retry budget; a
// failed verdict or a retryable execution error consumes one retry.
func (o *Orchestrator) runAction(ctx context.Context, planID string, index, total int, act action.Action) ActionResult {
	res := ActionResult{Action: act}

	for attempt := 0; ; attempt++ {
		res.Attempts = attempt + 1
		if attempt > 0 {
			o.notify(Event{Type: EventActionRetry, PlanID: planID, Action: act, Index: index, Total: total, Attempt: attempt})
			if err := o.sleep(ctx, o.backoff); err != nil {
				res.Error = err.Error()
				return res
			}
		}

		verdict, outcome, err := o.attempt(ctx, act)
		res.Outcome = outcome
		res.Verdict = verdict
		if err == nil {
			res.Error = ""
			return res
		}
		res.Error = err.Error()

		if !retryable(err) || attempt >= o.maxRetries {
			return res
		}
		o.logger.Warn("action attempt failed, retrying",
			zap.String("plan_id", planID),
			zap.String("action", act.String()),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
}

// attempt performs one capture-execute-capture-verify cycle.
func (o *Orchestrator) attempt(ctx context.Context, act action.Action) (verify.Verdict, executor.Outcome, error) {
	verified := needsVerification(act)

	var pre image.Image
	if verified {
		var err error
		pre, err = o.capturer.Capture(ctx)
		if err != nil {
			return verify.Failed, executor.Outcome{}, fmt.Errorf("pre-action capture: %w", err)
		}
	}

	outcome, err := o.executor.Execute(ctx, act)
	if err != nil {
		return verify.Failed, outcome, err
	}
	if !verified {
		return verify.Confirmed, outcome, nil
	}

	region := o.verifyRegion(act)
	verdict, err := o.settleAndVerify(ctx, pre, region)
	if err != nil {
		return verify.Failed, outcome, err
	}
	if verdict == verify.Ambiguous {
		// One extra settle-and-capture to let animations land. Not charged
		// against the retry budget; the action is not re-executed.
		o.logger.Debug("ambiguous verification, re-capturing", zap.String("action", act.String()))
		verdict, err = o.settleAndVerify(ctx, pre, region)
		if err != nil {
			return verify.Failed, outcome, err
		}
	}

	if verdict == verify.Confirmed {
		return verdict, outcome, nil
	}
	return verdict, outcome, fmt.Errorf("screen did not change as expected (verdict %s)", verdict)
}

func (o *Orchestrator) settleAndVerify(ctx context.Context, pre image.Image, region image.Rectangle) (verify.Verdict, error) {
	if err := o.sleep(ctx, o.settle); err != nil {
		return verify.Failed, err
	}
	post, err := o.capturer.Capture(ctx)
	if err != nil {
		return verify.Failed, fmt.Errorf("post-action capture: %w", err)
	}
	return o.verifier.Verify(pre, post, region).Verdict, nil
}

// verifyRegion narrows verification to the clicked cell's neighborhood for
// targeted actions; everything else compares the full frame.
func (o *Orchestrator) verifyRegion(act action.Action) image.Rectangle {
	if !act.Targeted() {
		return image.Rectangle{}
	}
	region, err := o.grid.Neighborhood(act.Cell)
	if err != nil {
		// Unresolvable cells fail in the executor first; this is a fallback.
		return image.Rectangle{}
	}
	return region
}

// needsVerification reports whether the action's effect is judged by
// screenshot comparison. Terminal commands are judged by exit code and waits
// have no expected effect.
func needsVerification(act action.Action) bool {
	switch act.Kind {
	case action.KindType, action.KindClick, action.KindHotkey:
		return true
	default:
		return false
	}
}

// retryable classifies failures. Unresolvable targets and unsupported combos
// will fail identically on every attempt, command failures already ran to
// completion once, and context errors mean the session is shutting down.
func retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, executor.ErrTargetUnresolvable):
		return false
	case errors.Is(err, executor.ErrCommandExecution):
		return false
	case errors.Is(err, desktop.ErrUnsupportedKeyCombo):
		return false
	default:
		return true
	}
}

func (o *Orchestrator) finish(report *RunReport, state State, reason string) {
	report.State = state
	report.Reason = reason
	o.logger.Info("run finished",
		zap.String("plan_id", report.PlanID),
		zap.String("state", string(state)),
		zap.String("reason", reason),
	)
	o.notify(Event{Type: EventPlanFinished, PlanID: report.PlanID, Command: report.Command, State: state, Reason: reason})
}

func (o *Orchestrator) notify(ev Event) {
	if o.notifier != nil {
		o.notifier.Notify(ev)
	}
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
