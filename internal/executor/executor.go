// File: internal/executor/executor.go

// Package executor performs single typed actions: input injection for
// TYPE/CLICK/HOTKEY, shell invocation for TERMINAL. Side effects are real OS
// events and processes; nothing here is idempotent, and gating re-execution
// behind verification is the orchestrator's job.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette-cli/internal/action"
	"github.com/xkilldash9x/marionette-cli/internal/desktop"
	"github.com/xkilldash9x/marionette-cli/internal/grid"
)

// ErrTargetUnresolvable marks a CLICK whose cell reference does not resolve
// on the session grid.
var ErrTargetUnresolvable = errors.New("click target unresolvable")

// ErrCommandExecution marks a TERMINAL action that spawned badly, exited
// non-zero, or ran past its timeout.
var ErrCommandExecution = errors.New("command execution failed")

// Outcome describes one executed action. Terminal actions populate the
// process fields.
type Outcome struct {
	Action   action.Action
	Duration time.Duration
	ExitCode int
	Stdout   string
	Stderr   string
}

// Executor dispatches actions to the desktop injector, the grid, and the
// shell runner.
type Executor struct {
	injector desktop.Injector
	grid     *grid.Grid
	shell    *ShellRunner
	settle   time.Duration
	logger   *zap.Logger
}

// New creates an executor bound to one session's grid. settle is the pause a
// WAIT action performs.
func New(injector desktop.Injector, g *grid.Grid, shell *ShellRunner, settle time.Duration, logger *zap.Logger) *Executor {
	return &Executor{
		injector: injector,
		grid:     g,
		shell:    shell,
		settle:   settle,
		logger:   logger.Named("executor"),
	}
}

// Execute performs one action and reports its outcome. Errors carry the
// sentinel for their failure class so the orchestrator can pick a retry
// policy with errors.Is.
func (e *Executor) Execute(ctx context.Context, act action.Action) (Outcome, error) {
	start := time.Now()
	out := Outcome{Action: act}

	e.logger.Debug("executing action", zap.String("action", act.String()))

	var err error
	switch act.Kind {
	case action.KindType:
		err = e.injectErr("type text", e.injector.TypeText(ctx, act.Text))
	case action.KindClick:
		err = e.click(ctx, act.Cell)
	case action.KindHotkey:
		err = e.injectErr("key combo", e.injector.KeyCombo(ctx, act.Keys))
	case action.KindTerminal:
		out, err = e.shell.Run(ctx, act.Command)
		out.Action = act
	case action.KindWait:
		err = sleepCtx(ctx, e.settle)
	default:
		err = fmt.Errorf("unknown action kind %q", act.Kind)
	}

	out.Duration = time.Since(start)
	if err != nil {
		e.logger.Warn("action failed",
			zap.String("action", act.String()),
			zap.Error(err),
		)
		return out, err
	}
	return out, nil
}

func (e *Executor) click(ctx context.Context, cell string) error {
	pt, err := e.grid.Resolve(cell)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTargetUnresolvable, err)
	}
	return e.injectErr("click", e.injector.Click(ctx, pt.X, pt.Y))
}

// injectErr classifies injector failures: context errors and already-typed
// sentinel errors pass through, anything else means the OS refused the event.
func (e *Executor) injectErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, desktop.ErrUnsupportedKeyCombo), errors.Is(err, desktop.ErrInputInjection):
		return err
	default:
		return fmt.Errorf("%w: %s: %v", desktop.ErrInputInjection, op, err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
