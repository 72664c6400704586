// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette-cli/internal/config"
	"github.com/xkilldash9x/marionette-cli/internal/desktop"
	"github.com/xkilldash9x/marionette-cli/internal/executor"
	"github.com/xkilldash9x/marionette-cli/internal/grid"
	"github.com/xkilldash9x/marionette-cli/internal/history"
	"github.com/xkilldash9x/marionette-cli/internal/observability"
	"github.com/xkilldash9x/marionette-cli/internal/orchestrator"
	"github.com/xkilldash9x/marionette-cli/internal/planner"
	"github.com/xkilldash9x/marionette-cli/internal/tui"
	"github.com/xkilldash9x/marionette-cli/internal/verify"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run \"<command>\"",
		Short: "Executes one natural-language command against the desktop",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so CLI flags override the config
			// file and environment with the right precedence.
			if err := viper.BindPFlag("session.rows", cmd.Flags().Lookup("rows")); err != nil {
				return err
			}
			if err := viper.BindPFlag("session.cols", cmd.Flags().Lookup("cols")); err != nil {
				return err
			}
			if err := viper.BindPFlag("retry.max_retries", cmd.Flags().Lookup("retries")); err != nil {
				return err
			}
			if err := viper.BindPFlag("planner.provider", cmd.Flags().Lookup("provider")); err != nil {
				return err
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			simulate, _ := cmd.Flags().GetBool("simulate")
			noTUI, _ := cmd.Flags().GetBool("no-tui")
			command := strings.Join(args, " ")

			components, err := initializeRunComponents(ctx, cfg, simulate, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			var report *orchestrator.RunReport
			if noTUI {
				report, err = runPlain(ctx, components, cfg, command, logger)
			} else {
				report, err = runWithTUI(ctx, components, cfg, command, logger)
			}
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return fmt.Errorf("run aborted by user signal")
				}
				return err
			}

			recordHistory(ctx, components.History, report, logger)
			printSummary(report)

			if report.State != orchestrator.StateSucceeded {
				return fmt.Errorf("run %s: %s", report.State, report.Reason)
			}
			return nil
		},
	}

	runCmd.Flags().Bool("simulate", false, "Rehearse the plan without touching the real desktop.")
	runCmd.Flags().Bool("no-tui", false, "Print plain progress lines instead of the interactive view.")
	runCmd.Flags().Int("rows", 0, "Grid rows. (Overrides config/env)")
	runCmd.Flags().Int("cols", 0, "Grid columns. (Overrides config/env)")
	runCmd.Flags().Int("retries", 0, "Per-action retry budget. (Overrides config/env)")
	runCmd.Flags().String("provider", "", "Planner provider: gemini, anthropic, stub. (Overrides config/env)")

	return runCmd
}

// runComponents holds the initialized services for one run.
type runComponents struct {
	Capturer desktop.Capturer
	Grid     *grid.Grid
	Executor *executor.Executor
	Verifier *verify.Engine
	Planner  planner.Planner
	History  *history.Store
}

// Shutdown releases held resources.
func (rc *runComponents) Shutdown() {
	if rc.History != nil {
		rc.History.Close()
	}
	observability.Sync()
}

// initializeRunComponents handles dependency injection for the run command.
func initializeRunComponents(ctx context.Context, cfg *config.Config, simulate bool, logger *zap.Logger) (*runComponents, error) {
	components := &runComponents{}

	// 1. Desktop boundary
	var injector desktop.Injector
	if simulate {
		injector = desktop.NewSimulatedInjector(logger)
		components.Capturer = desktop.NewSimulatedCapturer()
		// A simulated desktop has nothing for a live model to look at.
		cfg.Planner.Provider = config.ProviderStub
	} else {
		injector = desktop.NewRobotgoInjector(cfg.Executor.TypeDelay)
		capturer, err := desktop.NewScreenCapturer(cfg.Verify.CaptureRate)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize screen capture: %w", err)
		}
		components.Capturer = capturer
	}

	// 2. Session grid over the primary display
	g, err := grid.Build(components.Capturer.Bounds(), cfg.Session.Rows, cfg.Session.Cols)
	if err != nil {
		return nil, fmt.Errorf("failed to build session grid: %w", err)
	}
	components.Grid = g

	// 3. Workspace and executor
	if err := os.MkdirAll(cfg.Session.WorkspaceDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace %s: %w", cfg.Session.WorkspaceDir, err)
	}
	shell := executor.NewShellRunner(cfg.Session.WorkspaceDir, cfg.Executor.CommandTimeout, logger)
	components.Executor = executor.New(injector, g, shell, cfg.Executor.ActionSettle, logger)

	// 4. Verification engine
	components.Verifier = verify.NewEngine(cfg.Verify.ConfirmThreshold, cfg.Verify.FailThreshold, logger)

	// 5. Planner
	pl, err := planner.New(ctx, cfg.Planner, g, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize planner: %w", err)
	}
	components.Planner = pl

	// 6. Optional run history
	if cfg.History.Enabled {
		store, err := history.Connect(ctx, cfg.History.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize run history: %w", err)
		}
		components.History = store
	}

	return components, nil
}

func newOrchestrator(components *runComponents, cfg *config.Config, notifier orchestrator.Notifier, logger *zap.Logger) *orchestrator.Orchestrator {
	return orchestrator.New(
		components.Planner,
		components.Executor,
		components.Capturer,
		components.Verifier,
		components.Grid,
		notifier,
		cfg.Retry,
		cfg.Verify.SettleTime,
		logger,
	)
}

// runWithTUI drives the run behind the interactive progress view. Esc cancels
// cooperatively; the view closes once the orchestrator reports a terminal
// state.
func runWithTUI(ctx context.Context, components *runComponents, cfg *config.Config, command string, logger *zap.Logger) (*orchestrator.RunReport, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	view := tui.NewRunView(command, cancel)
	program := tea.NewProgram(view, tea.WithContext(ctx))

	orch := newOrchestrator(components, cfg, tui.Notifier(program), logger)

	var (
		report *orchestrator.RunReport
		runErr error
		done   = make(chan struct{})
	)
	go func() {
		defer close(done)
		report, runErr = orch.Run(runCtx, command)
		// A planning failure never emits a terminal event; close the view
		// explicitly either way.
		program.Quit()
	}()

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		cancel()
		<-done
		return report, fmt.Errorf("terminal UI failed: %w", err)
	}
	<-done
	return report, runErr
}

// runPlain drives the run with line-oriented progress output.
func runPlain(ctx context.Context, components *runComponents, cfg *config.Config, command string, logger *zap.Logger) (*orchestrator.RunReport, error) {
	notifier := orchestrator.NotifierFunc(func(ev orchestrator.Event) {
		switch ev.Type {
		case orchestrator.EventPlanStarted:
			fmt.Printf("plan %s: %d action(s)\n", ev.PlanID, ev.Total)
		case orchestrator.EventActionStarted:
			fmt.Printf("  [%d/%d] %s\n", ev.Index+1, ev.Total, ev.Action)
		case orchestrator.EventActionRetry:
			fmt.Printf("  [%d/%d] retrying (attempt %d)\n", ev.Index+1, ev.Total, ev.Attempt+1)
		case orchestrator.EventActionFinished:
			if ev.Reason != "" {
				fmt.Printf("  [%d/%d] failed: %s\n", ev.Index+1, ev.Total, ev.Reason)
			}
		}
	})

	orch := newOrchestrator(components, cfg, notifier, logger)
	return orch.Run(ctx, command)
}

// recordHistory persists the report when a store is configured. Best effort:
// a dead database does not turn a finished run into a failure.
func recordHistory(ctx context.Context, store *history.Store, report *orchestrator.RunReport, logger *zap.Logger) {
	if store == nil || report == nil || report.PlanID == "" {
		return
	}
	if err := store.RecordRun(ctx, report); err != nil {
		logger.Warn("failed to record run history", zap.Error(err))
	}
}

// printSummary prints the terminal state and any captured command output.
func printSummary(report *orchestrator.RunReport) {
	if report == nil {
		return
	}
	for _, res := range report.Actions {
		if out := strings.TrimSpace(res.Outcome.Stdout); out != "" {
			fmt.Printf("\n%s\n%s\n", res.Action, out)
		}
	}
	fmt.Printf("\n%s (%s) in %s\n", report.State, report.Reason, report.Duration.Round(10*time.Millisecond))
}
