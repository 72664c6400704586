// File: internal/executor/shell.go
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// fileCommands are the commands whose trailing path argument is anchored to
// the workspace when relative, so generated plans cannot scribble over the
// caller's working directory by accident.
var fileCommands = map[string]bool{
	"mkdir": true,
	"touch": true,
	"cp":    true,
	"mv":    true,
}

// ShellRunner executes TERMINAL actions in the session workspace with a hard
// timeout. On timeout the process is killed and the action reports as failed;
// the orchestration loop never blocks on a stuck command.
type ShellRunner struct {
	workspace string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewShellRunner creates a runner rooted at the workspace directory.
func NewShellRunner(workspace string, timeout time.Duration, logger *zap.Logger) *ShellRunner {
	return &ShellRunner{
		workspace: workspace,
		timeout:   timeout,
		logger:    logger.Named("shell"),
	}
}

// Run executes the command line through `sh -c` with the workspace as the
// working directory. Non-zero exit, spawn failure, and timeout all surface as
// ErrCommandExecution; stdout/stderr are captured either way.
func (s *ShellRunner) Run(ctx context.Context, command string) (Outcome, error) {
	out := Outcome{}
	command = s.anchorPaths(command)

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = s.workspace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out.Stdout = stdout.String()
	out.Stderr = stderr.String()

	if err == nil {
		s.logger.Debug("command succeeded", zap.String("command", command))
		return out, nil
	}

	if runCtx.Err() == context.DeadlineExceeded {
		out.ExitCode = -1
		return out, fmt.Errorf("%w: %q exceeded timeout %s and was terminated", ErrCommandExecution, command, s.timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, fmt.Errorf("%w: %q exited with code %d: %s", ErrCommandExecution, command, out.ExitCode, firstLineOf(out.Stderr))
	}

	out.ExitCode = -1
	return out, fmt.Errorf("%w: failed to spawn %q: %v", ErrCommandExecution, command, err)
}

// anchorPaths rewrites a relative final path argument of file-creating
// commands to live under the workspace.
func (s *ShellRunner) anchorPaths(command string) string {
	parts := strings.Fields(command)
	if len(parts) < 2 || !fileCommands[parts[0]] {
		return command
	}
	last := parts[len(parts)-1]
	if filepath.IsAbs(last) || strings.HasPrefix(last, "-") {
		return command
	}
	parts[len(parts)-1] = filepath.Join(s.workspace, last)
	return strings.Join(parts, " ")
}

func firstLineOf(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
