// File: internal/planner/stub.go
package planner

import (
	"context"
	"fmt"
	"image"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette-cli/internal/action"
	"github.com/xkilldash9x/marionette-cli/internal/grid"
)

// Stub is a deterministic offline planner. It recognizes a small set of
// command shapes and emits the same canned plans every time, which makes it
// the backend of choice for tests and for running without a credential.
type Stub struct {
	grid   *grid.Grid
	logger *zap.Logger
}

// NewStub creates the offline planner.
func NewStub(g *grid.Grid, logger *zap.Logger) *Stub {
	return &Stub{grid: g, logger: logger.Named("planner.stub")}
}

var quotedName = regexp.MustCompile(`["']([^"']+)["']`)

// Plan matches the command against the canned recipes. The screenshot is
// ignored; the stub has no vision.
func (p *Stub) Plan(ctx context.Context, command string, _ image.Image) (action.Plan, error) {
	if err := ctx.Err(); err != nil {
		return action.Plan{}, err
	}

	lower := strings.ToLower(command)
	name := extractName(command)

	var raw string
	switch {
	case strings.HasPrefix(lower, "open "):
		app := strings.TrimSpace(command[len("open "):])
		raw = launchSteps(app)
	case strings.Contains(lower, "folder") || strings.Contains(lower, "directory"):
		raw = "TERMINAL:mkdir " + name
	case strings.Contains(lower, "file"):
		raw = "TERMINAL:touch " + name
	case strings.HasPrefix(lower, "type "):
		raw = "TYPE:" + strings.TrimSpace(command[len("type "):])
	case strings.HasPrefix(lower, "run "):
		raw = "TERMINAL:" + strings.TrimSpace(command[len("run "):])
	default:
		return action.Plan{}, fmt.Errorf("%w: no canned plan for %q", ErrCannotInterpret, command)
	}

	p.logger.Debug("serving canned plan", zap.String("command", command))
	return action.ParsePlanText(command, raw)
}

// launchSteps is the standard application-launch sequence: summon the
// launcher, type the name, confirm, and wait for the app to come up.
func launchSteps(app string) string {
	return strings.Join([]string{
		"HOTKEY:command+space",
		"TYPE:" + app,
		"HOTKEY:enter",
		"TYPE:WAIT",
	}, "\n")
}

// extractName pulls a quoted name out of the command, falling back to the
// last word.
func extractName(command string) string {
	if m := quotedName.FindStringSubmatch(command); m != nil {
		return m[1]
	}
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "untitled"
	}
	return strings.Trim(fields[len(fields)-1], ".,!?")
}
