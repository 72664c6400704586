// File: internal/planner/planner.go

// Package planner is the AI collaborator boundary: natural language plus the
// current screen in, an ordered action plan out. The live backends (Gemini,
// Anthropic) and the deterministic stub all satisfy the same interface, and
// the orchestrator never learns which one it is talking to.
package planner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette-cli/internal/action"
	"github.com/xkilldash9x/marionette-cli/internal/config"
	"github.com/xkilldash9x/marionette-cli/internal/grid"
)

// ErrPlanGeneration marks a collaborator that was unusable or returned
// nothing actionable. The plan is rejected before any OS-level side effect.
var ErrPlanGeneration = errors.New("plan generation failed")

// ErrCannotInterpret marks an explicit refusal: the collaborator understood
// the request format but could not translate the command.
var ErrCannotInterpret = errors.New("command cannot be interpreted")

// refusalMarker is the token the prompt asks the model to answer with when it
// cannot translate a command.
const refusalMarker = "CANNOT_INTERPRET"

// Planner translates one natural-language command into an action plan, given
// a screenshot of the current screen for visual context.
type Planner interface {
	Plan(ctx context.Context, command string, screen image.Image) (action.Plan, error)
}

// New selects the backend for the configured provider. Without a live
// credential the deterministic stub is used, so the tool keeps working (and
// stays testable) with no API key in the environment.
func New(ctx context.Context, cfg config.PlannerConfig, g *grid.Grid, logger *zap.Logger) (Planner, error) {
	switch cfg.Provider {
	case config.ProviderStub, config.ProviderGemini, config.ProviderAnthropic:
	default:
		return nil, fmt.Errorf("unknown planner provider %q", cfg.Provider)
	}
	if cfg.Provider == config.ProviderStub {
		return NewStub(g, logger), nil
	}

	key := cfg.APIKey()
	if key == "" {
		logger.Warn("no API credential configured; falling back to the simulated planner",
			zap.String("provider", string(cfg.Provider)))
		return NewStub(g, logger), nil
	}

	if cfg.Provider == config.ProviderAnthropic {
		return NewAnthropic(key, cfg.Model, cfg.APITimeout, g, logger)
	}
	return NewGemini(ctx, key, cfg.Model, cfg.APITimeout, g, logger)
}

// buildPrompt renders the planning instruction for the live backends. The
// line protocol and coordinate constraints mirror what the parser accepts.
func buildPrompt(command string, g *grid.Grid) string {
	maxCell := grid.Label(g.Rows()-1, g.Cols()-1)
	return fmt.Sprintf(`You are looking at a screenshot with a %dx%d grid overlay. Grid coordinates run from aa01 to %s: two letters for the column, two digits for the row.

Translate the user's request into an ordered list of automation steps, one per line, using exactly these forms:
TYPE:<text to type>
CLICK:<grid coordinate of the element to click, e.g. CLICK:ab07>
HOTKEY:<key combination, e.g. HOTKEY:command+space or HOTKEY:enter>
TERMINAL:<shell command to run>

Rules:
1. Every line must start with TYPE:, CLICK:, HOTKEY: or TERMINAL:.
2. To open an application, use HOTKEY:command+space, then TYPE:<app name>, then HOTKEY:enter, then TYPE:WAIT to let it load.
3. CLICK coordinates must name the cell containing the target element in the screenshot.
4. Output only the steps, no commentary.
5. If the request cannot be translated into these steps, respond with exactly %s.

User request: %q`, g.Rows(), g.Cols(), maxCell, refusalMarker, command)
}

// parseResponse converts raw model output into a plan, mapping refusals and
// empty output onto the error taxonomy.
func parseResponse(command, raw string) (action.Plan, error) {
	if strings.Contains(raw, refusalMarker) {
		return action.Plan{}, fmt.Errorf("%w: %q", ErrCannotInterpret, command)
	}
	plan, err := action.ParsePlanText(command, raw)
	if err != nil {
		return action.Plan{}, fmt.Errorf("%w: %v", ErrPlanGeneration, err)
	}
	return plan, nil
}

// encodePNG serializes a screenshot for a model payload.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding screenshot: %w", err)
	}
	return buf.Bytes(), nil
}
