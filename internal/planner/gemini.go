// File: internal/planner/gemini.go
package planner

import (
	"context"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/marionette-cli/internal/action"
	"github.com/xkilldash9x/marionette-cli/internal/grid"
)

// Gemini plans through the Gemini API. The screenshot travels as an inline
// PNG part alongside the text prompt.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	grid    *grid.Grid
	logger  *zap.Logger
}

// NewGemini constructs the Gemini backend. The credential is validated lazily
// by the first request, not here.
func NewGemini(ctx context.Context, apiKey, model string, timeout time.Duration, g *grid.Grid, logger *zap.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating gemini client: %v", ErrPlanGeneration, err)
	}
	return &Gemini{
		client:  client,
		model:   model,
		timeout: timeout,
		grid:    g,
		logger:  logger.Named("planner.gemini"),
	}, nil
}

// Plan sends the command and screenshot to the model and parses the returned
// step list.
func (p *Gemini) Plan(ctx context.Context, command string, screen image.Image) (action.Plan, error) {
	payload, err := encodePNG(screen)
	if err != nil {
		return action.Plan{}, fmt.Errorf("%w: %v", ErrPlanGeneration, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	parts := []*genai.Part{
		genai.NewPartFromText(buildPrompt(command, p.grid)),
		genai.NewPartFromBytes(payload, "image/png"),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	start := time.Now()
	resp, err := p.client.Models.GenerateContent(reqCtx, p.model, contents, nil)
	if err != nil {
		return action.Plan{}, fmt.Errorf("%w: gemini request: %v", ErrPlanGeneration, err)
	}

	raw := resp.Text()
	p.logger.Debug("received plan from model",
		zap.String("model", p.model),
		zap.Duration("latency", time.Since(start)),
		zap.Int("response_bytes", len(raw)),
	)
	return parseResponse(command, raw)
}
