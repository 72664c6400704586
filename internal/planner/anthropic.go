// File: internal/planner/anthropic.go
package planner

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette-cli/internal/action"
	"github.com/xkilldash9x/marionette-cli/internal/grid"
)

// Anthropic plans through the Anthropic Messages API with the screenshot
// attached as a base64 image block.
type Anthropic struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
	grid    *grid.Grid
	logger  *zap.Logger
}

// NewAnthropic constructs the Anthropic backend.
func NewAnthropic(apiKey, model string, timeout time.Duration, g *grid.Grid, logger *zap.Logger) (*Anthropic, error) {
	return &Anthropic{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		timeout: timeout,
		grid:    g,
		logger:  logger.Named("planner.anthropic"),
	}, nil
}

// Plan sends the command and screenshot to the model and parses the returned
// step list.
func (p *Anthropic) Plan(ctx context.Context, command string, screen image.Image) (action.Plan, error) {
	payload, err := encodePNG(screen)
	if err != nil {
		return action.Plan{}, fmt.Errorf("%w: %v", ErrPlanGeneration, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	msg, err := p.client.Messages.New(reqCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64("image/png", base64.StdEncoding.EncodeToString(payload)),
				anthropic.NewTextBlock(buildPrompt(command, p.grid)),
			),
		},
	})
	if err != nil {
		return action.Plan{}, fmt.Errorf("%w: anthropic request: %v", ErrPlanGeneration, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			sb.WriteString(b.Text)
		}
	}

	raw := sb.String()
	p.logger.Debug("received plan from model",
		zap.String("model", p.model),
		zap.Duration("latency", time.Since(start)),
		zap.Int("response_bytes", len(raw)),
	)
	return parseResponse(command, raw)
}
