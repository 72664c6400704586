// File: internal/desktop/simulated.go
package desktop

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"go.uber.org/zap"
)

// SimulatedInjector logs input events instead of dispatching them. Used in
// simulate mode to rehearse plans without touching the real desktop.
type SimulatedInjector struct {
	logger *zap.Logger
}

// NewSimulatedInjector creates the dry-run injector.
func NewSimulatedInjector(logger *zap.Logger) *SimulatedInjector {
	return &SimulatedInjector{logger: logger.Named("simulated")}
}

func (s *SimulatedInjector) Click(ctx context.Context, x, y int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("simulated click", zap.Int("x", x), zap.Int("y", y))
	return nil
}

func (s *SimulatedInjector) TypeText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("simulated typing", zap.Int("chars", len(text)))
	return nil
}

func (s *SimulatedInjector) KeyCombo(ctx context.Context, combo string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, err := ParseCombo(combo); err != nil {
		return err
	}
	s.logger.Info("simulated key combo", zap.String("combo", combo))
	return nil
}

// SimulatedCapturer serves synthetic frames. Every capture shifts the frame
// color, so a post-action capture always differs from the pre-action one and
// simulated runs verify cleanly.
type SimulatedCapturer struct {
	mu     sync.Mutex
	seq    uint8
	bounds image.Rectangle
}

// NewSimulatedCapturer creates a capturer with a fixed virtual display.
func NewSimulatedCapturer() *SimulatedCapturer {
	return &SimulatedCapturer{bounds: image.Rect(0, 0, 1920, 1080)}
}

func (s *SimulatedCapturer) Capture(ctx context.Context) (image.Image, error) {
	return s.CaptureRegion(ctx, s.bounds)
}

func (s *SimulatedCapturer) CaptureRegion(ctx context.Context, region image.Rectangle) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.seq += 16
	shade := s.seq
	s.mu.Unlock()

	img := image.NewRGBA(region)
	draw.Draw(img, region, image.NewUniform(color.RGBA{R: shade, G: shade, B: shade, A: 255}), region.Min, draw.Src)
	return img, nil
}

func (s *SimulatedCapturer) Bounds() image.Rectangle {
	return s.bounds
}
