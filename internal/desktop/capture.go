// File: internal/desktop/capture.go
package desktop

import (
	"context"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
	"golang.org/x/time/rate"
)

// ScreenCapturer is the production Capturer, reading the primary display via
// the platform capture APIs. A rate limiter caps capture frequency: the
// verifier grabs a screenshot pair around every action and an unthrottled
// loop would noticeably load the host compositor.
type ScreenCapturer struct {
	display int
	limiter *rate.Limiter
}

// NewScreenCapturer creates a capturer for the primary display allowing at
// most capturesPerSecond screenshots.
func NewScreenCapturer(capturesPerSecond float64) (*ScreenCapturer, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return nil, fmt.Errorf("no active displays detected")
	}
	return &ScreenCapturer{
		display: 0,
		limiter: rate.NewLimiter(rate.Limit(capturesPerSecond), 1),
	}, nil
}

var _ Capturer = (*ScreenCapturer)(nil)

// Bounds reports the primary display rectangle.
func (s *ScreenCapturer) Bounds() image.Rectangle {
	return screenshot.GetDisplayBounds(s.display)
}

// Capture grabs the full primary display.
func (s *ScreenCapturer) Capture(ctx context.Context) (image.Image, error) {
	return s.CaptureRegion(ctx, s.Bounds())
}

// CaptureRegion grabs the given screen rectangle, waiting on the rate limiter
// first.
func (s *ScreenCapturer) CaptureRegion(ctx context.Context, region image.Rectangle) (image.Image, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	img, err := screenshot.CaptureRect(region)
	if err != nil {
		return nil, fmt.Errorf("screen capture of %v failed: %w", region, err)
	}
	return img, nil
}
