// File: internal/desktop/desktop.go

// Package desktop is the boundary to the operating system's input and screen
// capture facilities. Everything above it depends only on the Injector and
// Capturer interfaces, so tests and alternative backends swap in cleanly; the
// production implementations sit on robotgo and kbinani/screenshot.
package desktop

import (
	"context"
	"errors"
	"image"
)

// ErrInputInjection marks a synthetic input event the OS refused to accept.
var ErrInputInjection = errors.New("input injection rejected")

// ErrUnsupportedKeyCombo marks a key combination the input layer cannot encode.
var ErrUnsupportedKeyCombo = errors.New("unsupported key combination")

// Injector dispatches synthetic input events. Calls are synchronous and
// return once the OS has accepted the event, not once the target application
// has processed it; that gap is what screenshot verification closes.
type Injector interface {
	// Click performs a left mouse click at the absolute screen coordinate.
	Click(ctx context.Context, x, y int) error

	// TypeText injects the text as keystrokes into the focused control.
	TypeText(ctx context.Context, text string) error

	// KeyCombo presses a simultaneous key combination. The combo uses the
	// wire vocabulary ("command+space"); encoding is the injector's concern.
	KeyCombo(ctx context.Context, combo string) error
}

// Capturer produces screenshots of the current screen state.
type Capturer interface {
	// Capture grabs the full primary display.
	Capture(ctx context.Context) (image.Image, error)

	// CaptureRegion grabs the given screen rectangle.
	CaptureRegion(ctx context.Context, region image.Rectangle) (image.Image, error)

	// Bounds reports the pixel bounds of the primary display.
	Bounds() image.Rectangle
}
