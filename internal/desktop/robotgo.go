// File: internal/desktop/robotgo.go
package desktop

import (
	"context"
	"fmt"
	"time"

	"github.com/go-vgo/robotgo"
)

// RobotgoInjector is the production Injector backed by robotgo's OS-level
// event synthesis.
type RobotgoInjector struct {
	// typeDelay paces per-character keystroke injection so slow UI toolkits
	// do not drop characters.
	typeDelay time.Duration
}

// NewRobotgoInjector creates the production injector. typeDelay is the pause
// between injected characters.
func NewRobotgoInjector(typeDelay time.Duration) *RobotgoInjector {
	return &RobotgoInjector{typeDelay: typeDelay}
}

var _ Injector = (*RobotgoInjector)(nil)

// Click moves the cursor to the target and issues a left click. Once
// dispatched the event cannot be recalled, so the context is only consulted
// up front.
func (r *RobotgoInjector) Click(ctx context.Context, x, y int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	robotgo.Move(x, y)
	robotgo.MilliSleep(50)
	robotgo.Click("left", false)
	return nil
}

// TypeText injects the text character by character with the configured delay.
// Cancellation is honored between characters, never mid-keystroke.
func (r *RobotgoInjector) TypeText(ctx context.Context, text string) error {
	for _, ch := range text {
		if err := ctx.Err(); err != nil {
			return err
		}
		robotgo.TypeStr(string(ch))
		if r.typeDelay > 0 {
			robotgo.MilliSleep(int(r.typeDelay.Milliseconds()))
		}
	}
	return nil
}

// KeyCombo presses the combination simultaneously via a single KeyTap with
// modifiers held.
func (r *RobotgoInjector) KeyCombo(ctx context.Context, combo string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, modifiers, err := ParseCombo(combo)
	if err != nil {
		return err
	}
	args := make([]interface{}, len(modifiers))
	for i, m := range modifiers {
		args[i] = m
	}
	if err := robotgo.KeyTap(key, args...); err != nil {
		return fmt.Errorf("%w: key tap %q: %v", ErrInputInjection, combo, err)
	}
	return nil
}
