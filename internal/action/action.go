// File: internal/action/action.go

// Package action defines the typed actions an automation plan is made of and
// the parser for the line protocol the planner emits.
package action

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind enumerates the action variants a planner may emit.
type Kind string

const (
	// KindType injects text as keystrokes into the focused control.
	KindType Kind = "TYPE"
	// KindClick performs a mouse click at a grid cell.
	KindClick Kind = "CLICK"
	// KindHotkey presses a simultaneous key combination.
	KindHotkey Kind = "HOTKEY"
	// KindTerminal runs a shell command in the session workspace.
	KindTerminal Kind = "TERMINAL"
	// KindWait is a settle pause the planner inserts after launching
	// applications ("TYPE:WAIT" in the wire format).
	KindWait Kind = "WAIT"
)

// ErrEmptyPlan marks planner output that contained no usable steps.
var ErrEmptyPlan = errors.New("plan contains no valid steps")

// Action is one immutable automation step. Only the field matching Kind is
// populated.
type Action struct {
	Kind    Kind
	Text    string // KindType: text to type
	Cell    string // KindClick: grid cell reference, e.g. "aa01"
	Keys    string // KindHotkey: combo such as "command+space"
	Command string // KindTerminal: shell command line
}

// String renders the action in the wire format it was parsed from, which is
// also the most readable form for logs and status lines.
func (a Action) String() string {
	switch a.Kind {
	case KindType:
		return "TYPE:" + a.Text
	case KindClick:
		return "CLICK:" + a.Cell
	case KindHotkey:
		return "HOTKEY:" + a.Keys
	case KindTerminal:
		return "TERMINAL:" + a.Command
	case KindWait:
		return "WAIT"
	default:
		return string(a.Kind)
	}
}

// Targeted reports whether the action affects a specific grid cell, which
// narrows the verification region to that cell's neighborhood.
func (a Action) Targeted() bool {
	return a.Kind == KindClick
}

// Plan is the ordered action sequence derived from one user command. It is
// owned by the orchestrator for the duration of execution and discarded on
// completion or abort.
type Plan struct {
	ID      string
	Command string
	Actions []Action
}

// NewPlan builds a plan with a fresh identifier.
func NewPlan(command string, actions []Action) Plan {
	return Plan{ID: uuid.NewString(), Command: command, Actions: actions}
}

// ParsePlanText converts raw planner output into a Plan. The expected wire
// format is one step per line, each starting with TYPE:, CLICK:, HOTKEY: or
// TERMINAL:; numbered-list prefixes ("1. ", "2) ") are tolerated because
// models add them despite instructions, and "TYPE:WAIT" becomes a wait step.
// Lines that match no prefix are skipped; if nothing remains the plan is
// rejected.
func ParsePlanText(command, raw string) (Plan, error) {
	var actions []Action
	for _, line := range strings.Split(raw, "\n") {
		line = stripListPrefix(strings.TrimSpace(line))
		if line == "" {
			continue
		}
		act, ok := parseStep(line)
		if !ok {
			continue
		}
		actions = append(actions, act)
	}
	if len(actions) == 0 {
		return Plan{}, fmt.Errorf("%w: %q", ErrEmptyPlan, firstLine(raw))
	}
	return NewPlan(command, actions), nil
}

func parseStep(line string) (Action, bool) {
	upper := strings.ToUpper(line)
	switch {
	case strings.HasPrefix(upper, "TYPE:"):
		text := strings.TrimSpace(line[len("TYPE:"):])
		if strings.EqualFold(text, "WAIT") {
			return Action{Kind: KindWait}, true
		}
		if text == "" {
			return Action{}, false
		}
		return Action{Kind: KindType, Text: text}, true
	case strings.HasPrefix(upper, "CLICK:"):
		cell := strings.ToLower(strings.TrimSpace(line[len("CLICK:"):]))
		if cell == "" {
			return Action{}, false
		}
		return Action{Kind: KindClick, Cell: cell}, true
	case strings.HasPrefix(upper, "HOTKEY:"):
		keys := strings.ToLower(strings.TrimSpace(line[len("HOTKEY:"):]))
		if keys == "" {
			return Action{}, false
		}
		return Action{Kind: KindHotkey, Keys: keys}, true
	case strings.HasPrefix(upper, "TERMINAL:"):
		cmd := strings.TrimSpace(line[len("TERMINAL:"):])
		if cmd == "" {
			return Action{}, false
		}
		return Action{Kind: KindTerminal, Command: cmd}, true
	}
	return Action{}, false
}

// stripListPrefix removes a leading "1. " / "2) " style enumeration.
func stripListPrefix(line string) string {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(line) {
		return line
	}
	if line[i] == '.' || line[i] == ')' {
		return strings.TrimSpace(line[i+1:])
	}
	return line
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}
