// File: internal/desktop/keymap.go
package desktop

import (
	"fmt"
	"strings"
)

// comboAliases maps the named shortcuts planners tend to emit to their
// canonical combos. The set follows the original macOS-centric command
// vocabulary; unknown names fall through to plus-separated parsing.
var comboAliases = map[string]string{
	"spotlight":       "command+space",
	"copy":            "command+c",
	"paste":           "command+v",
	"cut":             "command+x",
	"save":            "command+s",
	"undo":            "command+z",
	"redo":            "command+shift+z",
	"select_all":      "command+a",
	"find":            "command+f",
	"new_tab":         "command+t",
	"close_tab":       "command+w",
	"switch_app":      "command+tab",
	"screenshot_area": "command+shift+4",
	"focus_next":      "tab",
	"focus_prev":      "shift+tab",
}

// modifierNames maps wire-format modifier names to the robotgo vocabulary.
var modifierNames = map[string]string{
	"command": "cmd",
	"cmd":     "cmd",
	"shift":   "shift",
	"option":  "alt",
	"alt":     "alt",
	"control": "ctrl",
	"ctrl":    "ctrl",
}

// keyNames maps wire-format key names to robotgo key tokens. Single
// printable characters pass through untranslated.
var keyNames = map[string]string{
	"enter":     "enter",
	"return":    "enter",
	"escape":    "esc",
	"esc":       "esc",
	"tab":       "tab",
	"space":     "space",
	"delete":    "delete",
	"backspace": "backspace",
	"up":        "up",
	"down":      "down",
	"left":      "left",
	"right":     "right",
	"home":      "home",
	"end":       "end",
	"pageup":    "pageup",
	"pagedown":  "pagedown",
	"f1":        "f1", "f2": "f2", "f3": "f3", "f4": "f4",
	"f5": "f5", "f6": "f6", "f7": "f7", "f8": "f8",
	"f9": "f9", "f10": "f10", "f11": "f11", "f12": "f12",
}

// ParseCombo decodes a wire-format key combination ("command+shift+z",
// "enter", "spotlight") into a robotgo key token plus modifier tokens. The
// last element of the combo is the key; everything before it must be a
// modifier.
func ParseCombo(combo string) (key string, modifiers []string, err error) {
	c := strings.ToLower(strings.TrimSpace(combo))
	if c == "" {
		return "", nil, fmt.Errorf("%w: empty combo", ErrUnsupportedKeyCombo)
	}
	if alias, ok := comboAliases[c]; ok {
		c = alias
	}

	parts := strings.Split(c, "+")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return "", nil, fmt.Errorf("%w: %q has an empty element", ErrUnsupportedKeyCombo, combo)
		}
		last := i == len(parts)-1
		if !last {
			mod, ok := modifierNames[part]
			if !ok {
				return "", nil, fmt.Errorf("%w: %q is not a modifier in %q", ErrUnsupportedKeyCombo, part, combo)
			}
			modifiers = append(modifiers, mod)
			continue
		}
		key = translateKey(part)
		if key == "" {
			return "", nil, fmt.Errorf("%w: unknown key %q in %q", ErrUnsupportedKeyCombo, part, combo)
		}
	}
	return key, modifiers, nil
}

func translateKey(name string) string {
	if k, ok := keyNames[name]; ok {
		return k
	}
	// Bare modifier as the final element ("command+shift") is not a key press.
	if _, isMod := modifierNames[name]; isMod {
		return ""
	}
	if len(name) == 1 {
		return name
	}
	return ""
}
