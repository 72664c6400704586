// File: internal/action/action_test.go
package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlanText(t *testing.T) {
	t.Parallel()

	raw := `HOTKEY:command+space
TYPE:terminal
HOTKEY:enter
TYPE:WAIT
CLICK:ab07
TERMINAL:ls -la`

	plan, err := ParsePlanText("open a terminal and list files", raw)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 6)
	assert.NotEmpty(t, plan.ID)
	assert.Equal(t, "open a terminal and list files", plan.Command)

	assert.Equal(t, Action{Kind: KindHotkey, Keys: "command+space"}, plan.Actions[0])
	assert.Equal(t, Action{Kind: KindType, Text: "terminal"}, plan.Actions[1])
	assert.Equal(t, Action{Kind: KindHotkey, Keys: "enter"}, plan.Actions[2])
	assert.Equal(t, Action{Kind: KindWait}, plan.Actions[3])
	assert.Equal(t, Action{Kind: KindClick, Cell: "ab07"}, plan.Actions[4])
	assert.Equal(t, Action{Kind: KindTerminal, Command: "ls -la"}, plan.Actions[5])
}

func TestParsePlanTextToleratesModelNoise(t *testing.T) {
	t.Parallel()

	// Models number their steps and wrap them in commentary despite the
	// prompt; both must be survivable.
	raw := `Here is the plan:
1. HOTKEY:command+space
2. TYPE:Mail
3) HOTKEY:enter

That should open the mail client.`

	plan, err := ParsePlanText("open mail", raw)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 3)
	assert.Equal(t, KindHotkey, plan.Actions[0].Kind)
	assert.Equal(t, "Mail", plan.Actions[1].Text)
	assert.Equal(t, "enter", plan.Actions[2].Keys)
}

func TestParsePlanTextNormalizesCase(t *testing.T) {
	t.Parallel()

	plan, err := ParsePlanText("cmd", "click:AB07\nhotkey:Command+Space")
	require.NoError(t, err)
	require.Len(t, plan.Actions, 2)
	assert.Equal(t, "ab07", plan.Actions[0].Cell)
	assert.Equal(t, "command+space", plan.Actions[1].Keys)
}

func TestParsePlanTextRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"",
		"   \n\n  ",
		"I cannot help with that.",
		"TYPE:\nCLICK:\nHOTKEY:",
	} {
		_, err := ParsePlanText("cmd", raw)
		require.Error(t, err, "raw %q", raw)
		assert.ErrorIs(t, err, ErrEmptyPlan, "raw %q", raw)
	}
}

func TestActionString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "TYPE:hello", Action{Kind: KindType, Text: "hello"}.String())
	assert.Equal(t, "CLICK:aa01", Action{Kind: KindClick, Cell: "aa01"}.String())
	assert.Equal(t, "HOTKEY:enter", Action{Kind: KindHotkey, Keys: "enter"}.String())
	assert.Equal(t, "TERMINAL:ls", Action{Kind: KindTerminal, Command: "ls"}.String())
	assert.Equal(t, "WAIT", Action{Kind: KindWait}.String())
}

func TestTargeted(t *testing.T) {
	t.Parallel()

	assert.True(t, Action{Kind: KindClick, Cell: "aa01"}.Targeted())
	assert.False(t, Action{Kind: KindType, Text: "x"}.Targeted())
	assert.False(t, Action{Kind: KindHotkey, Keys: "enter"}.Targeted())
	assert.False(t, Action{Kind: KindTerminal, Command: "ls"}.Targeted())
}
