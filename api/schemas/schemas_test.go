package schemas_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/actuate/api/schemas"
)

// TestConstants pins the string values that appear in scenario files and logs.
func TestConstants(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		constant interface{}
		expected string
	}{
		{"StrategyXPath", schemas.StrategyXPath, "xpath"},
		{"StrategyLinkText", schemas.StrategyLinkText, "link_text"},
		{"StepMoveTo", schemas.StepMoveTo, "move_to"},
		{"StepPressAndHold", schemas.StepPressAndHold, "press_and_hold"},
		{"StepDragBy", schemas.StepDragBy, "drag_by"},
		{"EffectScrollIntoView", schemas.EffectScrollIntoView, "scroll_into_view"},
		{"DialogPrompt", schemas.DialogPrompt, "prompt"},
		{"DialogBeforeUnload", schemas.DialogBeforeUnload, "beforeunload"},
		{"MousePress", schemas.MousePress, "mousePressed"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, asString(tc.constant))
		})
	}
}

func asString(v interface{}) string {
	switch c := v.(type) {
	case schemas.LocatorStrategy:
		return string(c)
	case schemas.StepKind:
		return string(c)
	case schemas.Effect:
		return string(c)
	case schemas.DialogType:
		return string(c)
	case schemas.MouseEventType:
		return string(c)
	}
	return ""
}

func TestHandleSet(t *testing.T) {
	before := schemas.NewHandleSet("a", "b")
	after := schemas.NewHandleSet("a", "b", "c")

	assert.True(t, after.Contains("c"))
	assert.False(t, before.Contains("c"))
	assert.Equal(t, []schemas.Handle{"c"}, after.Diff(before).Sorted())
	assert.Empty(t, before.Diff(after))
	assert.Equal(t, []schemas.Handle{"a", "b", "c"}, after.Sorted())
}

func TestParseKey(t *testing.T) {
	t.Run("Aliases", func(t *testing.T) {
		for _, alias := range []string{"Control", "CONTROL", "CTRL"} {
			k, err := schemas.ParseKey(alias)
			require.NoError(t, err)
			assert.Equal(t, schemas.KeyControl, k)
		}
	})

	t.Run("Modifiers", func(t *testing.T) {
		assert.True(t, schemas.KeyShift.IsModifier())
		assert.True(t, schemas.KeyMeta.IsModifier())
		assert.False(t, schemas.KeyEnter.IsModifier())
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := schemas.ParseKey("Hyper")
		assert.Error(t, err)
	})
}

func TestActionStepString(t *testing.T) {
	el := &schemas.Element{ID: "e1"}
	assert.Equal(t, "move_to(e1)", schemas.ActionStep{Kind: schemas.StepMoveTo, Element: el}.String())
	assert.Equal(t, "key_down(Control)", schemas.ActionStep{Kind: schemas.StepKeyDown, Key: schemas.KeyControl}.String())
	assert.Equal(t, `send_text("a")`, schemas.ActionStep{Kind: schemas.StepSendText, Text: "a"}.String())
	assert.Equal(t, "drag_by(60,0)", schemas.ActionStep{Kind: schemas.StepDragBy, DX: 60}.String())
	assert.Equal(t, "release", schemas.ActionStep{Kind: schemas.StepRelease}.String())
	assert.Equal(t, "invoke(e1,click)", schemas.ActionStep{Kind: schemas.StepInvoke, Element: el, Effect: schemas.EffectClick}.String())
}

func TestLocatorString(t *testing.T) {
	assert.Equal(t, `xpath="//button[text()='Alert!!']"`, schemas.XPath("//button[text()='Alert!!']").String())
	assert.Equal(t, schemas.Locator{Strategy: schemas.StrategyID, Query: "email"}, schemas.ByID("email"))
}
