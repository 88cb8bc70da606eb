package cdp

import (
	"unicode"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp/kb"

	"github.com/xkilldash9x/actuate/api/schemas"
)

type keyDef struct {
	key      string
	code     string
	vk       int64
	text     string
	modifier input.Modifier
}

var keyDefs = map[schemas.Key]keyDef{
	schemas.KeyControl:    {key: "Control", code: "ControlLeft", vk: 17, modifier: input.ModifierCtrl},
	schemas.KeyShift:      {key: "Shift", code: "ShiftLeft", vk: 16, modifier: input.ModifierShift},
	schemas.KeyAlt:        {key: "Alt", code: "AltLeft", vk: 18, modifier: input.ModifierAlt},
	schemas.KeyMeta:       {key: "Meta", code: "MetaLeft", vk: 91, modifier: input.ModifierMeta},
	schemas.KeyEnter:      {key: "Enter", code: "Enter", vk: 13, text: "\r"},
	schemas.KeyTab:        {key: "Tab", code: "Tab", vk: 9},
	schemas.KeyEscape:     {key: "Escape", code: "Escape", vk: 27},
	schemas.KeyBackspace:  {key: "Backspace", code: "Backspace", vk: 8},
	schemas.KeyDelete:     {key: "Delete", code: "Delete", vk: 46},
	schemas.KeyArrowUp:    {key: "ArrowUp", code: "ArrowUp", vk: 38},
	schemas.KeyArrowDown:  {key: "ArrowDown", code: "ArrowDown", vk: 40},
	schemas.KeyArrowLeft:  {key: "ArrowLeft", code: "ArrowLeft", vk: 37},
	schemas.KeyArrowRight: {key: "ArrowRight", code: "ArrowRight", vk: 39},
}

const keyChar input.KeyType = "char"

// Editing commands Chrome only runs for synthetic shortcuts when asked to.
var shortcutCommands = map[rune]string{
	'a': "selectAll",
	'c': "copy",
	'v': "paste",
	'x': "cut",
}

// keyEvent builds the protocol event for a named key going down or up.
// mods must already include the key's own modifier bit when it is one.
func keyEvent(def keyDef, down bool, mods input.Modifier) *input.DispatchKeyEventParams {
	typ := input.KeyUp
	if down {
		typ = input.KeyDown
	}
	p := input.DispatchKeyEvent(typ).
		WithKey(def.key).
		WithCode(def.code).
		WithWindowsVirtualKeyCode(def.vk).
		WithNativeVirtualKeyCode(def.vk).
		WithModifiers(mods)
	if down && def.text != "" {
		p = p.WithText(def.text).WithUnmodifiedText(def.text)
	}
	return p
}

// textEvents encodes one typed rune. With Control or Meta held the rune is a
// shortcut: no text is inserted and the matching editing command runs.
func textEvents(r rune, mods input.Modifier) []*input.DispatchKeyEventParams {
	shortcut := mods&(input.ModifierCtrl|input.ModifierMeta) != 0
	if shortcut {
		r = unicode.ToLower(r)
	} else if mods&input.ModifierShift != 0 {
		r = unicode.ToUpper(r)
	}

	var out []*input.DispatchKeyEventParams
	for _, ev := range kb.Encode(r) {
		ev.Modifiers |= mods
		if shortcut {
			if ev.Type == keyChar {
				continue
			}
			ev.Text, ev.UnmodifiedText = "", ""
			if ev.Type != input.KeyUp {
				if cmd, ok := shortcutCommands[r]; ok {
					ev.Commands = []string{cmd}
				}
			}
		}
		out = append(out, ev)
	}
	return out
}
