package schemas

import "fmt"

// -- Low-Level Input Schemas --

// Key names a keyboard key. Printable characters are sent through text steps;
// Key covers the named keys that can be held or released on their own.
type Key string

const (
	KeyControl    Key = "Control"
	KeyShift      Key = "Shift"
	KeyAlt        Key = "Alt"
	KeyMeta       Key = "Meta"
	KeyEnter      Key = "Enter"
	KeyTab        Key = "Tab"
	KeyEscape     Key = "Escape"
	KeyBackspace  Key = "Backspace"
	KeyDelete     Key = "Delete"
	KeyArrowUp    Key = "ArrowUp"
	KeyArrowDown  Key = "ArrowDown"
	KeyArrowLeft  Key = "ArrowLeft"
	KeyArrowRight Key = "ArrowRight"
)

// IsModifier reports whether the key changes the meaning of other keys while held.
func (k Key) IsModifier() bool {
	switch k {
	case KeyControl, KeyShift, KeyAlt, KeyMeta:
		return true
	}
	return false
}

// ParseKey accepts the canonical names plus the upper-case aliases common in
// automation scripts ("CONTROL", "CTRL", "RETURN").
func ParseKey(s string) (Key, error) {
	switch s {
	case "Control", "CONTROL", "Ctrl", "CTRL":
		return KeyControl, nil
	case "Shift", "SHIFT":
		return KeyShift, nil
	case "Alt", "ALT":
		return KeyAlt, nil
	case "Meta", "META", "Command", "COMMAND", "CMD":
		return KeyMeta, nil
	case "Enter", "ENTER", "Return", "RETURN":
		return KeyEnter, nil
	case "Tab", "TAB":
		return KeyTab, nil
	case "Escape", "ESCAPE", "Esc", "ESC":
		return KeyEscape, nil
	case "Backspace", "BACKSPACE", "BACK_SPACE":
		return KeyBackspace, nil
	case "Delete", "DELETE":
		return KeyDelete, nil
	case "ArrowUp", "ARROW_UP", "UP":
		return KeyArrowUp, nil
	case "ArrowDown", "ARROW_DOWN", "DOWN":
		return KeyArrowDown, nil
	case "ArrowLeft", "ARROW_LEFT", "LEFT":
		return KeyArrowLeft, nil
	case "ArrowRight", "ARROW_RIGHT", "RIGHT":
		return KeyArrowRight, nil
	}
	return "", fmt.Errorf("unknown key %q", s)
}

// StepKind is the primitive kind of a single action step.
type StepKind string

const (
	StepMoveTo       StepKind = "move_to"
	StepKeyDown      StepKind = "key_down"
	StepKeyUp        StepKind = "key_up"
	StepSendText     StepKind = "send_text"
	StepPressAndHold StepKind = "press_and_hold"
	StepRelease      StepKind = "release"
	StepDragBy       StepKind = "drag_by"
	StepInvoke       StepKind = "invoke"
)

// Effect is a scripted effect applied directly to an element, bypassing
// synthesized input.
type Effect string

const (
	EffectScrollIntoView Effect = "scroll_into_view"
	EffectClick          Effect = "click"
	// EffectSetValue assigns ActionStep.Text as the element's value. On a
	// select it picks the option with that value or label.
	EffectSetValue Effect = "set_value"
)

// ActionStep is one primitive input operation. Which fields are meaningful
// depends on Kind.
type ActionStep struct {
	Kind StepKind `json:"kind"`
	// Element is set for steps that target an element (move_to, invoke, and
	// press_and_hold when anchored to an element).
	Element *Element `json:"element,omitempty"`
	// OffsetX/OffsetY are relative to the element's center for move_to.
	OffsetX float64 `json:"offset_x,omitempty"`
	OffsetY float64 `json:"offset_y,omitempty"`
	Key     Key     `json:"key,omitempty"`
	Text    string  `json:"text,omitempty"`
	// DX/DY are the pointer delta for drag_by.
	DX     float64 `json:"dx,omitempty"`
	DY     float64 `json:"dy,omitempty"`
	Effect Effect  `json:"effect,omitempty"`
}

func (s ActionStep) String() string {
	switch s.Kind {
	case StepKeyDown, StepKeyUp:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Key)
	case StepSendText:
		return fmt.Sprintf("%s(%q)", s.Kind, s.Text)
	case StepDragBy:
		return fmt.Sprintf("%s(%g,%g)", s.Kind, s.DX, s.DY)
	case StepInvoke:
		if s.Element != nil && s.Effect == EffectSetValue {
			return fmt.Sprintf("%s(%s,%s,%q)", s.Kind, s.Element.ID, s.Effect, s.Text)
		}
		if s.Element != nil {
			return fmt.Sprintf("%s(%s,%s)", s.Kind, s.Element.ID, s.Effect)
		}
	}
	if s.Element != nil {
		return fmt.Sprintf("%s(%s)", s.Kind, s.Element.ID)
	}
	return string(s.Kind)
}

// MouseEventType defines the type of a mouse event.
type MouseEventType string

const (
	MouseMove    MouseEventType = "mouseMoved"
	MousePress   MouseEventType = "mousePressed"
	MouseRelease MouseEventType = "mouseReleased"
)

// MouseButton defines the mouse button being pressed.
type MouseButton string

const (
	ButtonNone   MouseButton = "none"
	ButtonLeft   MouseButton = "left"
	ButtonRight  MouseButton = "right"
	ButtonMiddle MouseButton = "middle"
)

// MouseEventData is the driver-agnostic form of a synthesized mouse event.
type MouseEventData struct {
	Type       MouseEventType `json:"type"`
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	Button     MouseButton    `json:"button"`
	ClickCount int            `json:"clickCount"`
	// Buttons is the bitfield of buttons currently held (1 = left).
	Buttons   int64 `json:"buttons"`
	Modifiers int64 `json:"modifiers"`
}
