package cdp

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"

	"github.com/xkilldash9x/actuate/api/schemas"
	"github.com/xkilldash9x/actuate/internal/driver"
)

// dragSegments is how many pointer moves a drag_by is split into. Pages
// listening for mousemove need more than one event to register a drag.
const dragSegments = 5

func mouseParams(data schemas.MouseEventData) *input.DispatchMouseEventParams {
	p := input.DispatchMouseEvent(input.MouseType(data.Type), data.X, data.Y).
		WithButton(input.MouseButton(data.Button)).
		WithButtons(data.Buttons).
		WithModifiers(input.Modifier(data.Modifiers))
	if data.ClickCount > 0 {
		p = p.WithClickCount(int64(data.ClickCount))
	}
	return p
}

// dragPath splits a pointer delta into n evenly spaced points ending at
// (x+dx, y+dy).
func dragPath(x, y, dx, dy float64, n int) []point {
	if n < 1 {
		n = 1
	}
	pts := make([]point, n)
	for i := 1; i <= n; i++ {
		f := float64(i) / float64(n)
		pts[i-1] = point{X: x + dx*f, Y: y + dy*f}
	}
	return pts
}

// DispatchInput sends one input step to the page in h.
func (d *Driver) DispatchInput(ctx context.Context, h schemas.Handle, step schemas.ActionStep) error {
	t, err := d.interactiveTab(ctx, h)
	if err != nil {
		return err
	}
	if step.Element != nil && step.Element.Context != h {
		return driver.NewStaleElementError(*step.Element)
	}

	switch step.Kind {
	case schemas.StepMoveTo:
		return d.moveTo(ctx, t, step)
	case schemas.StepPressAndHold:
		if step.Element != nil {
			if err := d.moveTo(ctx, t, schemas.ActionStep{Kind: schemas.StepMoveTo, Element: step.Element}); err != nil {
				return err
			}
		}
		x, y, _, mods := t.pointer()
		t.setButtons(1)
		return d.runInput(ctx, t, mouseParams(schemas.MouseEventData{
			Type: schemas.MousePress, X: x, Y: y, Button: schemas.ButtonLeft,
			ClickCount: 1, Buttons: 1, Modifiers: int64(mods),
		}))
	case schemas.StepDragBy:
		x, y, buttons, mods := t.pointer()
		for _, pt := range dragPath(x, y, step.DX, step.DY, dragSegments) {
			err := d.runInput(ctx, t, mouseParams(schemas.MouseEventData{
				Type: schemas.MouseMove, X: pt.X, Y: pt.Y, Button: schemas.ButtonLeft,
				Buttons: buttons, Modifiers: int64(mods),
			}))
			if err != nil {
				return err
			}
			t.setPointer(pt.X, pt.Y)
		}
		return nil
	case schemas.StepRelease:
		x, y, _, mods := t.pointer()
		t.setButtons(0)
		return d.runInput(ctx, t, mouseParams(schemas.MouseEventData{
			Type: schemas.MouseRelease, X: x, Y: y, Button: schemas.ButtonLeft,
			ClickCount: 1, Modifiers: int64(mods),
		}))
	case schemas.StepKeyDown, schemas.StepKeyUp:
		return d.key(ctx, t, step.Key, step.Kind == schemas.StepKeyDown)
	case schemas.StepSendText:
		_, _, _, mods := t.pointer()
		for _, r := range step.Text {
			for _, ev := range textEvents(r, mods) {
				if err := d.runInput(ctx, t, ev); err != nil {
					return err
				}
			}
		}
		return nil
	case schemas.StepInvoke:
		return d.invoke(ctx, t, step)
	}
	return fmt.Errorf("unsupported step kind %q", step.Kind)
}

func (d *Driver) moveTo(ctx context.Context, t *tab, step schemas.ActionStep) error {
	x, y, buttons, mods := t.pointer()
	if step.Element != nil {
		c, err := d.center(ctx, t, *step.Element)
		if err != nil {
			return err
		}
		x, y = c.X, c.Y
	}
	x += step.OffsetX
	y += step.OffsetY

	button := schemas.ButtonNone
	if buttons != 0 {
		button = schemas.ButtonLeft
	}
	err := d.runInput(ctx, t, mouseParams(schemas.MouseEventData{
		Type: schemas.MouseMove, X: x, Y: y, Button: button,
		Buttons: buttons, Modifiers: int64(mods),
	}))
	if err != nil {
		return err
	}
	t.setPointer(x, y)
	return nil
}

func (d *Driver) key(ctx context.Context, t *tab, k schemas.Key, down bool) error {
	def, ok := keyDefs[k]
	if !ok {
		runes := []rune(string(k))
		if len(runes) != 1 {
			return fmt.Errorf("unsupported key %q", k)
		}
		// A printable key: down types it, up is implied by the encoding.
		if !down {
			return nil
		}
		_, _, _, mods := t.pointer()
		for _, ev := range textEvents(runes[0], mods) {
			if err := d.runInput(ctx, t, ev); err != nil {
				return err
			}
		}
		return nil
	}

	_, _, _, mods := t.pointer()
	if def.modifier != 0 {
		mods = t.setModifier(def.modifier, down)
	}
	return d.runInput(ctx, t, keyEvent(def, down, mods))
}

func (d *Driver) invoke(ctx context.Context, t *tab, step schemas.ActionStep) error {
	if step.Element == nil {
		return fmt.Errorf("invoke requires an element")
	}
	var decl string
	switch step.Effect {
	case schemas.EffectClick:
		decl = clickFn
	case schemas.EffectScrollIntoView:
		decl = scrollFn
	case schemas.EffectSetValue:
		fn, err := setValueFn(step.Text)
		if err != nil {
			return err
		}
		decl = fn
	default:
		return fmt.Errorf("unsupported invoke effect %q", step.Effect)
	}
	return d.runInput(ctx, t, objectAction(*step.Element, func(c context.Context, id runtime.RemoteObjectID) error {
		return callFunction(c, id, decl, nil)
	}))
}
