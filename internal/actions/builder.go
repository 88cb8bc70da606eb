// File: internal/actions/builder.go
package actions

import (
	"context"

	"github.com/xkilldash9x/actuate/api/schemas"
)

// Builder accumulates input steps in call order. It is not safe for
// concurrent use; build one chain per goroutine.
type Builder struct {
	steps []schemas.ActionStep
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) add(step schemas.ActionStep) *Builder {
	b.steps = append(b.steps, step)
	return b
}

// MoveTo moves the pointer to the center of el.
func (b *Builder) MoveTo(el schemas.Element) *Builder {
	return b.MoveToOffset(el, 0, 0)
}

// MoveToOffset moves the pointer to el's center shifted by (x, y).
func (b *Builder) MoveToOffset(el schemas.Element, x, y float64) *Builder {
	return b.add(schemas.ActionStep{Kind: schemas.StepMoveTo, Element: ref(el), OffsetX: x, OffsetY: y})
}

// KeyDown presses and holds k. The matching KeyUp is the caller's job.
func (b *Builder) KeyDown(k schemas.Key) *Builder {
	return b.add(schemas.ActionStep{Kind: schemas.StepKeyDown, Key: k})
}

func (b *Builder) KeyUp(k schemas.Key) *Builder {
	return b.add(schemas.ActionStep{Kind: schemas.StepKeyUp, Key: k})
}

// SendKeys types text into whatever has keyboard focus, under the modifiers
// currently held.
func (b *Builder) SendKeys(text string) *Builder {
	return b.add(schemas.ActionStep{Kind: schemas.StepSendText, Text: text})
}

// PressAndHold presses the primary button at the current pointer position.
func (b *Builder) PressAndHold() *Builder {
	return b.add(schemas.ActionStep{Kind: schemas.StepPressAndHold})
}

// Release releases the primary button at the current pointer position.
func (b *Builder) Release() *Builder {
	return b.add(schemas.ActionStep{Kind: schemas.StepRelease})
}

// Click presses and releases at the current pointer position.
func (b *Builder) Click() *Builder {
	return b.PressAndHold().Release()
}

// ClickOn moves to el and clicks it.
func (b *Builder) ClickOn(el schemas.Element) *Builder {
	return b.MoveTo(el).Click()
}

// DragAndDropBy expands to move_to(el), press_and_hold(el), drag_by(dx, dy),
// release. The press is anchored to el so that an element going stale after
// the move stops the drag before the button goes down.
func (b *Builder) DragAndDropBy(el schemas.Element, dx, dy float64) *Builder {
	b.MoveTo(el)
	b.add(schemas.ActionStep{Kind: schemas.StepPressAndHold, Element: ref(el)})
	b.add(schemas.ActionStep{Kind: schemas.StepDragBy, DX: dx, DY: dy})
	return b.Release()
}

// Invoke applies a scripted effect directly to el.
func (b *Builder) Invoke(el schemas.Element, effect schemas.Effect) *Builder {
	return b.add(schemas.ActionStep{Kind: schemas.StepInvoke, Element: ref(el), Effect: effect})
}

// SetValue assigns v to el directly, without synthesizing keystrokes.
func (b *Builder) SetValue(el schemas.Element, v string) *Builder {
	return b.add(schemas.ActionStep{Kind: schemas.StepInvoke, Element: ref(el), Effect: schemas.EffectSetValue, Text: v})
}

// Build freezes the accumulated steps. Later builder calls do not affect the
// returned chain.
func (b *Builder) Build() *Chain {
	steps := make([]schemas.ActionStep, len(b.steps))
	for i, s := range b.steps {
		if s.Element != nil {
			s.Element = ref(*s.Element)
		}
		steps[i] = s
	}
	return &Chain{steps: steps}
}

// Perform builds the chain and performs it.
func (b *Builder) Perform(ctx context.Context, target Target, opts ...PerformOption) error {
	return b.Build().Perform(ctx, target, opts...)
}

func ref(el schemas.Element) *schemas.Element {
	return &el
}
