// File: internal/actions/chain.go
package actions

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/actuate/api/schemas"
	"github.com/xkilldash9x/actuate/internal/driver"
)

// Target is what a chain is performed against.
type Target interface {
	Driver() driver.Driver
	FocusedHandle() (schemas.Handle, error)
}

// Observer is notified for every dispatched step and for aborted chains.
type Observer interface {
	ObserveStep(kind schemas.StepKind)
	ObserveAbort(kind schemas.StepKind, err error)
}

// Chain is an immutable, ordered sequence of steps.
type Chain struct {
	steps []schemas.ActionStep
}

// Steps returns a copy of the chain's steps.
func (c *Chain) Steps() []schemas.ActionStep {
	out := make([]schemas.ActionStep, len(c.steps))
	copy(out, c.steps)
	return out
}

func (c *Chain) Len() int { return len(c.steps) }

// UnreleasedKeys lists keys that the chain presses and never releases, in
// press order.
func (c *Chain) UnreleasedKeys() []schemas.Key {
	var held []schemas.Key
	for _, s := range c.steps {
		switch s.Kind {
		case schemas.StepKeyDown:
			held = append(held, s.Key)
		case schemas.StepKeyUp:
			for i := len(held) - 1; i >= 0; i-- {
				if held[i] == s.Key {
					held = append(held[:i], held[i+1:]...)
					break
				}
			}
		}
	}
	return held
}

// PerformOption configures a single Perform call.
type PerformOption func(*performer)

func WithLogger(l *zap.Logger) PerformOption {
	return func(p *performer) { p.logger = l.Named("actions") }
}

func WithObserver(o Observer) PerformOption {
	return func(p *performer) { p.observer = o }
}

type performer struct {
	logger   *zap.Logger
	observer Observer
}

// Perform dispatches every step to the focused context, strictly in order.
//
// Each step that references an element is checked for liveness right before
// it is dispatched. A stale element aborts the chain with a
// *driver.StaleElementError naming the step; steps already dispatched are not
// undone and keys or buttons they pressed stay pressed.
func (c *Chain) Perform(ctx context.Context, target Target, opts ...PerformOption) error {
	p := performer{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&p)
	}

	if held := c.UnreleasedKeys(); len(held) > 0 {
		p.logger.Warn("Chain leaves keys pressed.", zap.Any("keys", held))
	}

	h, err := target.FocusedHandle()
	if err != nil {
		return fmt.Errorf("performing chain: %w", err)
	}
	drv := target.Driver()

	for i, step := range c.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step, err)
		}
		if step.Element != nil {
			if err := checkLive(ctx, drv, *step.Element, i); err != nil {
				p.abort(step, i, err)
				return err
			}
		}
		if err := drv.DispatchInput(ctx, h, step); err != nil {
			err = classifyDispatch(step, i, err)
			p.abort(step, i, err)
			return err
		}
		if p.observer != nil {
			p.observer.ObserveStep(step.Kind)
		}
	}
	p.logger.Debug("Chain performed.", zap.Int("steps", len(c.steps)), zap.String("context", string(h)))
	return nil
}

func (p *performer) abort(step schemas.ActionStep, i int, err error) {
	if p.observer != nil {
		p.observer.ObserveAbort(step.Kind, err)
	}
	p.logger.Warn("Chain aborted.", zap.Int("step", i), zap.Stringer("action", step), zap.Error(err))
}

func checkLive(ctx context.Context, drv driver.Driver, el schemas.Element, i int) error {
	st, err := drv.ElementState(ctx, el)
	if err != nil {
		if errors.Is(err, driver.ErrStaleElement) {
			return &driver.StaleElementError{Element: el, Step: i, Err: err}
		}
		return fmt.Errorf("step %d: checking %s: %w", i, el, err)
	}
	if !st.Attached {
		return &driver.StaleElementError{Element: el, Step: i}
	}
	return nil
}

func classifyDispatch(step schemas.ActionStep, i int, err error) error {
	if errors.Is(err, driver.ErrStaleElement) && step.Element != nil {
		var se *driver.StaleElementError
		if errors.As(err, &se) && se.Step == i {
			return err
		}
		return &driver.StaleElementError{Element: *step.Element, Step: i, Err: err}
	}
	return fmt.Errorf("step %d (%s): %w", i, step, err)
}
