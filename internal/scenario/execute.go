// File: internal/scenario/execute.go
package scenario

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/actuate/api/schemas"
	"github.com/xkilldash9x/actuate/internal/driver"
	"github.com/xkilldash9x/actuate/internal/session"
	"github.com/xkilldash9x/actuate/internal/wait"
)

// ErrUnmet is wrapped by failures of dialog checks.
var ErrUnmet = errors.New("expectation not met")

// StepError reports the step that stopped a scenario.
type StepError struct {
	Index   int
	Line    int
	Kind    string
	Elapsed time.Duration
	Err     error
}

func (e *StepError) Error() string {
	where := fmt.Sprintf("step %d (%s", e.Index, e.Kind)
	if e.Line > 0 {
		where += fmt.Sprintf(", line %d", e.Line)
	}
	return fmt.Sprintf("%s) failed after %s: %v", where, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

type executor struct {
	s      *session.Session
	sc     *Scenario
	logger *zap.Logger
	timing wait.Timing

	original schemas.Handle
	known    schemas.HandleSet
}

// Execute runs the scenario's steps in order against s. The first failing
// step stops the run and is returned as a *StepError.
func Execute(ctx context.Context, s *session.Session, sc *Scenario) error {
	if err := sc.Validate(); err != nil {
		return err
	}

	timing := s.Poller().Defaults()
	if sc.Timeout > 0 {
		timing.Timeout = sc.Timeout
	}
	if sc.Interval > 0 {
		timing.Interval = sc.Interval
	}

	original, err := s.FocusedHandle()
	if err != nil {
		return err
	}
	known, err := s.Contexts().CurrentContexts(ctx)
	if err != nil {
		return err
	}

	e := &executor{
		s:        s,
		sc:       sc,
		logger:   s.Logger().Named("scenario").With(zap.String("scenario", sc.Name)),
		timing:   timing,
		original: original,
		known:    known,
	}
	e.logger.Info("Running scenario.", zap.Int("steps", len(sc.Steps)))

	clock := s.Poller().Clock()
	for i, st := range sc.Steps {
		start := clock.Now()
		err := e.step(ctx, st)
		elapsed := clock.Now().Sub(start)
		if err != nil {
			e.logger.Error("Step failed.", zap.Int("step", i), zap.String("kind", st.Kind()), zap.Duration("elapsed", elapsed), zap.Error(err))
			return &StepError{Index: i, Line: st.Line, Kind: st.Kind(), Elapsed: elapsed, Err: err}
		}
		e.logger.Debug("Step done.", zap.Int("step", i), zap.String("kind", st.Kind()), zap.Duration("elapsed", elapsed))
	}
	e.logger.Info("Scenario passed.")
	return nil
}

func (e *executor) step(ctx context.Context, st Step) error {
	switch {
	case st.Navigate != "":
		return e.s.Navigate(ctx, e.resolveURL(st.Navigate))
	case st.Await != nil:
		cond, err := awaitCondition(*st.Await)
		if err != nil {
			return err
		}
		_, err = await(ctx, e, cond, st.Await.Timeout)
		return err
	case st.Click != nil:
		el, err := e.element(ctx, *st.Click, wait.Clickable)
		if err != nil {
			return err
		}
		return e.s.Perform(ctx, e.s.Actions().ClickOn(el).Build())
	case st.Type != nil:
		el, err := e.element(ctx, st.Type.Target, wait.Visible)
		if err != nil {
			return err
		}
		return e.s.Perform(ctx, e.s.Actions().ClickOn(el).SendKeys(st.Type.Text).Build())
	case st.Chain != nil:
		return e.chain(ctx, st.Chain)
	case st.Drag != nil:
		el, err := e.element(ctx, st.Drag.Target, wait.Visible)
		if err != nil {
			return err
		}
		return e.s.Perform(ctx, e.s.Actions().DragAndDropBy(el, st.Drag.DX, st.Drag.DY).Build())
	case st.Invoke != nil:
		el, err := e.element(ctx, st.Invoke.Target, wait.Present)
		if err != nil {
			return err
		}
		b := e.s.Actions()
		switch st.Invoke.Effect {
		case schemas.EffectSetValue:
			b.SetValue(el, *st.Invoke.Value)
		case "":
			b.Invoke(el, schemas.EffectClick)
		default:
			b.Invoke(el, st.Invoke.Effect)
		}
		return e.s.Perform(ctx, b.Build())
	case st.Switch != nil:
		return e.switchTo(ctx, *st.Switch)
	case st.Dialog != nil:
		return e.dialog(ctx, *st.Dialog)
	case st.Expect != nil:
		cond, err := expectation(*st.Expect)
		if err != nil {
			return err
		}
		_, err = await(ctx, e, cond, st.Expect.Timeout)
		return err
	}
	return errors.New("step has no action")
}

// await polls cond with the scenario's timing; timeout overrides it when set.
func await[T any](ctx context.Context, e *executor, cond wait.Condition[T], timeout time.Duration) (T, error) {
	t := e.timing
	if timeout > 0 {
		t.Timeout = timeout
	}
	return wait.Await(ctx, e.s.Poller(), e.s, cond, t)
}

func (e *executor) element(ctx context.Context, t Target, cond func(schemas.Locator) wait.Condition[schemas.Element]) (schemas.Element, error) {
	loc, err := t.Locator()
	if err != nil {
		return schemas.Element{}, err
	}
	return await(ctx, e, cond(loc), 0)
}

// chain resolves every referenced element up front, then performs the chain
// as one unit.
func (e *executor) chain(ctx context.Context, steps []ChainStep) error {
	b := e.s.Actions()
	for i, c := range steps {
		switch {
		case c.MoveTo != nil:
			el, err := e.element(ctx, *c.MoveTo, wait.Present)
			if err != nil {
				return fmt.Errorf("chain step %d: %w", i, err)
			}
			b.MoveTo(el)
		case c.KeyDown != "":
			k, err := schemas.ParseKey(c.KeyDown)
			if err != nil {
				return err
			}
			b.KeyDown(k)
		case c.KeyUp != "":
			k, err := schemas.ParseKey(c.KeyUp)
			if err != nil {
				return err
			}
			b.KeyUp(k)
		case c.SendKeys != "":
			b.SendKeys(c.SendKeys)
		case c.PressAndHold != nil:
			if !c.PressAndHold.IsZero() {
				el, err := e.element(ctx, *c.PressAndHold, wait.Present)
				if err != nil {
					return fmt.Errorf("chain step %d: %w", i, err)
				}
				b.MoveTo(el)
			}
			b.PressAndHold()
		case c.Release:
			b.Release()
		case c.Click != nil:
			if c.Click.IsZero() {
				b.Click()
				continue
			}
			el, err := e.element(ctx, *c.Click, wait.Present)
			if err != nil {
				return fmt.Errorf("chain step %d: %w", i, err)
			}
			b.ClickOn(el)
		}
	}
	return e.s.Perform(ctx, b.Build())
}

func (e *executor) switchTo(ctx context.Context, sw SwitchStep) error {
	tr := e.s.Contexts()
	var target schemas.Handle
	switch {
	case sw.Original:
		target = e.original
	case sw.Handle != "":
		target = schemas.Handle(sw.Handle)
	case sw.New:
		h, err := await(ctx, e, wait.NewContext(e.known), sw.Timeout)
		if err != nil {
			return err
		}
		target = h
	case sw.Title != "":
		h, err := await(ctx, e, e.titled(sw.Title), sw.Timeout)
		if err != nil {
			return err
		}
		target = h
	}

	if err := tr.SwitchTo(ctx, target); err != nil {
		return err
	}
	set, err := tr.CurrentContexts(ctx)
	if err != nil {
		return err
	}
	e.known = set
	return nil
}

// titled holds once some open context's title contains sub.
func (e *executor) titled(sub string) wait.Condition[schemas.Handle] {
	return wait.New(fmt.Sprintf("a context with title containing %q", sub), func(ctx context.Context, s wait.Scope) (schemas.Handle, bool, error) {
		set, err := s.Driver().ListContexts(ctx)
		if err != nil {
			return "", false, err
		}
		for _, h := range set.Sorted() {
			info, err := s.Driver().Describe(ctx, h)
			if errors.Is(err, driver.ErrUnknownContext) {
				continue
			}
			if err != nil {
				return "", false, err
			}
			e.logger.Debug("Context.", zap.String("handle", string(h)), zap.String("title", info.Title))
			if strings.Contains(info.Title, sub) {
				return h, true, nil
			}
		}
		return "", false, nil
	})
}

func (e *executor) dialog(ctx context.Context, ds DialogStep) error {
	dlg, err := await(ctx, e, wait.DialogPresent(), ds.Timeout)
	if err != nil {
		return err
	}
	e.logger.Info("Dialog.", zap.String("type", string(dlg.Type)), zap.String("message", dlg.Message))

	if ds.Type != "" && dlg.Type != ds.Type {
		return fmt.Errorf("%w: dialog is a %s, want %s", ErrUnmet, dlg.Type, ds.Type)
	}
	if ds.Message != "" && !strings.Contains(dlg.Message, ds.Message) {
		return fmt.Errorf("%w: dialog message %q does not contain %q", ErrUnmet, dlg.Message, ds.Message)
	}

	tr := e.s.Contexts()
	if ds.Text != nil {
		if err := tr.SetDialogText(ctx, *ds.Text); err != nil {
			return err
		}
	}
	if ds.Action == DialogDismiss {
		return tr.DismissDialog(ctx)
	}
	return tr.AcceptDialog(ctx)
}

// resolveURL turns a scheme-less target into a file URL relative to the
// scenario's directory.
func (e *executor) resolveURL(raw string) string {
	if e.sc.Dir == "" {
		return raw
	}
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" {
		return raw
	}
	p := raw
	if !filepath.IsAbs(p) {
		p = filepath.Join(e.sc.Dir, p)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String()
}
