// File: internal/contexts/tracker.go
package contexts

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/actuate/api/schemas"
	"github.com/xkilldash9x/actuate/internal/driver"
)

// Tracker owns the notion of which context has focus and mediates dialog
// handling for it. Membership is always checked against the driver at call
// time; the tracker caches nothing but the focused handle.
type Tracker struct {
	drv    driver.Driver
	logger *zap.Logger

	mu       sync.Mutex
	focused  schemas.Handle
	hasFocus bool
}

// NewTracker creates a tracker focused on initial.
func NewTracker(drv driver.Driver, logger *zap.Logger, initial schemas.Handle) *Tracker {
	return &Tracker{
		drv:      drv,
		logger:   logger.Named("contexts"),
		focused:  initial,
		hasFocus: initial != "",
	}
}

func (t *Tracker) Driver() driver.Driver { return t.drv }

// FocusedHandle returns the context that receives queries and input.
// ErrNoFocusedContext means the focused context closed and no switch has
// happened since.
func (t *Tracker) FocusedHandle() (schemas.Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasFocus {
		return "", driver.ErrNoFocusedContext
	}
	return t.focused, nil
}

// CurrentContexts returns the live set of context handles. If the focused
// context is no longer in it, focus becomes undefined.
func (t *Tracker) CurrentContexts(ctx context.Context) (schemas.HandleSet, error) {
	set, err := t.drv.ListContexts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing contexts: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hasFocus && !set.Contains(t.focused) {
		t.logger.Warn("Focused context closed.", zap.String("handle", string(t.focused)))
		t.hasFocus = false
		t.focused = ""
	}
	return set, nil
}

// SwitchTo moves focus to h. A handle not in the current set fails with
// *driver.UnknownContextError and nothing is dispatched to the browser.
func (t *Tracker) SwitchTo(ctx context.Context, h schemas.Handle) error {
	set, err := t.CurrentContexts(ctx)
	if err != nil {
		return err
	}
	if !set.Contains(h) {
		return driver.NewUnknownContextError(h)
	}
	if err := t.drv.Activate(ctx, h); err != nil {
		return fmt.Errorf("activating context %q: %w", h, err)
	}

	t.mu.Lock()
	t.focused = h
	t.hasFocus = true
	t.mu.Unlock()

	t.logger.Debug("Switched context.", zap.String("handle", string(h)))
	return nil
}

// Describe returns the title and URL of h.
func (t *Tracker) Describe(ctx context.Context, h schemas.Handle) (schemas.ContextInfo, error) {
	info, err := t.drv.Describe(ctx, h)
	if err != nil {
		return schemas.ContextInfo{}, fmt.Errorf("describing context %q: %w", h, err)
	}
	return info, nil
}

// Spawned returns the contexts opened since before was captured, in lexical
// order.
func (t *Tracker) Spawned(ctx context.Context, before schemas.HandleSet) ([]schemas.Handle, error) {
	set, err := t.CurrentContexts(ctx)
	if err != nil {
		return nil, err
	}
	return set.Diff(before).Sorted(), nil
}
