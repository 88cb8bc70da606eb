// File: internal/browser/cdp/driver.go
package cdp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/actuate/api/schemas"
	"github.com/xkilldash9x/actuate/internal/driver"
	"github.com/xkilldash9x/actuate/internal/session"
)

// Driver drives a Chrome instance over the DevTools protocol. Every page
// target is a browsing context; its handle is the target ID.
type Driver struct {
	logger     *zap.Logger
	browserCtx context.Context
	shutdown   func()

	mu     sync.Mutex
	tabs   map[schemas.Handle]*tab
	closed bool
}

var (
	_ driver.Driver         = (*Driver)(nil)
	_ driver.PropertyReader = (*Driver)(nil)
)

func newDriver(browserCtx context.Context, shutdown func(), logger *zap.Logger) (*Driver, error) {
	c := chromedp.FromContext(browserCtx)
	if c == nil || c.Target == nil {
		return nil, errors.New("browser context has no attached page")
	}
	d := &Driver{
		logger:     logger.Named("cdp_driver"),
		browserCtx: browserCtx,
		shutdown:   shutdown,
		tabs:       make(map[schemas.Handle]*tab),
	}
	// The first page shares the browser context; cancelling it would close
	// the browser, so it gets no cancel of its own.
	h := schemas.Handle(c.Target.TargetID)
	t := newTab(h, browserCtx, nil)
	t.listen()
	d.tabs[h] = t
	return d, nil
}

// classify maps protocol failures onto the driver error vocabulary.
func (d *Driver) classify(err error) error {
	if err == nil {
		return nil
	}
	var stale *driver.StaleElementError
	if errors.As(err, &stale) {
		return err
	}
	if d.browserCtx.Err() != nil || errors.Is(err, chromedp.ErrInvalidContext) {
		return fmt.Errorf("%w: %v", driver.ErrSessionLost, err)
	}
	return err
}

// isNodeGone reports protocol errors meaning a node no longer exists.
func isNodeGone(err error) bool {
	var cerr *cdproto.Error
	if !errors.As(err, &cerr) {
		return false
	}
	msg := strings.ToLower(cerr.Message)
	for _, s := range []string{"no node", "could not find node", "node is detached", "cannot find context"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// run executes actions on t's target under the caller's deadline.
func (d *Driver) run(ctx context.Context, t *tab, actions ...chromedp.Action) error {
	runCtx, cancel := session.CombineContext(t.ctx, ctx)
	defer cancel()
	return d.classify(chromedp.Run(runCtx, actions...))
}

// runInput is run for actions that may raise a dialog. The protocol call
// blocks for as long as the dialog is showing, so the step counts as done
// once the dialog opens.
func (d *Driver) runInput(ctx context.Context, t *tab, action chromedp.Action) error {
	signal := t.dialogSignal()
	runCtx, cancel := session.CombineContext(t.ctx, ctx)
	done := make(chan error, 1)
	go func() {
		defer cancel()
		done <- chromedp.Run(runCtx, action)
	}()

	select {
	case err := <-done:
		return d.classify(err)
	case <-signal:
		d.logger.Debug("Input raised a dialog.", zap.String("handle", string(t.handle)))
		return nil
	}
}

func (d *Driver) pageTargets(ctx context.Context) ([]*target.Info, error) {
	if d.browserCtx.Err() != nil {
		return nil, driver.ErrSessionLost
	}
	runCtx, cancel := session.CombineContext(d.browserCtx, ctx)
	defer cancel()
	infos, err := chromedp.Targets(runCtx)
	if err != nil {
		return nil, d.classify(err)
	}
	pages := infos[:0]
	for _, info := range infos {
		if info.Type == "page" {
			pages = append(pages, info)
		}
	}
	return pages, nil
}

// refreshLocked attaches to new page targets and forgets closed ones.
func (d *Driver) refreshLocked(ctx context.Context) (schemas.HandleSet, error) {
	infos, err := d.pageTargets(ctx)
	if err != nil {
		return nil, err
	}
	set := make(schemas.HandleSet, len(infos))
	for _, info := range infos {
		h := schemas.Handle(info.TargetID)
		set[h] = struct{}{}
		if _, ok := d.tabs[h]; ok {
			continue
		}
		if err := d.attachLocked(info.TargetID); err != nil {
			d.logger.Warn("Failed to attach to page target.", zap.String("handle", string(h)), zap.Error(err))
			delete(set, h)
		}
	}
	for h, t := range d.tabs {
		if !set.Contains(h) {
			if t.cancel != nil {
				t.cancel()
			}
			delete(d.tabs, h)
		}
	}
	return set, nil
}

func (d *Driver) attachLocked(id target.ID) error {
	tctx, cancel := chromedp.NewContext(d.browserCtx, chromedp.WithTargetID(id))
	t := newTab(schemas.Handle(id), tctx, cancel)
	t.listen()
	if err := chromedp.Run(tctx); err != nil {
		cancel()
		return d.classify(err)
	}
	d.tabs[t.handle] = t
	d.logger.Debug("Attached to page target.", zap.String("handle", string(t.handle)))
	return nil
}

func (d *Driver) tabFor(ctx context.Context, h schemas.Handle) (*tab, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.browserCtx.Err() != nil {
		return nil, driver.ErrSessionLost
	}
	if t, ok := d.tabs[h]; ok {
		return t, nil
	}
	if _, err := d.refreshLocked(ctx); err != nil {
		return nil, err
	}
	if t, ok := d.tabs[h]; ok {
		return t, nil
	}
	return nil, driver.NewUnknownContextError(h)
}

// interactiveTab is tabFor for operations a dialog blocks.
func (d *Driver) interactiveTab(ctx context.Context, h schemas.Handle) (*tab, error) {
	t, err := d.tabFor(ctx, h)
	if err != nil {
		return nil, err
	}
	if t.activeDialog() != nil {
		return nil, driver.ErrDialogBlocking
	}
	return t, nil
}

func (d *Driver) ListContexts(ctx context.Context) (schemas.HandleSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, driver.ErrSessionLost
	}
	return d.refreshLocked(ctx)
}

func (d *Driver) Activate(ctx context.Context, h schemas.Handle) error {
	t, err := d.tabFor(ctx, h)
	if err != nil {
		return err
	}
	return d.run(ctx, t, page.BringToFront())
}

// Describe reads title and URL from the target info, which stays available
// while a dialog blocks the page.
func (d *Driver) Describe(ctx context.Context, h schemas.Handle) (schemas.ContextInfo, error) {
	if _, err := d.tabFor(ctx, h); err != nil {
		return schemas.ContextInfo{}, err
	}
	infos, err := d.pageTargets(ctx)
	if err != nil {
		return schemas.ContextInfo{}, err
	}
	for _, info := range infos {
		if schemas.Handle(info.TargetID) == h {
			return schemas.ContextInfo{Handle: h, Title: info.Title, URL: info.URL}, nil
		}
	}
	return schemas.ContextInfo{}, driver.NewUnknownContextError(h)
}

func (d *Driver) Navigate(ctx context.Context, h schemas.Handle, url string) error {
	t, err := d.interactiveTab(ctx, h)
	if err != nil {
		return err
	}
	if err := d.run(ctx, t, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	t.setPointer(0, 0)
	t.setButtons(0)
	return nil
}

// Close shuts the browser down. Later calls report ErrSessionLost.
func (d *Driver) Close(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	for h, t := range d.tabs {
		if t.cancel != nil {
			t.cancel()
		}
		delete(d.tabs, h)
	}
	d.shutdown()
	d.logger.Debug("Browser closed.")
	return nil
}
