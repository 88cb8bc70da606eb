// File: internal/browser/static/driver.go
package static

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/actuate/api/schemas"
	"github.com/xkilldash9x/actuate/internal/driver"
)

// Options configures the static driver.
type Options struct {
	Logger       *zap.Logger
	Client       *http.Client
	FetchTimeout time.Duration
	// StartURL is loaded into the initial context. Defaults to about:blank.
	StartURL string
}

// Driver is a pure-Go browser backend. Documents are parsed with
// golang.org/x/net/html and queried through XPath; there is no script engine,
// but the common inline handlers (alert/confirm/prompt, window.open and
// location assignment) are interpreted so dialogs and popups behave like they
// do in a real browser.
type Driver struct {
	logger *zap.Logger
	loader *loader

	mu        sync.Mutex
	closed    bool
	pages     map[schemas.Handle]*page
	nextID    int
	clipboard string
}

var (
	_ driver.Driver         = (*Driver)(nil)
	_ driver.PropertyReader = (*Driver)(nil)
)

// New creates a driver with a single context showing opts.StartURL.
func New(ctx context.Context, opts Options) (*Driver, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	d := &Driver{
		logger: logger.Named("static_driver"),
		loader: &loader{client: client, timeout: opts.FetchTimeout},
		pages:  make(map[schemas.Handle]*page),
	}

	start := opts.StartURL
	if start == "" {
		start = "about:blank"
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.openContextLocked(ctx, nil, start); err != nil {
		return nil, err
	}
	return d, nil
}

// Factory provisions static drivers.
type Factory struct {
	Options Options
}

func (f Factory) NewDriver(ctx context.Context) (driver.Driver, error) {
	return New(ctx, f.Options)
}

func (d *Driver) openContextLocked(ctx context.Context, base *page, ref string) (schemas.Handle, error) {
	var baseURL = aboutBlank
	if base != nil {
		baseURL = base.url
	}
	u, doc, err := d.loader.load(ctx, baseURL, ref)
	if err != nil {
		return "", err
	}
	d.nextID++
	h := schemas.Handle(fmt.Sprintf("ctx-%d", d.nextID))
	p := newPage(h)
	p.install(u, doc)
	d.pages[h] = p
	d.logger.Debug("Context opened.", zap.String("handle", string(h)), zap.String("url", u.String()))
	return h, nil
}

// pageLocked returns the page for h.
func (d *Driver) pageLocked(h schemas.Handle) (*page, error) {
	if d.closed {
		return nil, driver.ErrSessionLost
	}
	p, ok := d.pages[h]
	if !ok {
		return nil, driver.NewUnknownContextError(h)
	}
	return p, nil
}

// interactivePageLocked is pageLocked for operations a dialog blocks.
func (d *Driver) interactivePageLocked(h schemas.Handle) (*page, error) {
	p, err := d.pageLocked(h)
	if err != nil {
		return nil, err
	}
	if p.dialog != nil {
		return nil, driver.ErrDialogBlocking
	}
	return p, nil
}

func (d *Driver) ResolveLocator(_ context.Context, h schemas.Handle, loc schemas.Locator) ([]schemas.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.interactivePageLocked(h)
	if err != nil {
		return nil, err
	}

	nodes, err := queryNodes(p.doc, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid locator %s: %w", loc, err)
	}

	els := make([]schemas.Element, 0, len(nodes))
	for _, n := range nodes {
		if n.Type != html.ElementNode {
			continue
		}
		els = append(els, p.mint(n, loc))
	}
	return els, nil
}

func (d *Driver) ElementState(_ context.Context, el schemas.Element) (schemas.ElementState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.interactivePageLocked(el.Context)
	if err != nil {
		if errors.Is(err, driver.ErrUnknownContext) {
			// The element's context closed, taking the element with it.
			return schemas.ElementState{}, nil
		}
		return schemas.ElementState{}, err
	}
	n, ok := p.lookup(el)
	if !ok {
		return schemas.ElementState{}, nil
	}
	return schemas.ElementState{Attached: true, Visible: isVisible(n), Enabled: isEnabled(n)}, nil
}

// Property reads a live property of el: "value", "text", "checked", or any
// attribute name.
func (d *Driver) Property(_ context.Context, el schemas.Element, name string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.interactivePageLocked(el.Context)
	if err != nil {
		return "", err
	}
	n, ok := p.lookup(el)
	if !ok {
		return "", driver.NewStaleElementError(el)
	}
	return property(n, name), nil
}

func (d *Driver) ListContexts(_ context.Context) (schemas.HandleSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, driver.ErrSessionLost
	}
	set := make(schemas.HandleSet, len(d.pages))
	for h := range d.pages {
		set[h] = struct{}{}
	}
	return set, nil
}

func (d *Driver) Activate(_ context.Context, h schemas.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.pageLocked(h)
	return err
}

func (d *Driver) Describe(_ context.Context, h schemas.Handle) (schemas.ContextInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.pageLocked(h)
	if err != nil {
		return schemas.ContextInfo{}, err
	}
	return schemas.ContextInfo{Handle: h, Title: p.title(), URL: p.url.String()}, nil
}

func (d *Driver) Navigate(ctx context.Context, h schemas.Handle, ref string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.interactivePageLocked(h)
	if err != nil {
		return err
	}
	return d.navigateLocked(ctx, p, ref)
}

func (d *Driver) navigateLocked(ctx context.Context, p *page, ref string) error {
	u, doc, err := d.loader.load(ctx, p.url, ref)
	if err != nil {
		return err
	}
	p.install(u, doc)
	d.logger.Debug("Navigated.", zap.String("handle", string(p.handle)), zap.String("url", u.String()))
	return nil
}

// CloseContext closes a single context, as a page calling window.close would.
func (d *Driver) CloseContext(_ context.Context, h schemas.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.pageLocked(h)
	if err != nil {
		return err
	}
	d.closeContextLocked(p)
	return nil
}

// closeContextLocked drops p. Elements minted in it report detached from now on.
func (d *Driver) closeContextLocked(p *page) {
	delete(d.pages, p.handle)
	d.logger.Debug("Context closed.", zap.String("handle", string(p.handle)))
}

// Close discards every context. Later calls report ErrSessionLost.
func (d *Driver) Close(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.pages = nil
	return nil
}
