package cdp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	cdpnode "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/actuate/api/schemas"
	"github.com/xkilldash9x/actuate/internal/driver"
)

const stateFn = `function() {
	if (!this.isConnected) return {attached: false, visible: false, enabled: false};
	const style = window.getComputedStyle(this);
	const rect = this.getBoundingClientRect();
	const visible = style.display !== 'none' && style.visibility !== 'hidden' &&
		style.opacity !== '0' && (rect.width > 0 || rect.height > 0);
	const enabled = !this.disabled && !(this.closest && this.closest('fieldset[disabled]'));
	return {attached: true, visible: visible, enabled: enabled};
}`

const centerFn = `function() {
	this.scrollIntoView({block: 'center', inline: 'center', behavior: 'instant'});
	const r = this.getBoundingClientRect();
	return {x: r.left + r.width / 2, y: r.top + r.height / 2};
}`

const clickFn = `function() { this.click(); }`

const scrollFn = `function() { this.scrollIntoView({block: 'center', inline: 'center', behavior: 'instant'}); }`

const setValueFnTemplate = `function() {
	const v = %s;
	if (this.tagName === 'SELECT') {
		const opt = Array.from(this.options).find(o => o.value === v || o.text.trim() === v);
		if (!opt) throw new Error('no option ' + JSON.stringify(v));
		this.value = opt.value;
	} else {
		this.value = v;
	}
	this.dispatchEvent(new Event('input', {bubbles: true}));
	this.dispatchEvent(new Event('change', {bubbles: true}));
}`

const propertyFnTemplate = `function() {
	const name = %s;
	switch (name) {
	case 'text': return (this.innerText || this.textContent || '').trim().replace(/\s+/g, ' ');
	case 'checked': return String(!!this.checked);
	case 'tag': return this.tagName.toLowerCase();
	case 'value': if ('value' in this) return String(this.value); break;
	}
	const v = this.getAttribute(name);
	return v === null ? '' : v;
}`

func setValueFn(v string) (string, error) {
	quoted, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(setValueFnTemplate, quoted), nil
}

type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// query maps a locator onto a chromedp selector and query options.
func query(loc schemas.Locator) (string, []chromedp.QueryOption, error) {
	opts := []chromedp.QueryOption{chromedp.AtLeast(0)}
	switch loc.Strategy {
	case schemas.StrategyXPath:
		return loc.Query, append(opts, chromedp.BySearch), nil
	case schemas.StrategyLinkText:
		return "//a[normalize-space(.)=" + xpathLiteral(strings.TrimSpace(loc.Query)) + "]", append(opts, chromedp.BySearch), nil
	case schemas.StrategyID:
		b, _ := json.Marshal(loc.Query)
		return "[id=" + string(b) + "]", append(opts, chromedp.ByQueryAll), nil
	case schemas.StrategyCSS:
		return loc.Query, append(opts, chromedp.ByQueryAll), nil
	}
	return "", nil, fmt.Errorf("unsupported locator strategy %q", loc.Strategy)
}

// xpathLiteral quotes s as an XPath string literal.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	for i, p := range parts {
		parts[i] = "'" + p + "'"
	}
	return "concat(" + strings.Join(parts, `, "'", `) + ")"
}

func (d *Driver) ResolveLocator(ctx context.Context, h schemas.Handle, loc schemas.Locator) ([]schemas.Element, error) {
	t, err := d.interactiveTab(ctx, h)
	if err != nil {
		return nil, err
	}
	sel, opts, err := query(loc)
	if err != nil {
		return nil, err
	}

	var nodes []*cdpnode.Node
	if err := d.run(ctx, t, chromedp.Nodes(sel, &nodes, opts...)); err != nil {
		return nil, fmt.Errorf("resolving %s: %w", loc, err)
	}
	els := make([]schemas.Element, 0, len(nodes))
	for _, n := range nodes {
		if n.NodeType != cdpnode.NodeTypeElement {
			continue
		}
		els = append(els, schemas.Element{
			ID:      strconv.FormatInt(int64(n.BackendNodeID), 10),
			Context: h,
			Locator: loc,
		})
	}
	return els, nil
}

// objectAction resolves el to a remote object on the page and hands it to fn.
func objectAction(el schemas.Element, fn func(context.Context, runtime.RemoteObjectID) error) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		backend, err := strconv.ParseInt(el.ID, 10, 64)
		if err != nil {
			return driver.NewStaleElementError(el)
		}
		obj, err := dom.ResolveNode().WithBackendNodeID(cdpnode.BackendNodeID(backend)).Do(ctx)
		if err != nil {
			if isNodeGone(err) {
				return driver.NewStaleElementError(el)
			}
			return err
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()
		return fn(ctx, obj.ObjectID)
	}
}

// callFunction calls decl with the object as this and decodes the result
// into out when out is non-nil.
func callFunction(ctx context.Context, id runtime.RemoteObjectID, decl string, out interface{}) error {
	res, exc, err := runtime.CallFunctionOn(decl).
		WithObjectID(id).
		WithReturnByValue(true).
		Do(ctx)
	if err != nil {
		return err
	}
	if exc != nil {
		return fmt.Errorf("script exception: %s", exc.Text)
	}
	if out == nil || res == nil || len(res.Value) == 0 {
		return nil
	}
	return json.Unmarshal([]byte(res.Value), out)
}

func (d *Driver) ElementState(ctx context.Context, el schemas.Element) (schemas.ElementState, error) {
	t, err := d.interactiveTab(ctx, el.Context)
	if err != nil {
		if errors.Is(err, driver.ErrUnknownContext) {
			return schemas.ElementState{}, nil
		}
		return schemas.ElementState{}, err
	}
	var st schemas.ElementState
	err = d.run(ctx, t, objectAction(el, func(c context.Context, id runtime.RemoteObjectID) error {
		return callFunction(c, id, stateFn, &st)
	}))
	if errors.Is(err, driver.ErrStaleElement) {
		return schemas.ElementState{}, nil
	}
	return st, err
}

// Property reads a live property of el: "value", "text", "checked", "tag",
// or any attribute name.
func (d *Driver) Property(ctx context.Context, el schemas.Element, name string) (string, error) {
	t, err := d.interactiveTab(ctx, el.Context)
	if err != nil {
		return "", err
	}
	quoted, err := json.Marshal(name)
	if err != nil {
		return "", err
	}
	decl := fmt.Sprintf(propertyFnTemplate, quoted)

	var v string
	err = d.run(ctx, t, objectAction(el, func(c context.Context, id runtime.RemoteObjectID) error {
		return callFunction(c, id, decl, &v)
	}))
	return v, err
}

// center scrolls el into view and returns its center in viewport
// coordinates.
func (d *Driver) center(ctx context.Context, t *tab, el schemas.Element) (point, error) {
	var p point
	err := d.run(ctx, t, objectAction(el, func(c context.Context, id runtime.RemoteObjectID) error {
		return callFunction(c, id, centerFn, &p)
	}))
	return p, err
}
