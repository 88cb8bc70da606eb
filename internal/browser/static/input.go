package static

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/actuate/api/schemas"
	"github.com/xkilldash9x/actuate/internal/driver"
)

// DispatchInput applies one low-level input step to the page in h.
func (d *Driver) DispatchInput(ctx context.Context, h schemas.Handle, step schemas.ActionStep) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.interactivePageLocked(h)
	if err != nil {
		return err
	}

	var target *html.Node
	if step.Element != nil {
		n, ok := p.lookup(*step.Element)
		if !ok {
			return driver.NewStaleElementError(*step.Element)
		}
		target = n
	}

	switch step.Kind {
	case schemas.StepMoveTo:
		p.hover = target
	case schemas.StepPressAndHold:
		if target != nil {
			p.hover = target
		}
		p.pressed = p.hover
		p.dragged = false
		if p.pressed != nil && isFocusable(p.pressed) {
			d.focusLocked(p, p.pressed)
		}
	case schemas.StepDragBy:
		p.dragged = true
		if p.pressed != nil && tag(p.pressed) == "input" && inputType(p.pressed) == "range" && isEnabled(p.pressed) {
			nudgeRange(p.pressed, step.DX)
		}
	case schemas.StepRelease:
		pressed := p.pressed
		p.pressed = nil
		if pressed != nil && !p.dragged && pressed == p.hover {
			return d.clickLocked(ctx, p, pressed)
		}
	case schemas.StepKeyDown:
		if step.Key.IsModifier() {
			p.held[step.Key] = true
			return nil
		}
		return d.pressKeyLocked(ctx, p, step.Key)
	case schemas.StepKeyUp:
		delete(p.held, step.Key)
	case schemas.StepSendText:
		for _, r := range step.Text {
			d.typeRuneLocked(p, r)
		}
	case schemas.StepInvoke:
		if target == nil {
			return fmt.Errorf("invoke requires an element")
		}
		switch step.Effect {
		case schemas.EffectClick:
			return d.clickLocked(ctx, p, target)
		case schemas.EffectScrollIntoView:
			// Nothing scrolls without layout.
		case schemas.EffectSetValue:
			if !isEnabled(target) {
				return nil
			}
			return assignValue(target, step.Text)
		default:
			return fmt.Errorf("unsupported invoke effect %q", step.Effect)
		}
	default:
		return fmt.Errorf("unsupported step kind %q", step.Kind)
	}
	return nil
}

func (d *Driver) focusLocked(p *page, n *html.Node) {
	if p.focus != n {
		p.selectAll = false
	}
	p.focus = n
}

// clickLocked applies the default activation behavior of n.
func (d *Driver) clickLocked(ctx context.Context, p *page, n *html.Node) error {
	if !isEnabled(n) {
		return nil
	}
	if isFocusable(n) {
		d.focusLocked(p, n)
	}

	if tag(n) == "input" {
		switch inputType(n) {
		case "checkbox":
			if hasAttr(n, "checked") {
				removeAttr(n, "checked")
			} else {
				setAttr(n, "checked", "checked")
			}
		case "radio":
			selectRadio(n)
		}
	}

	if h := closest(n, func(c *html.Node) bool { return hasAttr(c, "onclick") }); h != nil {
		handled, err := d.runHandlerLocked(ctx, p, htmlquery.SelectAttr(h, "onclick"))
		if err != nil || handled {
			return err
		}
	}

	if a := closest(n, func(c *html.Node) bool { return tag(c) == "a" && hasAttr(c, "href") }); a != nil {
		return d.followLinkLocked(ctx, p, a)
	}

	if isSubmitter(n) {
		if form := findParentForm(n); form != nil {
			return d.submitFormLocked(ctx, p, form)
		}
	}
	return nil
}

func isSubmitter(n *html.Node) bool {
	switch tag(n) {
	case "button":
		t := inputType(n)
		return t == "" || t == "submit"
	case "input":
		t := inputType(n)
		return t == "submit" || t == "image"
	}
	return false
}

func (d *Driver) followLinkLocked(ctx context.Context, p *page, a *html.Node) error {
	href := strings.TrimSpace(htmlquery.SelectAttr(a, "href"))
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return nil
	}
	if htmlquery.SelectAttr(a, "target") == "_blank" {
		_, err := d.openContextLocked(ctx, p, href)
		return err
	}
	return d.navigateLocked(ctx, p, href)
}

// submitFormLocked serializes the form's successful controls and loads the
// response in place.
func (d *Driver) submitFormLocked(ctx context.Context, p *page, form *html.Node) error {
	action := htmlquery.SelectAttr(form, "action")
	if action == "" {
		action = p.url.String()
	}
	method := strings.ToUpper(htmlquery.SelectAttr(form, "method"))

	data := url.Values{}
	for _, in := range htmlquery.Find(form, ".//input | .//textarea | .//select") {
		name := htmlquery.SelectAttr(in, "name")
		if name == "" || !isEnabled(in) {
			continue
		}
		switch tag(in) {
		case "input":
			switch inputType(in) {
			case "checkbox", "radio":
				if hasAttr(in, "checked") {
					v := htmlquery.SelectAttr(in, "value")
					if v == "" {
						v = "on"
					}
					data.Add(name, v)
				}
			case "submit", "button", "image", "reset", "file":
			default:
				data.Add(name, htmlquery.SelectAttr(in, "value"))
			}
		default:
			data.Add(name, value(in))
		}
	}

	var (
		u   *url.URL
		doc *html.Node
		err error
	)
	if method == http.MethodPost {
		u, doc, err = d.loader.post(ctx, p.url, action, data)
	} else {
		target, rerr := resolve(p.url, action)
		if rerr != nil {
			return rerr
		}
		q := target.Query()
		for k, vs := range data {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		target.RawQuery = q.Encode()
		u, doc, err = d.loader.load(ctx, p.url, target.String())
	}
	if err != nil {
		return fmt.Errorf("submitting form: %w", err)
	}
	p.install(u, doc)
	d.logger.Debug("Form submitted.", zap.String("handle", string(p.handle)), zap.String("url", u.String()))
	return nil
}

// pressKeyLocked handles a non-modifier key going down.
func (d *Driver) pressKeyLocked(ctx context.Context, p *page, k schemas.Key) error {
	n := p.focus
	switch k {
	case schemas.KeyBackspace:
		if isTextEntry(n) {
			if p.selectAll {
				setValue(n, "")
				p.selectAll = false
				return nil
			}
			v := value(n)
			_, size := utf8.DecodeLastRuneInString(v)
			setValue(n, v[:len(v)-size])
		}
	case schemas.KeyDelete:
		if isTextEntry(n) && p.selectAll {
			setValue(n, "")
			p.selectAll = false
		}
	case schemas.KeyTab:
		if next := focusableAfter(p.doc, n); next != nil {
			d.focusLocked(p, next)
		}
	case schemas.KeyEnter:
		if n == nil {
			return nil
		}
		if tag(n) == "input" && isTextEntry(n) {
			if form := findParentForm(n); form != nil {
				return d.submitFormLocked(ctx, p, form)
			}
			return nil
		}
		if tag(n) == "button" || tag(n) == "a" {
			return d.clickLocked(ctx, p, n)
		}
	}
	return nil
}

// typeRuneLocked types r into the focused field, honoring held modifiers.
func (d *Driver) typeRuneLocked(p *page, r rune) {
	n := p.focus
	if p.modifierHeld() {
		d.shortcutLocked(p, unicode.ToLower(r))
		return
	}
	if !isTextEntry(n) {
		return
	}
	if p.held[schemas.KeyShift] {
		r = unicode.ToUpper(r)
	}
	cur := value(n)
	if p.selectAll {
		cur = ""
		p.selectAll = false
	}
	setValue(n, cur+string(r))
}

func (d *Driver) shortcutLocked(p *page, r rune) {
	n := p.focus
	if !isTextEntry(n) {
		return
	}
	switch r {
	case 'a':
		p.selectAll = true
	case 'c':
		if p.selectAll {
			d.clipboard = value(n)
		}
	case 'x':
		if p.selectAll {
			d.clipboard = value(n)
			setValue(n, "")
			p.selectAll = false
		}
	case 'v':
		cur := value(n)
		if p.selectAll {
			cur = ""
			p.selectAll = false
		}
		setValue(n, cur+d.clipboard)
	}
}
