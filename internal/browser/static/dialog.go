package static

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"github.com/xkilldash9x/actuate/api/schemas"
	"github.com/xkilldash9x/actuate/internal/driver"
)

// DialogRecord is a dialog that has been answered.
type DialogRecord struct {
	Dialog   schemas.Dialog
	Accepted bool
	// Text is what a prompt returned to the page; empty otherwise.
	Text string
}

type pendingDialog struct {
	schemas.Dialog
	text    string
	textSet bool
}

var (
	dialogCall   = regexp.MustCompile(`\b(alert|confirm|prompt)\s*\(\s*(?:'([^']*)'|"([^"]*)")?\s*(?:,\s*(?:'([^']*)'|"([^"]*)"))?\s*\)`)
	windowOpen   = regexp.MustCompile(`\bwindow\.open\s*\(\s*(?:'([^']*)'|"([^"]*)")`)
	locationSet  = regexp.MustCompile(`\b(?:window\.|document\.)?location(?:\.href)?\s*=\s*(?:'([^']*)'|"([^"]*)")`)
	windowCloser = regexp.MustCompile(`\bwindow\.close\s*\(\s*\)`)
)

// runHandlerLocked interprets the inline handler forms pages use to raise
// dialogs, open popups or navigate. It reports whether the handler replaced
// the element's default action.
func (d *Driver) runHandlerLocked(ctx context.Context, p *page, script string) (bool, error) {
	if m := dialogCall.FindStringSubmatch(script); m != nil {
		p.dialog = &pendingDialog{Dialog: schemas.Dialog{
			Type:          schemas.DialogType(m[1]),
			Message:       m[2] + m[3],
			DefaultPrompt: m[4] + m[5],
			Context:       p.handle,
		}}
		d.logger.Debug("Dialog opened.", zap.String("handle", string(p.handle)), zap.String("type", m[1]))
		return true, nil
	}
	if m := windowOpen.FindStringSubmatch(script); m != nil {
		_, err := d.openContextLocked(ctx, p, m[1]+m[2])
		return true, err
	}
	if m := locationSet.FindStringSubmatch(script); m != nil {
		return true, d.navigateLocked(ctx, p, m[1]+m[2])
	}
	if windowCloser.MatchString(script) {
		d.closeContextLocked(p)
		return true, nil
	}
	return false, nil
}

func (d *Driver) ActiveDialog(_ context.Context, h schemas.Handle) (*schemas.Dialog, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.pageLocked(h)
	if err != nil {
		return nil, err
	}
	if p.dialog == nil {
		return nil, nil
	}
	dlg := p.dialog.Dialog
	return &dlg, nil
}

func (d *Driver) AcceptDialog(ctx context.Context, h schemas.Handle) error {
	return d.answer(h, true)
}

func (d *Driver) DismissDialog(ctx context.Context, h schemas.Handle) error {
	return d.answer(h, false)
}

func (d *Driver) answer(h schemas.Handle, accept bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.pageLocked(h)
	if err != nil {
		return err
	}
	if p.dialog == nil {
		return driver.ErrNoActiveDialog
	}
	rec := DialogRecord{Dialog: p.dialog.Dialog, Accepted: accept}
	if accept && p.dialog.Type == schemas.DialogPrompt {
		rec.Text = p.dialog.DefaultPrompt
		if p.dialog.textSet {
			rec.Text = p.dialog.text
		}
	}
	p.history = append(p.history, rec)
	p.dialog = nil
	return nil
}

func (d *Driver) SetDialogText(_ context.Context, h schemas.Handle, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.pageLocked(h)
	if err != nil {
		return err
	}
	if p.dialog == nil {
		return driver.ErrNoActiveDialog
	}
	if p.dialog.Type != schemas.DialogPrompt {
		return &driver.UnsupportedDialogTypeError{Type: p.dialog.Type, Operation: "set text"}
	}
	p.dialog.text = text
	p.dialog.textSet = true
	return nil
}

// DialogHistory returns the dialogs answered in h, oldest first.
func (d *Driver) DialogHistory(h schemas.Handle) []DialogRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pages[h]
	if !ok {
		return nil
	}
	return append([]DialogRecord(nil), p.history...)
}
