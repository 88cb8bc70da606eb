package cdp

import (
	"context"

	"github.com/chromedp/cdproto/page"

	"github.com/xkilldash9x/actuate/api/schemas"
	"github.com/xkilldash9x/actuate/internal/driver"
)

func (d *Driver) ActiveDialog(ctx context.Context, h schemas.Handle) (*schemas.Dialog, error) {
	t, err := d.tabFor(ctx, h)
	if err != nil {
		return nil, err
	}
	return t.activeDialog(), nil
}

func (d *Driver) AcceptDialog(ctx context.Context, h schemas.Handle) error {
	return d.answer(ctx, h, true)
}

func (d *Driver) DismissDialog(ctx context.Context, h schemas.Handle) error {
	return d.answer(ctx, h, false)
}

func (d *Driver) answer(ctx context.Context, h schemas.Handle, accept bool) error {
	t, err := d.tabFor(ctx, h)
	if err != nil {
		return err
	}
	dlg := t.activeDialog()
	if dlg == nil {
		return driver.ErrNoActiveDialog
	}

	p := page.HandleJavaScriptDialog(accept)
	if text, ok := t.promptText(); ok && accept && dlg.Type == schemas.DialogPrompt {
		p = p.WithPromptText(text)
	}
	if err := d.run(ctx, t, p); err != nil {
		return err
	}
	// The closed event follows, but callers must not observe the dialog
	// after a successful answer.
	t.dialogClosed()
	return nil
}

func (d *Driver) SetDialogText(ctx context.Context, h schemas.Handle, text string) error {
	t, err := d.tabFor(ctx, h)
	if err != nil {
		return err
	}
	dlg := t.activeDialog()
	if dlg == nil {
		return driver.ErrNoActiveDialog
	}
	if dlg.Type != schemas.DialogPrompt {
		return &driver.UnsupportedDialogTypeError{Type: dlg.Type, Operation: "set text"}
	}
	t.setPromptText(text)
	return nil
}
