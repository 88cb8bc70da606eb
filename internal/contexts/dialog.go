package contexts

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/actuate/api/schemas"
	"github.com/xkilldash9x/actuate/internal/driver"
)

// CurrentDialog returns the dialog open in the focused context, or nil.
func (t *Tracker) CurrentDialog(ctx context.Context) (*schemas.Dialog, error) {
	h, err := t.FocusedHandle()
	if err != nil {
		return nil, err
	}
	d, err := t.drv.ActiveDialog(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("reading dialog in %q: %w", h, err)
	}
	return d, nil
}

// requireDialog returns the open dialog or ErrNoActiveDialog.
func (t *Tracker) requireDialog(ctx context.Context) (schemas.Handle, *schemas.Dialog, error) {
	h, err := t.FocusedHandle()
	if err != nil {
		return "", nil, err
	}
	d, err := t.drv.ActiveDialog(ctx, h)
	if err != nil {
		return "", nil, fmt.Errorf("reading dialog in %q: %w", h, err)
	}
	if d == nil {
		return "", nil, driver.ErrNoActiveDialog
	}
	return h, d, nil
}

// AcceptDialog confirms the open dialog, submitting any text set on a prompt.
func (t *Tracker) AcceptDialog(ctx context.Context) error {
	h, d, err := t.requireDialog(ctx)
	if err != nil {
		return err
	}
	if err := t.drv.AcceptDialog(ctx, h); err != nil {
		return fmt.Errorf("accepting %s dialog: %w", d.Type, err)
	}
	t.logger.Debug("Dialog accepted.", zap.String("type", string(d.Type)), zap.String("message", d.Message))
	return nil
}

// DismissDialog cancels the open dialog.
func (t *Tracker) DismissDialog(ctx context.Context) error {
	h, d, err := t.requireDialog(ctx)
	if err != nil {
		return err
	}
	if err := t.drv.DismissDialog(ctx, h); err != nil {
		return fmt.Errorf("dismissing %s dialog: %w", d.Type, err)
	}
	t.logger.Debug("Dialog dismissed.", zap.String("type", string(d.Type)), zap.String("message", d.Message))
	return nil
}

// SetDialogText fills a prompt's input. Any other dialog type fails with
// *driver.UnsupportedDialogTypeError.
func (t *Tracker) SetDialogText(ctx context.Context, text string) error {
	h, d, err := t.requireDialog(ctx)
	if err != nil {
		return err
	}
	if d.Type != schemas.DialogPrompt {
		return &driver.UnsupportedDialogTypeError{Type: d.Type, Operation: "setting text"}
	}
	if err := t.drv.SetDialogText(ctx, h, text); err != nil {
		return fmt.Errorf("setting prompt text: %w", err)
	}
	return nil
}
