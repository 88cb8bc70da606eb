package cdp

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/actuate/api/schemas"
)

// tab is an attached page target with the input and dialog state the
// protocol does not report back.
type tab struct {
	handle schemas.Handle
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	dialog *schemas.Dialog
	// opened is closed while a dialog is showing.
	opened chan struct{}

	prompt    string
	promptSet bool

	x, y      float64
	buttons   int64
	modifiers input.Modifier
}

func newTab(h schemas.Handle, ctx context.Context, cancel context.CancelFunc) *tab {
	return &tab{handle: h, ctx: ctx, cancel: cancel, opened: make(chan struct{})}
}

// listen tracks dialogs on the target. Must be called before the target is
// attached so the first events are not missed.
func (t *tab) listen() {
	chromedp.ListenTarget(t.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *page.EventJavascriptDialogOpening:
			t.dialogOpened(schemas.Dialog{
				Type:          schemas.DialogType(e.Type),
				Message:       e.Message,
				DefaultPrompt: e.DefaultPrompt,
				Context:       t.handle,
			})
		case *page.EventJavascriptDialogClosed:
			t.dialogClosed()
		}
	})
}

func (t *tab) dialogOpened(d schemas.Dialog) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dialog = &d
	t.prompt, t.promptSet = "", false
	select {
	case <-t.opened:
	default:
		close(t.opened)
	}
}

func (t *tab) dialogClosed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dialog == nil {
		return
	}
	t.dialog = nil
	t.opened = make(chan struct{})
}

func (t *tab) activeDialog() *schemas.Dialog {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dialog == nil {
		return nil
	}
	d := *t.dialog
	return &d
}

func (t *tab) dialogSignal() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opened
}

func (t *tab) setPromptText(s string) {
	t.mu.Lock()
	t.prompt, t.promptSet = s, true
	t.mu.Unlock()
}

func (t *tab) promptText() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.prompt, t.promptSet
}

func (t *tab) pointer() (x, y float64, buttons int64, mods input.Modifier) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.x, t.y, t.buttons, t.modifiers
}

func (t *tab) setPointer(x, y float64) {
	t.mu.Lock()
	t.x, t.y = x, y
	t.mu.Unlock()
}

func (t *tab) setButtons(b int64) {
	t.mu.Lock()
	t.buttons = b
	t.mu.Unlock()
}

func (t *tab) setModifier(m input.Modifier, down bool) input.Modifier {
	t.mu.Lock()
	defer t.mu.Unlock()
	if down {
		t.modifiers |= m
	} else {
		t.modifiers &^= m
	}
	return t.modifiers
}
