package cdp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/actuate/api/schemas"
	"github.com/xkilldash9x/actuate/internal/config"
	"github.com/xkilldash9x/actuate/internal/driver"
)

// findChrome returns a Chrome binary for the browser tests, or skips.
func findChrome(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests are skipped in short mode")
	}
	if p := os.Getenv("ACTUATE_CHROME_PATH"); p != "" {
		return p
	}
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("no Chrome or Chromium binary found")
	return ""
}

func launch(t *testing.T) (*Driver, schemas.Handle, string) {
	t.Helper()
	exe := findChrome(t)

	srv := httptest.NewServer(http.FileServer(http.Dir("../static/testdata")))
	t.Cleanup(srv.Close)

	l := NewLauncher(config.BrowserConfig{
		Headless:       true,
		WindowWidth:    1024,
		WindowHeight:   768,
		ExecPath:       exe,
		StartupTimeout: time.Minute,
	}, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	drv, err := l.NewDriver(ctx)
	require.NoError(t, err)
	d := drv.(*Driver)
	t.Cleanup(func() { _ = d.Close(context.Background()) })

	handles, err := d.ListContexts(ctx)
	require.NoError(t, err)
	require.Len(t, handles, 1)
	return d, handles.Sorted()[0], srv.URL
}

func clickOn(ctx context.Context, t *testing.T, d *Driver, h schemas.Handle, el schemas.Element) {
	t.Helper()
	for _, s := range []schemas.ActionStep{
		{Kind: schemas.StepMoveTo, Element: &el},
		{Kind: schemas.StepPressAndHold},
		{Kind: schemas.StepRelease},
	} {
		require.NoError(t, d.DispatchInput(ctx, h, s))
	}
}

func TestChrome_TypingAndState(t *testing.T) {
	d, h, base := launch(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	require.NoError(t, d.Navigate(ctx, h, base+"/form.html"))
	info, err := d.Describe(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, "Sign in", info.Title)

	els, err := d.ResolveLocator(ctx, h, schemas.ByID("username"))
	require.NoError(t, err)
	require.Len(t, els, 1)
	user := els[0]

	st, err := d.ElementState(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, schemas.ElementState{Attached: true, Visible: true, Enabled: true}, st)

	clickOn(ctx, t, d, h, user)
	require.NoError(t, d.DispatchInput(ctx, h, schemas.ActionStep{Kind: schemas.StepKeyDown, Key: schemas.KeyShift}))
	require.NoError(t, d.DispatchInput(ctx, h, schemas.ActionStep{Kind: schemas.StepSendText, Text: "bob"}))
	require.NoError(t, d.DispatchInput(ctx, h, schemas.ActionStep{Kind: schemas.StepKeyUp, Key: schemas.KeyShift}))

	v, err := d.Property(ctx, user, "value")
	require.NoError(t, err)
	assert.Equal(t, "BOB", v)

	hidden, err := d.ResolveLocator(ctx, h, schemas.CSS("#banner"))
	require.NoError(t, err)
	require.Len(t, hidden, 1)
	st, err = d.ElementState(ctx, hidden[0])
	require.NoError(t, err)
	assert.False(t, st.Visible)

	// Navigating away leaves the old element stale.
	require.NoError(t, d.Navigate(ctx, h, base+"/slider.html"))
	st, err = d.ElementState(ctx, user)
	require.NoError(t, err)
	assert.False(t, st.Attached)
	err = d.DispatchInput(ctx, h, schemas.ActionStep{Kind: schemas.StepMoveTo, Element: &user})
	assert.ErrorIs(t, err, driver.ErrStaleElement)
}

func TestChrome_InvokeSetValue(t *testing.T) {
	d, h, base := launch(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	require.NoError(t, d.Navigate(ctx, h, base+"/select.html"))
	els, err := d.ResolveLocator(ctx, h, schemas.ByID("lang"))
	require.NoError(t, err)
	require.Len(t, els, 1)
	lang := els[0]

	require.NoError(t, d.DispatchInput(ctx, h, schemas.ActionStep{Kind: schemas.StepInvoke, Element: &lang, Effect: schemas.EffectSetValue, Text: "Rust"}))
	v, err := d.Property(ctx, lang, "value")
	require.NoError(t, err)
	assert.Equal(t, "rs", v)

	err = d.DispatchInput(ctx, h, schemas.ActionStep{Kind: schemas.StepInvoke, Element: &lang, Effect: schemas.EffectSetValue, Text: "Cobol"})
	assert.Error(t, err)
}

func TestChrome_Dialogs(t *testing.T) {
	d, h, base := launch(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	require.NoError(t, d.Navigate(ctx, h, base+"/alerts.html"))
	els, err := d.ResolveLocator(ctx, h, schemas.ByID("prompt"))
	require.NoError(t, err)
	require.Len(t, els, 1)

	assert.ErrorIs(t, d.AcceptDialog(ctx, h), driver.ErrNoActiveDialog)

	clickOn(ctx, t, d, h, els[0])
	dlg, err := d.ActiveDialog(ctx, h)
	require.NoError(t, err)
	require.NotNil(t, dlg)
	assert.Equal(t, schemas.DialogPrompt, dlg.Type)
	assert.Equal(t, "Your name?", dlg.Message)
	assert.Equal(t, "anonymous", dlg.DefaultPrompt)

	_, err = d.ResolveLocator(ctx, h, schemas.ByID("alert"))
	assert.ErrorIs(t, err, driver.ErrDialogBlocking)

	require.NoError(t, d.SetDialogText(ctx, h, "alice"))
	require.NoError(t, d.AcceptDialog(ctx, h))
	dlg, err = d.ActiveDialog(ctx, h)
	require.NoError(t, err)
	assert.Nil(t, dlg)

	els, err = d.ResolveLocator(ctx, h, schemas.ByID("alert"))
	require.NoError(t, err)
	require.NoError(t, d.DispatchInput(ctx, h, schemas.ActionStep{Kind: schemas.StepInvoke, Element: &els[0], Effect: schemas.EffectClick}))
	assert.ErrorIs(t, d.SetDialogText(ctx, h, "x"), driver.ErrUnsupportedDialogType)
	require.NoError(t, d.DismissDialog(ctx, h))
}

func TestChrome_Popup(t *testing.T) {
	d, h, base := launch(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	require.NoError(t, d.Navigate(ctx, h, base+"/popup.html"))
	els, err := d.ResolveLocator(ctx, h, schemas.ByID("new-tab"))
	require.NoError(t, err)
	require.Len(t, els, 1)
	clickOn(ctx, t, d, h, els[0])

	var handles schemas.HandleSet
	require.Eventually(t, func() bool {
		handles, err = d.ListContexts(ctx)
		return err == nil && len(handles) == 2
	}, 10*time.Second, 100*time.Millisecond)

	for _, other := range handles.Sorted() {
		if other == h {
			continue
		}
		require.NoError(t, d.Activate(ctx, other))
		require.Eventually(t, func() bool {
			info, err := d.Describe(ctx, other)
			return err == nil && info.Title == "Slider"
		}, 10*time.Second, 100*time.Millisecond)
	}

	_, err = d.Describe(ctx, "no-such-target")
	assert.ErrorIs(t, err, driver.ErrUnknownContext)
}
