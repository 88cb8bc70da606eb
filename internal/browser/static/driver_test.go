package static

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/actuate/api/schemas"
	"github.com/xkilldash9x/actuate/internal/driver"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))
}

const first schemas.Handle = "ctx-1"

func fileURL(t *testing.T, name string) string {
	t.Helper()
	abs, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)
	return "file://" + filepath.ToSlash(abs)
}

func openPage(t *testing.T, name string) *Driver {
	t.Helper()
	d, err := New(context.Background(), Options{Logger: zaptest.NewLogger(t), StartURL: fileURL(t, name)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close(context.Background()) })
	return d
}

func find(t *testing.T, d *Driver, h schemas.Handle, loc schemas.Locator) schemas.Element {
	t.Helper()
	els, err := d.ResolveLocator(context.Background(), h, loc)
	require.NoError(t, err)
	require.Len(t, els, 1, "locator %s", loc)
	return els[0]
}

func dispatch(t *testing.T, d *Driver, h schemas.Handle, steps ...schemas.ActionStep) {
	t.Helper()
	for _, s := range steps {
		require.NoError(t, d.DispatchInput(context.Background(), h, s), "step %s", s)
	}
}

func click(t *testing.T, d *Driver, h schemas.Handle, el schemas.Element) {
	t.Helper()
	dispatch(t, d, h,
		schemas.ActionStep{Kind: schemas.StepMoveTo, Element: &el},
		schemas.ActionStep{Kind: schemas.StepPressAndHold},
		schemas.ActionStep{Kind: schemas.StepRelease},
	)
}

func prop(t *testing.T, d *Driver, el schemas.Element, name string) string {
	t.Helper()
	v, err := d.Property(context.Background(), el, name)
	require.NoError(t, err)
	return v
}

func title(t *testing.T, d *Driver, h schemas.Handle) string {
	t.Helper()
	info, err := d.Describe(context.Background(), h)
	require.NoError(t, err)
	return info.Title
}

func TestNew_DefaultsToBlank(t *testing.T) {
	d, err := New(context.Background(), Options{})
	require.NoError(t, err)

	info, err := d.Describe(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, "about:blank", info.URL)
	assert.Empty(t, info.Title)

	err = d.Navigate(context.Background(), first, "slider.html")
	assert.ErrorContains(t, err, "hierarchical base")
}

func TestNavigate_DataURL(t *testing.T) {
	d, err := New(context.Background(), Options{})
	require.NoError(t, err)

	require.NoError(t, d.Navigate(context.Background(), first, `data:text/html,<title>Inline</title><a href="#top">top</a>`))
	assert.Equal(t, "Inline", title(t, d, first))
	find(t, d, first, schemas.LinkText("top"))
}

func TestResolveLocator_Strategies(t *testing.T) {
	d := openPage(t, "form.html")
	ctx := context.Background()

	tests := []struct {
		name string
		loc  schemas.Locator
		want int
	}{
		{"xpath", schemas.XPath("//input"), 7},
		{"id", schemas.ByID("username"), 1},
		{"css child", schemas.CSS("form > input[type=radio]"), 2},
		{"css class", schemas.CSS("p.hint"), 1},
		{"css attr value", schemas.CSS(`input[name="plan"][value='pro']`), 1},
		{"css descendant", schemas.CSS("fieldset input"), 1},
		{"no match", schemas.ByID("missing"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			els, err := d.ResolveLocator(ctx, first, tt.loc)
			require.NoError(t, err)
			assert.Len(t, els, tt.want)
			for _, el := range els {
				assert.Equal(t, first, el.Context)
				assert.Equal(t, tt.loc, el.Locator)
			}
		})
	}

	_, err := d.ResolveLocator(ctx, first, schemas.XPath("//["))
	assert.Error(t, err)
	_, err = d.ResolveLocator(ctx, first, schemas.CSS("input[type="))
	assert.Error(t, err)
}

func TestResolveLocator_StableIDs(t *testing.T) {
	d := openPage(t, "form.html")
	a := find(t, d, first, schemas.ByID("username"))
	b := find(t, d, first, schemas.XPath("//input[@name='username']"))
	assert.Equal(t, a.ID, b.ID)
}

func TestElementState(t *testing.T) {
	d := openPage(t, "form.html")
	ctx := context.Background()

	tests := []struct {
		id   string
		want schemas.ElementState
	}{
		{"username", schemas.ElementState{Attached: true, Visible: true, Enabled: true}},
		{"token", schemas.ElementState{Attached: true, Visible: false, Enabled: true}},
		{"banner", schemas.ElementState{Attached: true, Visible: false, Enabled: true}},
		{"locked", schemas.ElementState{Attached: true, Visible: true, Enabled: false}},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			st, err := d.ElementState(ctx, find(t, d, first, schemas.ByID(tt.id)))
			require.NoError(t, err)
			assert.Equal(t, tt.want, st)
		})
	}

	hint := find(t, d, first, schemas.CSS(".hint"))
	st, err := d.ElementState(ctx, hint)
	require.NoError(t, err)
	assert.False(t, st.Visible)
}

func TestStaleAfterNavigation(t *testing.T) {
	d := openPage(t, "form.html")
	ctx := context.Background()
	el := find(t, d, first, schemas.ByID("username"))

	require.NoError(t, d.Navigate(ctx, first, fileURL(t, "form.html")))

	st, err := d.ElementState(ctx, el)
	require.NoError(t, err)
	assert.False(t, st.Attached)

	err = d.DispatchInput(ctx, first, schemas.ActionStep{Kind: schemas.StepMoveTo, Element: &el})
	var stale *driver.StaleElementError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, el, stale.Element)

	fresh := find(t, d, first, schemas.ByID("username"))
	assert.NotEqual(t, el.ID, fresh.ID)
}

func TestStaleAfterContextClosed(t *testing.T) {
	d := openPage(t, "popup.html")
	ctx := context.Background()
	click(t, d, first, find(t, d, first, schemas.ByID("new-tab")))
	el := find(t, d, "ctx-2", schemas.ByID("volume"))

	require.NoError(t, d.CloseContext(ctx, "ctx-2"))
	st, err := d.ElementState(ctx, el)
	require.NoError(t, err)
	assert.False(t, st.Attached)
}

func TestWindowCloseFromPage(t *testing.T) {
	d := openPage(t, "popup.html")
	ctx := context.Background()
	click(t, d, first, find(t, d, first, schemas.ByID("closer-tab")))
	note := find(t, d, "ctx-2", schemas.ByID("note"))

	click(t, d, "ctx-2", find(t, d, "ctx-2", schemas.ByID("close")))

	handles, err := d.ListContexts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []schemas.Handle{first}, handles.Sorted())
	st, err := d.ElementState(ctx, note)
	require.NoError(t, err)
	assert.False(t, st.Attached)
	assert.ErrorIs(t, d.CloseContext(ctx, "ctx-2"), driver.ErrUnknownContext)
}

func TestTyping(t *testing.T) {
	d := openPage(t, "form.html")
	username := find(t, d, first, schemas.ByID("username"))
	password := find(t, d, first, schemas.ByID("password"))

	// The username field has autofocus.
	dispatch(t, d, first, schemas.ActionStep{Kind: schemas.StepSendText, Text: "bob"})
	assert.Equal(t, "bob", prop(t, d, username, "value"))

	dispatch(t, d, first,
		schemas.ActionStep{Kind: schemas.StepKeyDown, Key: schemas.KeyShift},
		schemas.ActionStep{Kind: schemas.StepSendText, Text: "by"},
		schemas.ActionStep{Kind: schemas.StepKeyUp, Key: schemas.KeyShift},
		schemas.ActionStep{Kind: schemas.StepKeyDown, Key: schemas.KeyBackspace},
	)
	assert.Equal(t, "bobB", prop(t, d, username, "value"))

	// Select all, copy, then paste into the password field.
	dispatch(t, d, first,
		schemas.ActionStep{Kind: schemas.StepKeyDown, Key: schemas.KeyControl},
		schemas.ActionStep{Kind: schemas.StepSendText, Text: "a"},
		schemas.ActionStep{Kind: schemas.StepSendText, Text: "c"},
		schemas.ActionStep{Kind: schemas.StepKeyUp, Key: schemas.KeyControl},
	)
	click(t, d, first, password)
	dispatch(t, d, first,
		schemas.ActionStep{Kind: schemas.StepKeyDown, Key: schemas.KeyControl},
		schemas.ActionStep{Kind: schemas.StepSendText, Text: "v"},
		schemas.ActionStep{Kind: schemas.StepKeyUp, Key: schemas.KeyControl},
	)
	assert.Equal(t, "bobB", prop(t, d, password, "value"))

	// Typing over a selection replaces it.
	dispatch(t, d, first,
		schemas.ActionStep{Kind: schemas.StepKeyDown, Key: schemas.KeyControl},
		schemas.ActionStep{Kind: schemas.StepSendText, Text: "a"},
		schemas.ActionStep{Kind: schemas.StepKeyUp, Key: schemas.KeyControl},
		schemas.ActionStep{Kind: schemas.StepSendText, Text: "x"},
	)
	assert.Equal(t, "x", prop(t, d, password, "value"))
}

func TestTyping_TextareaAndTab(t *testing.T) {
	d := openPage(t, "form.html")
	notes := find(t, d, first, schemas.ByID("notes"))

	click(t, d, first, notes)
	dispatch(t, d, first, schemas.ActionStep{Kind: schemas.StepSendText, Text: "hello"})
	assert.Equal(t, "hello", prop(t, d, notes, "value"))

	// Tab skips the hidden input and the disabled field.
	dispatch(t, d, first, schemas.ActionStep{Kind: schemas.StepKeyDown, Key: schemas.KeyTab})
	dispatch(t, d, first, schemas.ActionStep{Kind: schemas.StepSendText, Text: "ignored"})
	assert.Equal(t, "hello", prop(t, d, notes, "value"))
}

func TestCheckboxAndRadio(t *testing.T) {
	d := openPage(t, "form.html")
	remember := find(t, d, first, schemas.ByID("remember"))
	free := find(t, d, first, schemas.ByID("plan-free"))
	pro := find(t, d, first, schemas.ByID("plan-pro"))

	click(t, d, first, remember)
	assert.Equal(t, "true", prop(t, d, remember, "checked"))
	click(t, d, first, remember)
	assert.Equal(t, "false", prop(t, d, remember, "checked"))

	require.NoError(t, d.DispatchInput(context.Background(), first,
		schemas.ActionStep{Kind: schemas.StepInvoke, Element: &pro, Effect: schemas.EffectClick}))
	assert.Equal(t, "true", prop(t, d, pro, "checked"))
	assert.Equal(t, "false", prop(t, d, free, "checked"))
}

func TestInvokeSetValue(t *testing.T) {
	d := openPage(t, "select.html")
	ctx := context.Background()
	setValue := func(el schemas.Element, v string) error {
		return d.DispatchInput(ctx, first, schemas.ActionStep{Kind: schemas.StepInvoke, Element: &el, Effect: schemas.EffectSetValue, Text: v})
	}
	lang := find(t, d, first, schemas.ByID("lang"))
	city := find(t, d, first, schemas.ByID("city"))
	frozen := find(t, d, first, schemas.ByID("frozen"))

	require.NoError(t, setValue(lang, "rs"))
	assert.Equal(t, "rs", prop(t, d, lang, "value"))
	require.NoError(t, setValue(lang, "Zig"))
	assert.Equal(t, "Zig", prop(t, d, lang, "value"))
	assert.Error(t, setValue(lang, "Cobol"))
	assert.Equal(t, "Zig", prop(t, d, lang, "value"))

	require.NoError(t, setValue(city, "Bergen"))
	assert.Equal(t, "Bergen", prop(t, d, city, "value"))

	require.NoError(t, setValue(frozen, "b"))
	assert.Equal(t, "a", prop(t, d, frozen, "value"))
}

func TestDisabledFieldIgnoresInput(t *testing.T) {
	d := openPage(t, "form.html")
	locked := find(t, d, first, schemas.ByID("locked"))
	click(t, d, first, locked)
	dispatch(t, d, first, schemas.ActionStep{Kind: schemas.StepSendText, Text: "nope"})
	assert.Empty(t, prop(t, d, locked, "value"))
}

func TestSlider_DragBy(t *testing.T) {
	d := openPage(t, "slider.html")
	volume := find(t, d, first, schemas.ByID("volume"))

	dispatch(t, d, first,
		schemas.ActionStep{Kind: schemas.StepMoveTo, Element: &volume},
		schemas.ActionStep{Kind: schemas.StepPressAndHold, Element: &volume},
		schemas.ActionStep{Kind: schemas.StepDragBy, DX: 20},
		schemas.ActionStep{Kind: schemas.StepRelease},
	)
	assert.Equal(t, "70", prop(t, d, volume, "value"))

	dispatch(t, d, first,
		schemas.ActionStep{Kind: schemas.StepPressAndHold, Element: &volume},
		schemas.ActionStep{Kind: schemas.StepDragBy, DX: -500},
		schemas.ActionStep{Kind: schemas.StepRelease},
	)
	assert.Equal(t, "0", prop(t, d, volume, "value"))
}

func TestDialogs(t *testing.T) {
	d := openPage(t, "alerts.html")
	ctx := context.Background()

	dlg, err := d.ActiveDialog(ctx, first)
	require.NoError(t, err)
	assert.Nil(t, dlg)
	assert.ErrorIs(t, d.AcceptDialog(ctx, first), driver.ErrNoActiveDialog)
	assert.ErrorIs(t, d.SetDialogText(ctx, first, "x"), driver.ErrNoActiveDialog)

	alertBtn := find(t, d, first, schemas.ByID("alert"))
	click(t, d, first, alertBtn)

	dlg, err = d.ActiveDialog(ctx, first)
	require.NoError(t, err)
	require.NotNil(t, dlg)
	assert.Equal(t, schemas.Dialog{Type: schemas.DialogAlert, Message: "Hello from alert", Context: first}, *dlg)

	// The page is blocked until the dialog is handled.
	_, err = d.ResolveLocator(ctx, first, schemas.ByID("alert"))
	assert.ErrorIs(t, err, driver.ErrDialogBlocking)
	_, err = d.ElementState(ctx, alertBtn)
	assert.ErrorIs(t, err, driver.ErrDialogBlocking)
	assert.ErrorIs(t, d.DispatchInput(ctx, first, schemas.ActionStep{Kind: schemas.StepRelease}), driver.ErrDialogBlocking)
	assert.ErrorIs(t, d.Navigate(ctx, first, "about:blank"), driver.ErrDialogBlocking)

	err = d.SetDialogText(ctx, first, "text")
	assert.ErrorIs(t, err, driver.ErrUnsupportedDialogType)

	require.NoError(t, d.AcceptDialog(ctx, first))
	dlg, err = d.ActiveDialog(ctx, first)
	require.NoError(t, err)
	assert.Nil(t, dlg)

	click(t, d, first, find(t, d, first, schemas.ByID("prompt")))
	require.NoError(t, d.SetDialogText(ctx, first, "alice"))
	require.NoError(t, d.AcceptDialog(ctx, first))

	click(t, d, first, find(t, d, first, schemas.ByID("prompt")))
	require.NoError(t, d.AcceptDialog(ctx, first))

	click(t, d, first, find(t, d, first, schemas.ByID("confirm")))
	require.NoError(t, d.DismissDialog(ctx, first))

	history := d.DialogHistory(first)
	require.Len(t, history, 4)
	assert.True(t, history[0].Accepted)
	assert.Equal(t, "alice", history[1].Text)
	assert.Equal(t, "anonymous", history[2].Text)
	assert.Equal(t, schemas.DialogConfirm, history[3].Dialog.Type)
	assert.False(t, history[3].Accepted)
}

func TestDialogDoesNotBlockOtherContexts(t *testing.T) {
	d := openPage(t, "popup.html")
	ctx := context.Background()

	click(t, d, first, find(t, d, first, schemas.ByID("popup")))
	const popup schemas.Handle = "ctx-2"
	click(t, d, popup, find(t, d, popup, schemas.ByID("alert")))

	_, err := d.ResolveLocator(ctx, popup, schemas.ByID("alert"))
	assert.ErrorIs(t, err, driver.ErrDialogBlocking)
	_, err = d.ResolveLocator(ctx, first, schemas.ByID("popup"))
	assert.NoError(t, err)
}

func TestPopupsAndNavigation(t *testing.T) {
	d := openPage(t, "popup.html")
	ctx := context.Background()

	click(t, d, first, find(t, d, first, schemas.ByID("new-tab")))
	handles, err := d.ListContexts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []schemas.Handle{"ctx-1", "ctx-2"}, handles.Sorted())
	assert.Equal(t, "Slider", title(t, d, "ctx-2"))
	assert.Equal(t, "Opener", title(t, d, first))

	click(t, d, first, find(t, d, first, schemas.ByID("popup")))
	assert.Equal(t, "Dialogs", title(t, d, "ctx-3"))

	click(t, d, first, find(t, d, first, schemas.ByID("redirect")))
	assert.Equal(t, "Sign in", title(t, d, first))

	require.NoError(t, d.Navigate(ctx, first, "popup.html"))
	click(t, d, first, find(t, d, first, schemas.LinkText("Open slider here")))
	assert.Equal(t, "Slider", title(t, d, first))

	handles, err = d.ListContexts(ctx)
	require.NoError(t, err)
	assert.Len(t, handles, 3)
}

func TestUnknownContext(t *testing.T) {
	d := openPage(t, "slider.html")
	ctx := context.Background()

	_, err := d.Describe(ctx, "ctx-9")
	assert.ErrorIs(t, err, driver.ErrUnknownContext)
	assert.ErrorIs(t, d.Activate(ctx, "ctx-9"), driver.ErrUnknownContext)
	assert.ErrorIs(t, d.CloseContext(ctx, "ctx-9"), driver.ErrUnknownContext)
	assert.NoError(t, d.Activate(ctx, first))
}

func TestClose(t *testing.T) {
	d := openPage(t, "slider.html")
	ctx := context.Background()

	require.NoError(t, d.Close(ctx))
	require.NoError(t, d.Close(ctx))

	_, err := d.ListContexts(ctx)
	assert.ErrorIs(t, err, driver.ErrSessionLost)
	_, err = d.ResolveLocator(ctx, first, schemas.ByID("volume"))
	assert.ErrorIs(t, err, driver.ErrSessionLost)
	assert.True(t, driver.IsFatal(d.Activate(ctx, first)))
}

func TestFormSubmission(t *testing.T) {
	page, err := os.ReadFile(filepath.Join("testdata", "form.html"))
	require.NoError(t, err)

	var (
		mu       sync.Mutex
		received url.Values
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(page)
	})
	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		vals, _ := url.ParseQuery(string(body))
		mu.Lock()
		received = vals
		mu.Unlock()
		_, _ = io.WriteString(w, "<html><head><title>Thanks</title></head></html>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d, err := New(context.Background(), Options{Logger: zaptest.NewLogger(t), Client: srv.Client(), StartURL: srv.URL + "/"})
	require.NoError(t, err)
	defer d.Close(context.Background())

	click(t, d, first, find(t, d, first, schemas.ByID("remember")))
	click(t, d, first, find(t, d, first, schemas.ByID("username")))
	dispatch(t, d, first, schemas.ActionStep{Kind: schemas.StepSendText, Text: "bob"})
	// Enter in a text field submits its form.
	dispatch(t, d, first, schemas.ActionStep{Kind: schemas.StepKeyDown, Key: schemas.KeyEnter})

	info, err := d.Describe(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, "Thanks", info.Title)
	assert.Equal(t, srv.URL+"/submit", info.URL)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "bob", received.Get("username"))
	assert.Equal(t, "on", received.Get("remember"))
	assert.Equal(t, "free", received.Get("plan"))
	assert.Equal(t, "t0k3n", received.Get("token"))
	assert.NotContains(t, received, "locked")
}

func TestFactory(t *testing.T) {
	f := Factory{Options: Options{StartURL: fileURL(t, "slider.html")}}
	drv, err := f.NewDriver(context.Background())
	require.NoError(t, err)
	defer drv.Close(context.Background())

	info, err := drv.Describe(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, "Slider", info.Title)
}
