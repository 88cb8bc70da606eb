// File: internal/driver/driver.go
package driver

import (
	"context"

	"github.com/xkilldash9x/actuate/api/schemas"
)

// Driver is the contract every browser backend satisfies. The synchronization
// core only talks to a browser through this interface; it never resolves
// locators or inspects documents itself.
//
// Implementations must return ErrDialogBlocking from element queries and input
// dispatch against a context that has an open dialog, ErrStaleElement (or a
// wrapped *StaleElementError) for references to detached nodes, and
// ErrSessionLost once the browser is gone.
type Driver interface {
	// ResolveLocator returns every element matching loc in the given context.
	// An empty result is not an error.
	ResolveLocator(ctx context.Context, h schemas.Handle, loc schemas.Locator) ([]schemas.Element, error)
	ElementState(ctx context.Context, el schemas.Element) (schemas.ElementState, error)
	DispatchInput(ctx context.Context, h schemas.Handle, step schemas.ActionStep) error

	ListContexts(ctx context.Context) (schemas.HandleSet, error)
	// Activate brings a context to the foreground. Called only for handles
	// known to exist.
	Activate(ctx context.Context, h schemas.Handle) error
	Describe(ctx context.Context, h schemas.Handle) (schemas.ContextInfo, error)
	Navigate(ctx context.Context, h schemas.Handle, url string) error

	// ActiveDialog returns nil when no dialog is open in the context.
	ActiveDialog(ctx context.Context, h schemas.Handle) (*schemas.Dialog, error)
	AcceptDialog(ctx context.Context, h schemas.Handle) error
	DismissDialog(ctx context.Context, h schemas.Handle) error
	SetDialogText(ctx context.Context, h schemas.Handle, text string) error

	Close(ctx context.Context) error
}

// Factory provisions a fresh browser for one session.
type Factory interface {
	NewDriver(ctx context.Context) (Driver, error)
}

// FactoryFunc adapts a plain function to the Factory interface.
type FactoryFunc func(ctx context.Context) (Driver, error)

func (f FactoryFunc) NewDriver(ctx context.Context) (Driver, error) { return f(ctx) }

// PropertyReader is implemented by drivers that can read live element
// properties such as an input's value or an element's text.
type PropertyReader interface {
	Property(ctx context.Context, el schemas.Element, name string) (string, error)
}
