// File: internal/mocks/driver.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/actuate/api/schemas"
	"github.com/xkilldash9x/actuate/internal/driver"
)

// -- Driver Mock --

// MockDriver mocks driver.Driver.
type MockDriver struct {
	mock.Mock
}

var _ driver.Driver = (*MockDriver)(nil)

func (m *MockDriver) ResolveLocator(ctx context.Context, h schemas.Handle, loc schemas.Locator) ([]schemas.Element, error) {
	args := m.Called(ctx, h, loc)
	var els []schemas.Element
	if v := args.Get(0); v != nil {
		els = v.([]schemas.Element)
	}
	return els, args.Error(1)
}

func (m *MockDriver) ElementState(ctx context.Context, el schemas.Element) (schemas.ElementState, error) {
	args := m.Called(ctx, el)
	return args.Get(0).(schemas.ElementState), args.Error(1)
}

func (m *MockDriver) DispatchInput(ctx context.Context, h schemas.Handle, step schemas.ActionStep) error {
	args := m.Called(ctx, h, step)
	return args.Error(0)
}

func (m *MockDriver) ListContexts(ctx context.Context) (schemas.HandleSet, error) {
	args := m.Called(ctx)
	var set schemas.HandleSet
	if v := args.Get(0); v != nil {
		set = v.(schemas.HandleSet)
	}
	return set, args.Error(1)
}

func (m *MockDriver) Activate(ctx context.Context, h schemas.Handle) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *MockDriver) Describe(ctx context.Context, h schemas.Handle) (schemas.ContextInfo, error) {
	args := m.Called(ctx, h)
	return args.Get(0).(schemas.ContextInfo), args.Error(1)
}

func (m *MockDriver) Navigate(ctx context.Context, h schemas.Handle, url string) error {
	args := m.Called(ctx, h, url)
	return args.Error(0)
}

func (m *MockDriver) ActiveDialog(ctx context.Context, h schemas.Handle) (*schemas.Dialog, error) {
	args := m.Called(ctx, h)
	var d *schemas.Dialog
	if v := args.Get(0); v != nil {
		d = v.(*schemas.Dialog)
	}
	return d, args.Error(1)
}

func (m *MockDriver) AcceptDialog(ctx context.Context, h schemas.Handle) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *MockDriver) DismissDialog(ctx context.Context, h schemas.Handle) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *MockDriver) SetDialogText(ctx context.Context, h schemas.Handle, text string) error {
	args := m.Called(ctx, h, text)
	return args.Error(0)
}

func (m *MockDriver) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// -- Factory Mock --

// MockFactory mocks driver.Factory.
type MockFactory struct {
	mock.Mock
}

func (m *MockFactory) NewDriver(ctx context.Context) (driver.Driver, error) {
	args := m.Called(ctx)
	var d driver.Driver
	if v := args.Get(0); v != nil {
		d = v.(driver.Driver)
	}
	return d, args.Error(1)
}

// -- Scope Mock --

// StaticScope satisfies the scope interfaces consumed by the poller and the
// action chain with a fixed driver and focused handle.
type StaticScope struct {
	Drv    driver.Driver
	Handle schemas.Handle
	Err    error
}

func (s StaticScope) Driver() driver.Driver { return s.Drv }

func (s StaticScope) FocusedHandle() (schemas.Handle, error) {
	if s.Err != nil {
		return "", s.Err
	}
	return s.Handle, nil
}
