// File: internal/driver/errors.go
package driver

import (
	"errors"
	"fmt"
	"time"

	"github.com/xkilldash9x/actuate/api/schemas"
)

// Typed errors let callers classify failures with errors.Is / errors.As
// instead of matching on message text. Each typed error matches its sentinel
// through Is.

var (
	ErrTimeout               = errors.New("condition not satisfied before timeout")
	ErrStaleElement          = errors.New("stale element reference")
	ErrUnknownContext        = errors.New("unknown context")
	ErrNoFocusedContext      = errors.New("no focused context")
	ErrNoActiveDialog        = errors.New("no active dialog")
	ErrUnsupportedDialogType = errors.New("operation not supported for dialog type")
	ErrDialogBlocking        = errors.New("a dialog is blocking the context")
	ErrSessionLost           = errors.New("browser session lost")
)

// TimeoutError is returned by the poller when a condition is never satisfied.
type TimeoutError struct {
	Description string
	Elapsed     time.Duration
	Polls       int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s (%d polls) waiting for %s", e.Elapsed, e.Polls, e.Description)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(description string, elapsed time.Duration, polls int) *TimeoutError {
	return &TimeoutError{Description: description, Elapsed: elapsed, Polls: polls}
}

// StaleElementError reports an element that is no longer attached. Step is the
// index of the chain step that referenced it, or -1 outside of a chain.
type StaleElementError struct {
	Element schemas.Element
	Step    int
	Err     error
}

func (e *StaleElementError) Error() string {
	if e.Step >= 0 {
		return fmt.Sprintf("step %d: %s is stale", e.Step, e.Element)
	}
	return fmt.Sprintf("%s is stale", e.Element)
}

func (e *StaleElementError) Is(target error) bool { return target == ErrStaleElement }

func (e *StaleElementError) Unwrap() error { return e.Err }

// NewStaleElementError creates a StaleElementError not tied to a chain step.
func NewStaleElementError(el schemas.Element) *StaleElementError {
	return &StaleElementError{Element: el, Step: -1}
}

// UnknownContextError reports a handle that is not in the current context set.
type UnknownContextError struct {
	Handle schemas.Handle
}

func (e *UnknownContextError) Error() string {
	return fmt.Sprintf("unknown context %q", e.Handle)
}

func (e *UnknownContextError) Is(target error) bool { return target == ErrUnknownContext }

// NewUnknownContextError creates a new UnknownContextError.
func NewUnknownContextError(h schemas.Handle) *UnknownContextError {
	return &UnknownContextError{Handle: h}
}

// UnsupportedDialogTypeError reports an operation that the active dialog's
// type does not allow, such as entering text into an alert.
type UnsupportedDialogTypeError struct {
	Type      schemas.DialogType
	Operation string
}

func (e *UnsupportedDialogTypeError) Error() string {
	return fmt.Sprintf("%s is not supported for %s dialogs", e.Operation, e.Type)
}

func (e *UnsupportedDialogTypeError) Is(target error) bool { return target == ErrUnsupportedDialogType }

// IsTransient reports whether err describes a condition that may resolve on
// its own, such as an element detaching between resolution and inspection.
// Poll loops treat these as "not yet found".
func IsTransient(err error) bool {
	return errors.Is(err, ErrStaleElement)
}

// IsFatal reports whether err means the session can no longer be used.
func IsFatal(err error) bool {
	return errors.Is(err, ErrSessionLost)
}
