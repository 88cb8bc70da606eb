package wait

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/actuate/api/schemas"
	"github.com/xkilldash9x/actuate/internal/driver"
)

// Scope is what a condition is evaluated against: a driver plus the context
// that currently has focus. A session satisfies it.
type Scope interface {
	Driver() driver.Driver
	FocusedHandle() (schemas.Handle, error)
}

// Func evaluates a condition once. It returns the value and true when the
// condition holds, or false when it does not hold yet.
type Func[T any] func(ctx context.Context, s Scope) (T, bool, error)

// Condition is a described, repeatable predicate. Evaluations must not have
// side effects on the page.
type Condition[T any] struct {
	desc string
	fn   Func[T]
}

// New creates a condition. The description appears in timeout diagnostics.
func New[T any](desc string, fn Func[T]) Condition[T] {
	return Condition[T]{desc: desc, fn: fn}
}

func (c Condition[T]) String() string { return c.desc }

// Evaluate runs the condition once.
func (c Condition[T]) Evaluate(ctx context.Context, s Scope) (T, bool, error) {
	if c.fn == nil {
		var zero T
		return zero, false, errors.New("wait: condition has no evaluation function")
	}
	return c.fn(ctx, s)
}

// AnyOf holds as soon as one of the conditions holds, checking them in order
// and returning the first value found. A transient error from one constituent
// only means that constituent has not resolved yet.
func AnyOf[T any](conds ...Condition[T]) Condition[T] {
	return New("any of ["+describeAll(conds)+"]", func(ctx context.Context, s Scope) (T, bool, error) {
		var zero T
		for _, c := range conds {
			v, ok, err := c.Evaluate(ctx, s)
			if err != nil {
				if driver.IsTransient(err) {
					continue
				}
				return zero, false, err
			}
			if ok {
				return v, true, nil
			}
		}
		return zero, false, nil
	})
}

// AllOf holds when every condition holds in the same evaluation. Evaluation
// stops at the first constituent that does not hold.
func AllOf[T any](conds ...Condition[T]) Condition[[]T] {
	return New("all of ["+describeAll(conds)+"]", func(ctx context.Context, s Scope) ([]T, bool, error) {
		out := make([]T, 0, len(conds))
		for _, c := range conds {
			v, ok, err := c.Evaluate(ctx, s)
			if err != nil || !ok {
				return nil, false, err
			}
			out = append(out, v)
		}
		return out, true, nil
	})
}

// Map transforms the value of a satisfied condition.
func Map[T, U any](c Condition[T], f func(T) U) Condition[U] {
	return New(c.desc, func(ctx context.Context, s Scope) (U, bool, error) {
		var zero U
		v, ok, err := c.Evaluate(ctx, s)
		if err != nil || !ok {
			return zero, false, err
		}
		return f(v), true, nil
	})
}

func describeAll[T any](conds []Condition[T]) string {
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = c.desc
	}
	return strings.Join(parts, ", ")
}

// -- Element state predicates --

// StatePredicate is a named test over an element's state.
type StatePredicate struct {
	Name string
	Test func(schemas.ElementState) bool
}

var (
	IsAttached = StatePredicate{Name: "attached", Test: func(s schemas.ElementState) bool { return s.Attached }}
	IsVisible  = StatePredicate{Name: "visible", Test: func(s schemas.ElementState) bool { return s.Attached && s.Visible }}
	IsEnabled  = StatePredicate{Name: "enabled", Test: func(s schemas.ElementState) bool { return s.Attached && s.Enabled }}
)

func describePreds(preds []StatePredicate) string {
	if len(preds) == 0 {
		return IsAttached.Name
	}
	names := make([]string, len(preds))
	for i, p := range preds {
		names[i] = p.Name
	}
	return strings.Join(names, " and ")
}

func satisfies(st schemas.ElementState, preds []StatePredicate) bool {
	if !st.Attached {
		return false
	}
	for _, p := range preds {
		if !p.Test(st) {
			return false
		}
	}
	return true
}

func focused(s Scope) (schemas.Handle, error) {
	h, err := s.FocusedHandle()
	if err != nil {
		return "", fmt.Errorf("resolving focused context: %w", err)
	}
	return h, nil
}
