// internal/session/context_utils.go
package session

import (
	"context"
	"time"
)

// CombineContext creates a context derived from ctx1 that is also canceled
// when ctx2 is. Values come from ctx1 only. Drivers use it to run an operation
// inside a browser-scoped context (ctx1, carrying the connection) under a
// caller's deadline (ctx2).
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(ctx1)

	go func() {
		select {
		case <-ctx2.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}

// valueOnlyContext keeps its parent's values but drops its deadline and
// cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }

func (valueOnlyContext) Done() <-chan struct{} { return nil }

func (valueOnlyContext) Err() error { return nil }

// Detach returns a context that inherits values from ctx but is not canceled
// when ctx is. Cleanup that must run after the caller gave up uses it.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
