package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/actuate/internal/driver"
)

// Run provisions a browser through factory, wraps it in a session and hands
// it to fn. The session is closed on every exit path, including a panic in
// fn, which is re-raised after cleanup.
func Run(ctx context.Context, factory driver.Factory, opts Options, fn func(context.Context, *Session) error) error {
	return scoped(ctx, func(ctx context.Context) (*Session, error) {
		return open(ctx, factory, opts)
	}, fn)
}

func open(ctx context.Context, factory driver.Factory, opts Options) (*Session, error) {
	drv, err := factory.NewDriver(ctx)
	if err != nil {
		return nil, fmt.Errorf("provisioning browser: %w", err)
	}
	s, err := New(ctx, drv, opts)
	if err != nil {
		if cerr := drv.Close(Detach(ctx)); cerr != nil && opts.Logger != nil {
			opts.Logger.Warn("Failed to close driver after setup error.", zap.Error(cerr))
		}
		return nil, err
	}
	return s, nil
}

func scoped(ctx context.Context, acquire func(context.Context) (*Session, error), fn func(context.Context, *Session) error) (err error) {
	s, err := acquire(ctx)
	if err != nil {
		return err
	}

	defer func() {
		// Cleanup runs even when the caller's context is already done.
		closeErr := s.Close(Detach(ctx))
		if r := recover(); r != nil {
			panic(r)
		}
		if closeErr != nil {
			err = errors.Join(err, fmt.Errorf("closing session: %w", closeErr))
		}
	}()

	return fn(ctx, s)
}
