// File: internal/wait/poller.go
package wait

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/actuate/internal/driver"
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultInterval = 500 * time.Millisecond
)

// Timing bounds a single await. A zero or negative Timeout still evaluates the
// condition exactly once. A non-positive Interval falls back to the poller's
// default interval.
type Timing struct {
	Timeout  time.Duration
	Interval time.Duration
}

// Outcome classifies how an await finished.
type Outcome string

const (
	OutcomeFound    Outcome = "found"
	OutcomeTimeout  Outcome = "timeout"
	OutcomeError    Outcome = "error"
	OutcomeCanceled Outcome = "canceled"
)

// Observer is notified once per finished await.
type Observer interface {
	ObserveAwait(description string, outcome Outcome, polls int, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveAwait(string, Outcome, int, time.Duration) {}

// Poller repeatedly evaluates conditions until they hold or time runs out.
// It holds no per-await state and can be shared by the goroutine driving a
// session.
type Poller struct {
	clock    Clock
	logger   *zap.Logger
	observer Observer
	defaults Timing
}

// Option configures a Poller.
type Option func(*Poller)

func WithClock(c Clock) Option { return func(p *Poller) { p.clock = c } }

func WithLogger(l *zap.Logger) Option { return func(p *Poller) { p.logger = l.Named("wait") } }

func WithObserver(o Observer) Option { return func(p *Poller) { p.observer = o } }

// WithDefaults sets the timing returned by Defaults and the fallback interval.
func WithDefaults(t Timing) Option {
	return func(p *Poller) {
		if t.Timeout > 0 {
			p.defaults.Timeout = t.Timeout
		}
		if t.Interval > 0 {
			p.defaults.Interval = t.Interval
		}
	}
}

// NewPoller creates a poller with the real clock and default timing.
func NewPoller(opts ...Option) *Poller {
	p := &Poller{
		clock:    RealClock{},
		logger:   zap.NewNop(),
		observer: nopObserver{},
		defaults: Timing{Timeout: DefaultTimeout, Interval: DefaultInterval},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Defaults returns the configured default timing.
func (p *Poller) Defaults() Timing { return p.defaults }

// Clock returns the poller's time source.
func (p *Poller) Clock() Clock { return p.clock }

// Await evaluates cond against scope until it holds, returning its value.
//
// The condition is evaluated before any sleep, so an already satisfied
// condition returns without waiting. Between evaluations the poller sleeps for
// the interval, capped at the time remaining, so the final evaluation happens
// at the deadline and the overshoot stays under one interval plus one
// evaluation. Transient errors count as "not yet"; every other error is
// returned immediately. Cancelling ctx aborts the wait.
func Await[T any](ctx context.Context, p *Poller, scope Scope, cond Condition[T], timing Timing) (T, error) {
	var zero T
	if timing.Interval <= 0 {
		timing.Interval = p.defaults.Interval
	}

	start := p.clock.Now()
	deadline := start.Add(timing.Timeout)
	polls := 0

	for {
		polls++
		v, ok, err := cond.Evaluate(ctx, scope)
		if err != nil {
			if !driver.IsTransient(err) {
				elapsed := p.clock.Now().Sub(start)
				p.finish(cond.String(), OutcomeError, polls, elapsed, err)
				return zero, fmt.Errorf("awaiting %s: %w", cond, err)
			}
			p.logger.Debug("Transient error while polling.", zap.String("condition", cond.String()), zap.Error(err))
		} else if ok {
			p.finish(cond.String(), OutcomeFound, polls, p.clock.Now().Sub(start), nil)
			return v, nil
		}

		now := p.clock.Now()
		if !now.Before(deadline) {
			elapsed := now.Sub(start)
			p.finish(cond.String(), OutcomeTimeout, polls, elapsed, nil)
			return zero, driver.NewTimeoutError(cond.String(), elapsed, polls)
		}

		sleep := timing.Interval
		if remaining := deadline.Sub(now); remaining < sleep {
			sleep = remaining
		}

		select {
		case <-ctx.Done():
			p.finish(cond.String(), OutcomeCanceled, polls, p.clock.Now().Sub(start), ctx.Err())
			return zero, fmt.Errorf("awaiting %s: %w", cond, ctx.Err())
		case <-p.clock.After(sleep):
		}
	}
}

func (p *Poller) finish(desc string, outcome Outcome, polls int, elapsed time.Duration, err error) {
	p.observer.ObserveAwait(desc, outcome, polls, elapsed)
	fields := []zap.Field{
		zap.String("condition", desc),
		zap.String("outcome", string(outcome)),
		zap.Int("polls", polls),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	p.logger.Debug("Await finished.", fields...)
}
