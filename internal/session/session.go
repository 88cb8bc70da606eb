// internal/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/actuate/api/schemas"
	"github.com/xkilldash9x/actuate/internal/actions"
	"github.com/xkilldash9x/actuate/internal/contexts"
	"github.com/xkilldash9x/actuate/internal/driver"
	"github.com/xkilldash9x/actuate/internal/wait"
)

// Options configures sessions. The zero value is usable.
type Options struct {
	Logger         *zap.Logger
	Timing         wait.Timing
	Clock          wait.Clock
	WaitObserver   wait.Observer
	ActionObserver actions.Observer
}

// Session is one live browser under automation. All of its operations are
// meant to be driven from a single goroutine; separate sessions share nothing.
type Session struct {
	id      string
	drv     driver.Driver
	tracker *contexts.Tracker
	poller  *wait.Poller
	logger  *zap.Logger

	actionObserver actions.Observer

	closeOnce sync.Once
	closeErr  error
	mu        sync.Mutex
	onClose   []func()
}

// New wraps drv in a session focused on its initial context.
func New(ctx context.Context, drv driver.Driver, opts Options) (*Session, error) {
	id := uuid.New().String()
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("session_id", id))

	set, err := drv.ListContexts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing initial contexts: %w", err)
	}
	if len(set) == 0 {
		return nil, errors.New("driver reported no browsing contexts")
	}
	initial := set.Sorted()[0]

	pollerOpts := []wait.Option{wait.WithLogger(logger), wait.WithDefaults(opts.Timing)}
	if opts.Clock != nil {
		pollerOpts = append(pollerOpts, wait.WithClock(opts.Clock))
	}
	if opts.WaitObserver != nil {
		pollerOpts = append(pollerOpts, wait.WithObserver(opts.WaitObserver))
	}

	s := &Session{
		id:             id,
		drv:            drv,
		tracker:        contexts.NewTracker(drv, logger, initial),
		poller:         wait.NewPoller(pollerOpts...),
		logger:         logger.Named("session"),
		actionObserver: opts.ActionObserver,
	}
	s.logger.Debug("Session opened.", zap.String("initial_context", string(initial)))
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Driver() driver.Driver { return s.drv }

func (s *Session) FocusedHandle() (schemas.Handle, error) { return s.tracker.FocusedHandle() }

// Contexts returns the session's context tracker.
func (s *Session) Contexts() *contexts.Tracker { return s.tracker }

func (s *Session) Poller() *wait.Poller { return s.poller }

func (s *Session) Logger() *zap.Logger { return s.logger }

// Navigate loads url in the focused context.
func (s *Session) Navigate(ctx context.Context, url string) error {
	h, err := s.FocusedHandle()
	if err != nil {
		return err
	}
	s.logger.Info("Navigating.", zap.String("url", url), zap.String("context", string(h)))
	if err := s.drv.Navigate(ctx, h, url); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

// Actions starts a new action chain.
func (s *Session) Actions() *actions.Builder { return actions.NewBuilder() }

// Perform runs chain against the focused context.
func (s *Session) Perform(ctx context.Context, chain *actions.Chain) error {
	opts := []actions.PerformOption{actions.WithLogger(s.logger)}
	if s.actionObserver != nil {
		opts = append(opts, actions.WithObserver(s.actionObserver))
	}
	return chain.Perform(ctx, s, opts...)
}

// Close releases the browser. It is safe to call more than once; later calls
// return the first call's result.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.drv.Close(ctx)
		if s.closeErr != nil {
			s.logger.Warn("Error while closing driver.", zap.Error(s.closeErr))
		} else {
			s.logger.Debug("Session closed.")
		}
		s.mu.Lock()
		hooks := s.onClose
		s.onClose = nil
		s.mu.Unlock()
		for _, fn := range hooks {
			fn()
		}
	})
	return s.closeErr
}

func (s *Session) addCloseHook(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = append(s.onClose, fn)
}

// Await polls cond with the session's default timing.
func Await[T any](ctx context.Context, s *Session, cond wait.Condition[T]) (T, error) {
	return wait.Await(ctx, s.poller, s, cond, s.poller.Defaults())
}

// AwaitWithin polls cond for at most timeout, using the default interval.
func AwaitWithin[T any](ctx context.Context, s *Session, cond wait.Condition[T], timeout time.Duration) (T, error) {
	return wait.Await(ctx, s.poller, s, cond, wait.Timing{Timeout: timeout})
}
