// internal/session/manager.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/actuate/internal/driver"
)

// ErrManagerClosed is returned by Acquire after Shutdown started.
var ErrManagerClosed = errors.New("session manager is shut down")

// ManagerConfig bounds how fast browsers are launched and how many are
// closed in parallel on shutdown.
type ManagerConfig struct {
	LaunchRate  float64
	LaunchBurst int
	// CloseConcurrency caps parallel closes during Shutdown; <= 0 is unbounded.
	CloseConcurrency int
}

// Manager provisions independent sessions and tears them all down on shutdown.
type Manager struct {
	factory driver.Factory
	opts    Options
	cfg     ManagerConfig
	logger  *zap.Logger
	limiter *rate.Limiter

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewManager creates a manager. A non-positive launch rate disables limiting.
func NewManager(factory driver.Factory, opts Options, cfg ManagerConfig) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.LaunchRate > 0 {
		limit = rate.Limit(cfg.LaunchRate)
	}
	burst := cfg.LaunchBurst
	if burst < 1 {
		burst = 1
	}
	return &Manager{
		factory:  factory,
		opts:     opts,
		cfg:      cfg,
		logger:   logger.Named("session_manager"),
		limiter:  rate.NewLimiter(limit, burst),
		sessions: make(map[string]*Session),
	}
}

// Acquire launches a new session. The caller must Close it, or leave it to Shutdown.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	if m.isClosed() {
		return nil, ErrManagerClosed
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for launch slot: %w", err)
	}

	s, err := open(ctx, m.factory, m.opts)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = s.Close(Detach(ctx))
		return nil, ErrManagerClosed
	}
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	s.addCloseHook(func() {
		m.mu.Lock()
		delete(m.sessions, s.ID())
		m.mu.Unlock()
	})
	m.logger.Info("Session acquired.", zap.String("session_id", s.ID()))
	return s, nil
}

// Run acquires a session, runs fn and closes the session on every exit path.
func (m *Manager) Run(ctx context.Context, fn func(context.Context, *Session) error) error {
	return scoped(ctx, m.Acquire, fn)
}

// Active returns the number of sessions not yet closed.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Shutdown stops new acquisitions and closes every live session concurrently.
// It returns the first close error, if any.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.Unlock()

	if len(live) == 0 {
		return nil
	}
	m.logger.Info("Closing remaining sessions.", zap.Int("count", len(live)))

	// Every session gets its close attempt even if another one fails.
	var g errgroup.Group
	if m.cfg.CloseConcurrency > 0 {
		g.SetLimit(m.cfg.CloseConcurrency)
	}
	for _, s := range live {
		g.Go(func() error {
			if err := s.Close(ctx); err != nil {
				return fmt.Errorf("closing session %s: %w", s.ID(), err)
			}
			return nil
		})
	}
	return g.Wait()
}
