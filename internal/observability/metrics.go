// File: internal/observability/metrics.go
package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/actuate/api/schemas"
	"github.com/xkilldash9x/actuate/internal/driver"
	"github.com/xkilldash9x/actuate/internal/wait"
)

const namespace = "actuate"

// Metrics records poller and action-chain activity. A nil *Metrics is a valid
// no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	awaits        *prometheus.CounterVec
	polls         prometheus.Counter
	awaitDuration *prometheus.HistogramVec
	steps         *prometheus.CounterVec
	aborts        *prometheus.CounterVec
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		awaits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "awaits_total",
			Help:      "Finished explicit waits by outcome.",
		}, []string{"outcome"}),
		polls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "condition_polls_total",
			Help:      "Condition evaluations performed by the poller.",
		}),
		awaitDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "await_duration_seconds",
			Help:      "Time spent in explicit waits.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}),
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_steps_dispatched_total",
			Help:      "Input steps dispatched to the browser by kind.",
		}, []string{"kind"}),
		aborts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_chain_aborts_total",
			Help:      "Action chains aborted, by the kind of the failing step and the reason.",
		}, []string{"kind", "reason"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveAwait implements wait.Observer.
func (m *Metrics) ObserveAwait(_ string, outcome wait.Outcome, polls int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.awaits.WithLabelValues(string(outcome)).Inc()
	m.polls.Add(float64(polls))
	m.awaitDuration.WithLabelValues(string(outcome)).Observe(elapsed.Seconds())
}

// ObserveStep implements actions.Observer.
func (m *Metrics) ObserveStep(kind schemas.StepKind) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(string(kind)).Inc()
}

// ObserveAbort implements actions.Observer.
func (m *Metrics) ObserveAbort(kind schemas.StepKind, err error) {
	if m == nil {
		return
	}
	m.aborts.WithLabelValues(string(kind), abortReason(err)).Inc()
}

func abortReason(err error) string {
	switch {
	case errors.Is(err, driver.ErrStaleElement):
		return "stale_element"
	case errors.Is(err, driver.ErrDialogBlocking):
		return "dialog_blocking"
	case errors.Is(err, driver.ErrSessionLost):
		return "session_lost"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "other"
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Router mounts the exposition handler on /metrics plus a /healthz probe.
func (m *Metrics) Router() chi.Router {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return r
}

// Serve exposes Router on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	srv := &http.Server{Addr: addr, Handler: m.Router(), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Serving metrics.", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}
