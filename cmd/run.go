package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/actuate/internal/browser/cdp"
	"github.com/xkilldash9x/actuate/internal/browser/static"
	"github.com/xkilldash9x/actuate/internal/config"
	"github.com/xkilldash9x/actuate/internal/driver"
	"github.com/xkilldash9x/actuate/internal/observability"
	"github.com/xkilldash9x/actuate/internal/scenario"
	"github.com/xkilldash9x/actuate/internal/session"
	"github.com/xkilldash9x/actuate/internal/wait"
)

type runFlags struct {
	driver      string
	headless    bool
	timeout     time.Duration
	interval    time.Duration
	metricsAddr string
	parallel    int
}

// newRunCmd creates and configures the `run` command.
func newRunCmd(a *app) *cobra.Command {
	var f runFlags
	runCmd := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run scenarios, each in its own browser session",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyRunFlags(cmd, a.cfg, f); err != nil {
				return err
			}
			return runScenarios(cmd.Context(), cmd.OutOrStdout(), a.cfg, observability.GetLogger(), args, f.parallel)
		},
	}

	flags := runCmd.Flags()
	flags.StringVar(&f.driver, "driver", "", `browser backend: "cdp" or "static" (overrides browser.driver)`)
	flags.BoolVar(&f.headless, "headless", true, "run Chrome without a window (overrides browser.headless)")
	flags.DurationVar(&f.timeout, "timeout", 0, "default wait timeout (overrides wait.timeout)")
	flags.DurationVar(&f.interval, "interval", 0, "default wait polling interval (overrides wait.interval)")
	flags.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	flags.IntVarP(&f.parallel, "parallel", "p", 1, "number of scenarios to run at once")
	return runCmd
}

// applyRunFlags lays explicitly set flags over the loaded configuration.
func applyRunFlags(cmd *cobra.Command, cfg config.Interface, f runFlags) error {
	changed := cmd.Flags().Changed
	if changed("driver") {
		cfg.SetBrowserDriver(f.driver)
	}
	if changed("headless") {
		cfg.SetBrowserHeadless(f.headless)
	}
	if changed("timeout") {
		cfg.SetWaitTimeout(f.timeout)
	}
	if changed("interval") {
		cfg.SetWaitInterval(f.interval)
	}
	if changed("metrics-addr") {
		cfg.SetMetricsAddr(f.metricsAddr)
	}
	if f.parallel < 1 {
		return fmt.Errorf("--parallel must be at least 1, got %d", f.parallel)
	}
	if c, ok := cfg.(*config.Config); ok {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return nil
}

// newFactory picks the browser backend named in the configuration.
func newFactory(b config.BrowserConfig, logger *zap.Logger) (driver.Factory, error) {
	switch b.Driver {
	case config.DriverStatic:
		return static.Factory{Options: static.Options{Logger: logger, FetchTimeout: b.FetchTimeout}}, nil
	case config.DriverCDP:
		return cdp.NewLauncher(b, logger), nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", b.Driver)
	}
}

// runScenarios loads every scenario first, then runs them through a session
// manager and prints one result line per scenario.
func runScenarios(ctx context.Context, out io.Writer, cfg config.Interface, logger *zap.Logger, paths []string, parallel int) error {
	scenarios := make([]*scenario.Scenario, len(paths))
	for i, p := range paths {
		sc, err := scenario.Load(p)
		if err != nil {
			return err
		}
		scenarios[i] = sc
	}

	factory, err := newFactory(cfg.Browser(), logger)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	opts := session.Options{
		Logger:         logger,
		Timing:         wait.Timing{Timeout: cfg.Wait().Timeout, Interval: cfg.Wait().Interval},
		WaitObserver:   metrics,
		ActionObserver: metrics,
	}
	scfg := cfg.Session()
	mgr := session.NewManager(factory, opts, session.ManagerConfig{
		LaunchRate:       scfg.LaunchRate,
		LaunchBurst:      scfg.LaunchBurst,
		CloseConcurrency: scfg.CloseConcurrency,
	})

	metricsCtx, stopMetrics := context.WithCancel(ctx)
	var serveErr error
	var serving sync.WaitGroup
	if addr := cfg.Metrics().Addr; addr != "" {
		serving.Add(1)
		go func() {
			defer serving.Done()
			serveErr = metrics.Serve(metricsCtx, addr, logger)
		}()
	}

	var (
		mu     sync.Mutex
		failed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, s := range scenarios {
		g.Go(func() error {
			start := time.Now()
			err := mgr.Run(gctx, func(ctx context.Context, sess *session.Session) error {
				return scenario.Execute(ctx, sess, s)
			})
			elapsed := time.Since(start).Round(time.Millisecond)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				fmt.Fprintf(out, "FAIL %s (%s) %s: %v\n", s.Name, paths[i], elapsed, err)
				if driver.IsFatal(err) {
					logger.Error("Browser lost during scenario.", zap.String("scenario", s.Name), zap.Error(err))
				}
				return nil
			}
			fmt.Fprintf(out, "PASS %s (%s) %s\n", s.Name, paths[i], elapsed)
			return nil
		})
	}
	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), scfg.ShutdownTimeout)
	defer cancel()
	if err := mgr.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Session shutdown incomplete.", zap.Error(err))
	}
	stopMetrics()
	serving.Wait()
	if serveErr != nil {
		logger.Warn("Metrics server failed.", zap.Error(serveErr))
	}

	if runErr != nil {
		return runErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(scenarios))
	}
	return nil
}
