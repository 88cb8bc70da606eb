// File: internal/browser/cdp/launcher.go
package cdp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/actuate/internal/config"
	"github.com/xkilldash9x/actuate/internal/driver"
	"github.com/xkilldash9x/actuate/internal/session"
)

const defaultStartupTimeout = 30 * time.Second

// Launcher starts one Chrome process per driver.
type Launcher struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
}

var _ driver.Factory = (*Launcher)(nil)

func NewLauncher(cfg config.BrowserConfig, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{cfg: cfg, logger: logger.Named("cdp_launcher")}
}

// AllocatorOptions translates browser config into chromedp exec allocator
// options.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.Maximize {
		opts = append(opts, chromedp.Flag("start-maximized", true))
	} else if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}
	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.IgnoreCertErrors)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}

	for name, value := range parseArgs(cfg.Args) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

// parseArgs turns "--flag" and "--key=value" strings into chromedp flag
// names and values. chromedp adds the leading dashes itself.
func parseArgs(args []string) map[string]interface{} {
	flags := make(map[string]interface{}, len(args))
	for _, arg := range args {
		arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
		if arg == "" {
			continue
		}
		if key, value, ok := strings.Cut(arg, "="); ok {
			flags[key] = value
			continue
		}
		flags[arg] = true
	}
	return flags
}

// NewDriver launches a browser and attaches to its first page. The browser
// outlives ctx; ctx only bounds the launch.
func (l *Launcher) NewDriver(ctx context.Context) (driver.Driver, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(session.Detach(ctx), AllocatorOptions(l.cfg)...)
	sugar := l.logger.Sugar()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Errorf),
	)
	shutdown := func() {
		browserCancel()
		allocCancel()
	}

	timeout := l.cfg.StartupTimeout
	if timeout <= 0 {
		timeout = defaultStartupTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	// The first Run allocates the browser and binds its lifetime to the
	// context it is given, so it must run on browserCtx itself.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()

	select {
	case err := <-started:
		if err != nil {
			shutdown()
			return nil, fmt.Errorf("launching browser: %w", err)
		}
	case <-timer.C:
		shutdown()
		<-started
		return nil, fmt.Errorf("launching browser: no response within %s", timeout)
	case <-ctx.Done():
		shutdown()
		<-started
		return nil, fmt.Errorf("launching browser: %w", ctx.Err())
	}

	d, err := newDriver(browserCtx, shutdown, l.logger)
	if err != nil {
		shutdown()
		return nil, err
	}
	l.logger.Info("Browser launched.", zap.Bool("headless", l.cfg.Headless))
	return d, nil
}
