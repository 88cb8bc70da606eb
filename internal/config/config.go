// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Wait() WaitConfig
	Session() SessionConfig
	Metrics() MetricsConfig

	// Setters used by CLI flag overrides.
	SetBrowserDriver(string)
	SetBrowserHeadless(bool)
	SetWaitTimeout(time.Duration)
	SetWaitInterval(time.Duration)
	SetMetricsAddr(string)
}

// Driver names accepted by browser.driver.
const (
	DriverCDP    = "cdp"
	DriverStatic = "static"
)

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	WaitCfg    WaitConfig    `mapstructure:"wait" yaml:"wait"`
	SessionCfg SessionConfig `mapstructure:"session" yaml:"session"`
	MetricsCfg MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Wait() WaitConfig       { return c.WaitCfg }
func (c *Config) Session() SessionConfig { return c.SessionCfg }
func (c *Config) Metrics() MetricsConfig { return c.MetricsCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserDriver(d string)       { c.BrowserCfg.Driver = d }
func (c *Config) SetBrowserHeadless(b bool)       { c.BrowserCfg.Headless = b }
func (c *Config) SetWaitTimeout(d time.Duration)  { c.WaitCfg.Timeout = d }
func (c *Config) SetWaitInterval(d time.Duration) { c.WaitCfg.Interval = d }
func (c *Config) SetMetricsAddr(addr string)      { c.MetricsCfg.Addr = addr }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig selects and tunes the browser backend.
type BrowserConfig struct {
	// Driver is "cdp" for a real Chrome over the DevTools protocol or "static"
	// for the offline HTML driver.
	Driver          string        `mapstructure:"driver" yaml:"driver"`
	Headless        bool          `mapstructure:"headless" yaml:"headless"`
	Maximize        bool          `mapstructure:"maximize" yaml:"maximize"`
	WindowWidth     int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight    int           `mapstructure:"window_height" yaml:"window_height"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	ExecPath        string        `mapstructure:"exec_path" yaml:"exec_path"`
	UserDataDir     string        `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	Args            []string      `mapstructure:"args" yaml:"args"`
	StartupTimeout  time.Duration `mapstructure:"startup_timeout" yaml:"startup_timeout"`
	// FetchTimeout bounds document loads in the static driver.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`
}

// WaitConfig holds the default explicit-wait timing.
type WaitConfig struct {
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// SessionConfig bounds session provisioning and teardown.
type SessionConfig struct {
	LaunchRate       float64       `mapstructure:"launch_rate" yaml:"launch_rate"`
	LaunchBurst      int           `mapstructure:"launch_burst" yaml:"launch_burst"`
	CloseConcurrency int           `mapstructure:"close_concurrency" yaml:"close_concurrency"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "actuate")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.driver", DriverCDP)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.maximize", false)
	v.SetDefault("browser.window_width", 1366)
	v.SetDefault("browser.window_height", 768)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.startup_timeout", "30s")
	v.SetDefault("browser.fetch_timeout", "30s")

	// -- Wait --
	v.SetDefault("wait.timeout", "10s")
	v.SetDefault("wait.interval", "500ms")

	// -- Session --
	v.SetDefault("session.launch_rate", 2.0)
	v.SetDefault("session.launch_burst", 1)
	v.SetDefault("session.close_concurrency", 4)
	v.SetDefault("session.shutdown_timeout", "15s")

	// -- Metrics --
	v.SetDefault("metrics.addr", "")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	_ = v.BindEnv("browser.exec_path", "ACTUATE_CHROME_PATH", "CHROME_PATH")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.BrowserCfg.ExecPath, &c.BrowserCfg.UserDataDir, &c.LoggerCfg.LogFile} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expanding path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.BrowserCfg.Driver {
	case DriverCDP, DriverStatic:
	default:
		return fmt.Errorf("browser.driver must be %q or %q, got %q", DriverCDP, DriverStatic, c.BrowserCfg.Driver)
	}
	if c.WaitCfg.Interval <= 0 {
		return fmt.Errorf("wait.interval must be a positive duration")
	}
	if c.WaitCfg.Timeout < 0 {
		return fmt.Errorf("wait.timeout must not be negative")
	}
	if c.SessionCfg.LaunchRate < 0 {
		return fmt.Errorf("session.launch_rate must not be negative")
	}
	if c.SessionCfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("session.shutdown_timeout must be a positive duration")
	}
	if c.BrowserCfg.WindowWidth < 0 || c.BrowserCfg.WindowHeight < 0 {
		return fmt.Errorf("browser window dimensions must not be negative")
	}
	return nil
}
