// File: internal/config/config_test.go
package config

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "actuate", cfg.Logger().ServiceName)
	assert.Equal(t, DriverCDP, cfg.Browser().Driver)
	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, 10*time.Second, cfg.Wait().Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Wait().Interval)
	assert.Equal(t, 2.0, cfg.Session().LaunchRate)
	assert.Equal(t, 15*time.Second, cfg.Session().ShutdownTimeout)
	assert.Empty(t, cfg.Metrics().Addr)
	require.NoError(t, cfg.Validate())
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"UnknownDriver", func(c *Config) { c.BrowserCfg.Driver = "webdriver" }, "browser.driver"},
		{"ZeroInterval", func(c *Config) { c.WaitCfg.Interval = 0 }, "wait.interval"},
		{"NegativeTimeout", func(c *Config) { c.WaitCfg.Timeout = -time.Second }, "wait.timeout"},
		{"NegativeLaunchRate", func(c *Config) { c.SessionCfg.LaunchRate = -1 }, "session.launch_rate"},
		{"NoShutdownTimeout", func(c *Config) { c.SessionCfg.ShutdownTimeout = 0 }, "session.shutdown_timeout"},
		{"NegativeWindow", func(c *Config) { c.BrowserCfg.WindowWidth = -5 }, "window dimensions"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}

	t.Run("ZeroTimeoutAllowed", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.WaitCfg.Timeout = 0
		assert.NoError(t, cfg.Validate())
	})
}

// -- Viper Integration Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("FromYAML", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		yamlConfig := []byte(`
browser:
  driver: static
  headless: false
  args: ["--lang=en-US", "--mute-audio"]
wait:
  timeout: 4s
  interval: 250ms
session:
  launch_rate: 0.5
`)
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, DriverStatic, cfg.Browser().Driver)
		assert.False(t, cfg.Browser().Headless)
		assert.Equal(t, []string{"--lang=en-US", "--mute-audio"}, cfg.Browser().Args)
		assert.Equal(t, 4*time.Second, cfg.Wait().Timeout)
		assert.Equal(t, 250*time.Millisecond, cfg.Wait().Interval)
		assert.Equal(t, 0.5, cfg.Session().LaunchRate)
		// Untouched sections keep defaults.
		assert.Equal(t, "console", cfg.Logger().Format)
	})

	t.Run("InvalidRejected", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("wait.interval", "0s")

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("ExpandsHomePaths", func(t *testing.T) {
		home, err := homedir.Dir()
		if err != nil {
			t.Skip("no home directory available")
		}
		v := viper.New()
		SetDefaults(v)
		v.Set("browser.user_data_dir", "~/chrome-profile")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "chrome-profile"), cfg.Browser().UserDataDir)
	})

	t.Run("ChromePathFromEnv", func(t *testing.T) {
		t.Setenv("ACTUATE_CHROME_PATH", "/opt/chrome/chrome")
		v := viper.New()
		SetDefaults(v)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "/opt/chrome/chrome", cfg.Browser().ExecPath)
	})
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	var iface Interface = cfg

	iface.SetBrowserDriver(DriverStatic)
	iface.SetBrowserHeadless(false)
	iface.SetWaitTimeout(3 * time.Second)
	iface.SetWaitInterval(100 * time.Millisecond)
	iface.SetMetricsAddr(":9464")

	assert.Equal(t, DriverStatic, iface.Browser().Driver)
	assert.False(t, iface.Browser().Headless)
	assert.Equal(t, 3*time.Second, iface.Wait().Timeout)
	assert.Equal(t, 100*time.Millisecond, iface.Wait().Interval)
	assert.Equal(t, ":9464", iface.Metrics().Addr)
}
