// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/actuate/internal/config"
)

// lockedBuffer is a concurrency-safe WriteSyncer for capturing output.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Sync() error { return nil }

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func initForTest(t *testing.T, cfg config.LoggerConfig) *lockedBuffer {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)
	buf := &lockedBuffer{}
	Initialize(cfg, buf)
	return buf
}

func TestInitialize(t *testing.T) {
	t.Run("ConsoleWithColors", func(t *testing.T) {
		buf := initForTest(t, config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "actuate",
			Colors:      config.ColorConfig{Info: "green"},
		})

		GetLogger().Named("wait").Info("Await finished.")
		Sync()

		out := buf.String()
		assert.Contains(t, out, colorMap["green"]+"INFO"+colorReset)
		assert.Contains(t, out, "actuate.wait.")
		assert.Contains(t, out, "Await finished.")
	})

	t.Run("JSON", func(t *testing.T) {
		buf := initForTest(t, config.LoggerConfig{Level: "info", Format: "json", ServiceName: "actuate"})

		GetLogger().Warn("Chain aborted.", zap.Int("step", 2))
		Sync()

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(buf.String()), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "actuate", entry["logger"])
		assert.Equal(t, "Chain aborted.", entry["msg"])
		assert.Equal(t, float64(2), entry["step"])
	})

	t.Run("LevelFiltering", func(t *testing.T) {
		buf := initForTest(t, config.LoggerConfig{Level: "warn", Format: "json"})

		GetLogger().Info("hidden")
		GetLogger().Warn("shown")
		Sync()

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("InvalidLevelFallsBackToInfo", func(t *testing.T) {
		buf := initForTest(t, config.LoggerConfig{Level: "chatty", Format: "json"})

		GetLogger().Debug("debug line")
		GetLogger().Info("info line")
		Sync()

		assert.NotContains(t, buf.String(), "debug line")
		assert.Contains(t, buf.String(), "info line")
	})

	t.Run("RotatedFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "actuate.log")
		initForTest(t, config.LoggerConfig{Level: "debug", Format: "console", LogFile: path, MaxSize: 1})

		GetLogger().Error("goes to the file")
		Sync()

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"msg":"goes to the file"`)
	})

	t.Run("OnlyFirstInitializeApplies", func(t *testing.T) {
		buf := initForTest(t, config.LoggerConfig{Level: "info", Format: "json", ServiceName: "first"})
		first := GetLogger()

		Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "second"}, zapcore.AddSync(&bytes.Buffer{}))
		assert.Same(t, first, GetLogger())

		GetLogger().Info("x")
		assert.Contains(t, buf.String(), "first")
		assert.NotContains(t, buf.String(), "second")
	})
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)
	assert.NotNil(t, GetLogger())
}
