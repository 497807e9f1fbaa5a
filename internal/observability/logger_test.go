// File: internal/observability/logger_test.go
package observability

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/formpilot/internal/config"
)

// syncBuffer adapts bytes.Buffer to zapcore.WriteSyncer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Sync() error { return nil }

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testLoggerConfig() config.LoggerConfig {
	return config.LoggerConfig{
		Level:       "debug",
		Format:      "json",
		ServiceName: "formpilot-test",
	}
}

func TestInitializeWritesStructuredOutput(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	buf := &syncBuffer{}
	Initialize(testLoggerConfig(), zapcore.AddSync(buf))

	logger := GetLogger()
	require.NotNil(t, logger)

	logger.Info("engine step")
	out := buf.String()
	assert.Contains(t, out, `"msg":"engine step"`)
	assert.Contains(t, out, "formpilot-test")
}

func TestInitializeIsIdempotent(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	first := &syncBuffer{}
	second := &syncBuffer{}
	Initialize(testLoggerConfig(), zapcore.AddSync(first))
	Initialize(testLoggerConfig(), zapcore.AddSync(second))

	GetLogger().Info("only once")
	assert.Contains(t, first.String(), "only once")
	assert.Empty(t, second.String())
}

func TestGetLoggerBeforeInitializeFallsBack(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	logger := GetLogger()
	assert.NotNil(t, logger)
}

func TestInvalidLevelDefaultsToInfo(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	cfg := testLoggerConfig()
	cfg.Level = "not-a-level"
	buf := &syncBuffer{}
	Initialize(cfg, zapcore.AddSync(buf))

	GetLogger().Debug("hidden at info")
	GetLogger().Info("visible at info")

	out := buf.String()
	assert.NotContains(t, out, "hidden at info")
	assert.Contains(t, out, "visible at info")
}
