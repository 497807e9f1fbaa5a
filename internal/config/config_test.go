// File: internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "formpilot", cfg.Logger.ServiceName)
	assert.Equal(t, "ws://127.0.0.1:9222", cfg.Browser.RemoteURL)
	assert.Equal(t, 5, cfg.Engine.MaxFillRounds)
	assert.Equal(t, 10*time.Second, cfg.Engine.WaitTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.ActionMinGap)
	assert.Equal(t, ProviderGemini, cfg.Planner.Provider)
}

func TestLoadOverrides(t *testing.T) {
	v := viper.New()
	v.Set("engine.max_fill_rounds", 2)
	v.Set("browser.headless", true)
	v.Set("browser.attach_probe_timeout", "1s")

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Engine.MaxFillRounds)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, time.Second, cfg.Browser.AttachProbeTimeout)
}

func TestLoadRejectsNonPositiveFillRounds(t *testing.T) {
	v := viper.New()
	v.Set("engine.max_fill_rounds", 0)

	_, err := Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_fill_rounds")
}

func TestDocsInputDirIsAbsolute(t *testing.T) {
	v := viper.New()
	v.Set("docs.input_dir", "./relative/docs")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.True(t, len(cfg.Docs.InputDir) > 0 && cfg.Docs.InputDir[0] == '/')
}

func TestNewDefaultConfigDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		cfg := NewDefaultConfig()
		assert.NotNil(t, cfg)
	})
}
