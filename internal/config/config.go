// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Docs    DocsConfig    `mapstructure:"docs" yaml:"docs"`
	Ledger  LedgerConfig  `mapstructure:"ledger" yaml:"ledger"`
	Planner PlannerConfig `mapstructure:"planner" yaml:"planner"`
}

// LoggerConfig mirrors the observability package's expectations.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // console or json
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig controls session acquisition.
type BrowserConfig struct {
	// RemoteURL is the DevTools endpoint tried first for re-attachment
	// (e.g. ws://127.0.0.1:9222). Attachment preserves authentication and
	// navigation state across engine runs.
	RemoteURL string `mapstructure:"remote_url" yaml:"remote_url"`
	Headless  bool   `mapstructure:"headless" yaml:"headless"`
	// ExecPath overrides the browser binary when launching.
	ExecPath string   `mapstructure:"exec_path" yaml:"exec_path"`
	Args     []string `mapstructure:"args" yaml:"args"`
	// AttachProbeTimeout bounds the liveness probe during attach.
	AttachProbeTimeout time.Duration `mapstructure:"attach_probe_timeout" yaml:"attach_probe_timeout"`
	NavigationTimeout  time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// EngineConfig bounds the decision engine's loops.
type EngineConfig struct {
	// MaxFillRounds bounds the fill/audit cycle. A form that cannot be fully
	// determined fails after this many rounds instead of looping forever.
	MaxFillRounds int `mapstructure:"max_fill_rounds" yaml:"max_fill_rounds"`
	// WaitTimeout is the default bound for wait-for-condition calls.
	WaitTimeout time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	// ActionMinGap paces mutating dispatch; one action at a time per session.
	ActionMinGap time.Duration `mapstructure:"action_min_gap" yaml:"action_min_gap"`
}

// DocsConfig designates the read-only input area for reference documents.
type DocsConfig struct {
	InputDir string `mapstructure:"input_dir" yaml:"input_dir"`
}

// LedgerConfig enables the Postgres step ledger when a DSN is present.
type LedgerConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// PlannerConfig configures the upstream intent planner boundary.
type PlannerConfig struct {
	Provider   string        `mapstructure:"provider" yaml:"provider"`
	Model      string        `mapstructure:"model" yaml:"model"`
	APIKey     string        `mapstructure:"api_key" yaml:"api_key"`
	APITimeout time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
}

const ProviderGemini = "gemini"

// Load builds a Config from the given viper instance, applying defaults and
// expanding the docs input dir.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Docs.InputDir != "" {
		expanded, err := homedir.Expand(cfg.Docs.InputDir)
		if err != nil {
			return nil, fmt.Errorf("failed to expand docs.input_dir: %w", err)
		}
		abs, err := filepath.Abs(expanded)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve docs.input_dir: %w", err)
		}
		cfg.Docs.InputDir = abs
	}

	if cfg.Engine.MaxFillRounds <= 0 {
		return nil, fmt.Errorf("engine.max_fill_rounds must be positive, got %d", cfg.Engine.MaxFillRounds)
	}

	return &cfg, nil
}

// NewDefaultConfig returns a Config populated purely from defaults.
// Used by tests and as the fallback when no config file is present.
func NewDefaultConfig() *Config {
	v := viper.New()
	cfg, err := Load(v)
	if err != nil {
		// Defaults are static; failing to load them is a programming error.
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// Logger
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "formpilot")
	v.SetDefault("logger.log_file", "formpilot.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// Browser
	v.SetDefault("browser.remote_url", "ws://127.0.0.1:9222")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.attach_probe_timeout", "3s")
	v.SetDefault("browser.navigation_timeout", "90s")

	// Engine
	v.SetDefault("engine.max_fill_rounds", 5)
	v.SetDefault("engine.wait_timeout", "10s")
	v.SetDefault("engine.action_min_gap", "250ms")

	// Docs
	v.SetDefault("docs.input_dir", "./docs")

	// Planner
	v.SetDefault("planner.provider", ProviderGemini)
	v.SetDefault("planner.model", "gemini-2.0-flash")
	v.SetDefault("planner.api_timeout", "60s")
}
