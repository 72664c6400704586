// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full application configuration. Field values come from
// defaults, an optional config.yaml, MARIONETTE_* environment variables, and
// CLI flags, in ascending precedence (viper semantics).
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Planner  PlannerConfig  `mapstructure:"planner" yaml:"planner"`
	Executor ExecutorConfig `mapstructure:"executor" yaml:"executor"`
	Verify   VerifyConfig   `mapstructure:"verify" yaml:"verify"`
	Retry    RetryConfig    `mapstructure:"retry" yaml:"retry"`
	History  HistoryConfig  `mapstructure:"history" yaml:"history"`
}

// LoggerConfig holds all settings for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// SessionConfig describes one automation session: the grid shape applied to
// the screen and the workspace directory terminal commands run in. Grid
// parameters are fixed for the lifetime of a session; changing them means
// building a new session.
type SessionConfig struct {
	Rows         int    `mapstructure:"rows" yaml:"rows"`
	Cols         int    `mapstructure:"cols" yaml:"cols"`
	WorkspaceDir string `mapstructure:"workspace_dir" yaml:"workspace_dir"`
}

// PlannerProvider selects the AI collaborator backend.
type PlannerProvider string

const (
	ProviderGemini    PlannerProvider = "gemini"
	ProviderAnthropic PlannerProvider = "anthropic"
	ProviderStub      PlannerProvider = "stub"
)

// PlannerConfig configures the AI collaborator. Credentials are read from the
// environment only (GEMINI_API_KEY / ANTHROPIC_API_KEY), never from file.
type PlannerConfig struct {
	Provider   PlannerProvider `mapstructure:"provider" yaml:"provider"`
	Model      string          `mapstructure:"model" yaml:"model"`
	APITimeout time.Duration   `mapstructure:"api_timeout" yaml:"api_timeout"`
}

// APIKey resolves the credential for the configured provider from the
// environment. Empty means no live credential is available.
func (p PlannerConfig) APIKey() string {
	switch p.Provider {
	case ProviderGemini:
		return os.Getenv("GEMINI_API_KEY")
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return ""
	}
}

// ExecutorConfig tunes action execution pacing and the terminal command bound.
type ExecutorConfig struct {
	TypeDelay      time.Duration `mapstructure:"type_delay" yaml:"type_delay"`
	ActionSettle   time.Duration `mapstructure:"action_settle" yaml:"action_settle"`
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
}

// VerifyConfig holds the two-threshold screenshot comparison policy. A
// measured difference at or above ConfirmThreshold confirms the action, below
// FailThreshold it failed, anything between is ambiguous and triggers one
// re-capture. Values are mean normalized per-pixel difference in [0,1] and are
// expected to be tuned per environment.
type VerifyConfig struct {
	ConfirmThreshold float64       `mapstructure:"confirm_threshold" yaml:"confirm_threshold"`
	FailThreshold    float64       `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	CaptureRate      float64       `mapstructure:"capture_rate" yaml:"capture_rate"`
	SettleTime       time.Duration `mapstructure:"settle_time" yaml:"settle_time"`
}

// RetryConfig bounds per-action retries. Backoff is fixed, not exponential;
// with a small retry budget the distinction buys nothing.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	Backoff    time.Duration `mapstructure:"backoff" yaml:"backoff"`
}

// HistoryConfig enables the optional PostgreSQL run-history store.
type HistoryConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
}

// SetDefaults installs default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "marionette")
	v.SetDefault("logger.log_file", "marionette.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Session --
	v.SetDefault("session.rows", 40)
	v.SetDefault("session.cols", 40)
	v.SetDefault("session.workspace_dir", "")

	// -- Planner --
	v.SetDefault("planner.provider", "gemini")
	v.SetDefault("planner.model", "gemini-2.0-flash")
	v.SetDefault("planner.api_timeout", "30s")

	// -- Executor --
	v.SetDefault("executor.type_delay", "50ms")
	v.SetDefault("executor.action_settle", "500ms")
	v.SetDefault("executor.command_timeout", "30s")

	// -- Verify --
	v.SetDefault("verify.confirm_threshold", 0.02)
	v.SetDefault("verify.fail_threshold", 0.002)
	v.SetDefault("verify.capture_rate", 4.0)
	v.SetDefault("verify.settle_time", "400ms")

	// -- Retry --
	v.SetDefault("retry.max_retries", 2)
	v.SetDefault("retry.backoff", "750ms")

	// -- History --
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.database_url", "")
}

// NewFromViper unmarshals and validates a configuration from the given viper
// instance, resolving the workspace directory.
func NewFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// The workspace can also come from the bare MARIONETTE_WORKSPACE variable
	// for parity with the credential convention.
	if cfg.Session.WorkspaceDir == "" {
		cfg.Session.WorkspaceDir = os.Getenv("MARIONETTE_WORKSPACE")
	}
	if cfg.Session.WorkspaceDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot resolve workspace directory: %w", err)
		}
		cfg.Session.WorkspaceDir = filepath.Join(home, "marionette")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// NewDefaultConfig returns a configuration populated with defaults only.
// Primarily a test convenience.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Session.Rows <= 0 || c.Session.Rows > 99 {
		return fmt.Errorf("session.rows must be in 1..99, got %d", c.Session.Rows)
	}
	if c.Session.Cols <= 0 || c.Session.Cols > 26*26 {
		return fmt.Errorf("session.cols must be in 1..676, got %d", c.Session.Cols)
	}
	switch c.Planner.Provider {
	case ProviderGemini, ProviderAnthropic, ProviderStub:
	default:
		return fmt.Errorf("planner.provider must be one of gemini, anthropic, stub; got %q", c.Planner.Provider)
	}
	if c.Planner.APITimeout <= 0 {
		return fmt.Errorf("planner.api_timeout must be a positive duration")
	}
	if c.Executor.CommandTimeout <= 0 {
		return fmt.Errorf("executor.command_timeout must be a positive duration")
	}
	if c.Verify.FailThreshold < 0 || c.Verify.ConfirmThreshold > 1 {
		return fmt.Errorf("verify thresholds must lie in [0,1]")
	}
	if c.Verify.FailThreshold >= c.Verify.ConfirmThreshold {
		return fmt.Errorf("verify.fail_threshold (%v) must be below verify.confirm_threshold (%v)",
			c.Verify.FailThreshold, c.Verify.ConfirmThreshold)
	}
	if c.Verify.CaptureRate <= 0 {
		return fmt.Errorf("verify.capture_rate must be positive")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries cannot be negative")
	}
	if c.Retry.Backoff < 0 {
		return fmt.Errorf("retry.backoff cannot be negative")
	}
	if c.History.Enabled && c.History.DatabaseURL == "" {
		return fmt.Errorf("history.database_url is required when history is enabled (MARIONETTE_HISTORY_DATABASE_URL)")
	}
	return nil
}
