// File: internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Session.WorkspaceDir = t.TempDir()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 40, cfg.Session.Rows)
	assert.Equal(t, 40, cfg.Session.Cols)
	assert.Equal(t, ProviderGemini, cfg.Planner.Provider)
	assert.Equal(t, 0.02, cfg.Verify.ConfirmThreshold)
	assert.Equal(t, 0.002, cfg.Verify.FailThreshold)
	assert.Equal(t, 2, cfg.Retry.MaxRetries)
	assert.Equal(t, 750*time.Millisecond, cfg.Retry.Backoff)
	assert.Equal(t, 30*time.Second, cfg.Executor.CommandTimeout)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero rows",
			mutate:  func(c *Config) { c.Session.Rows = 0 },
			wantErr: "session.rows",
		},
		{
			name:    "too many columns",
			mutate:  func(c *Config) { c.Session.Cols = 700 },
			wantErr: "session.cols",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Planner.Provider = "oracle" },
			wantErr: "planner.provider",
		},
		{
			name: "inverted verify thresholds",
			mutate: func(c *Config) {
				c.Verify.ConfirmThreshold = 0.001
				c.Verify.FailThreshold = 0.01
			},
			wantErr: "fail_threshold",
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.Retry.MaxRetries = -1 },
			wantErr: "max_retries",
		},
		{
			name:    "history enabled without URL",
			mutate:  func(c *Config) { c.History.Enabled = true },
			wantErr: "history.database_url",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			cfg.Session.WorkspaceDir = t.TempDir()
			tc.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestNewFromViperResolvesWorkspaceFromEnv(t *testing.T) {
	workspace := t.TempDir()
	t.Setenv("MARIONETTE_WORKSPACE", workspace)

	v := viper.New()
	SetDefaults(v)
	cfg, err := NewFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, workspace, cfg.Session.WorkspaceDir)
}

func TestNewFromViperDefaultsWorkspaceToHome(t *testing.T) {
	t.Setenv("MARIONETTE_WORKSPACE", "")

	v := viper.New()
	SetDefaults(v)
	cfg, err := NewFromViper(v)
	require.NoError(t, err)
	assert.Contains(t, cfg.Session.WorkspaceDir, "marionette")
}

func TestAPIKeyResolution(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("ANTHROPIC_API_KEY", "a-key")

	assert.Equal(t, "g-key", PlannerConfig{Provider: ProviderGemini}.APIKey())
	assert.Equal(t, "a-key", PlannerConfig{Provider: ProviderAnthropic}.APIKey())
	assert.Empty(t, PlannerConfig{Provider: ProviderStub}.APIKey())
}
