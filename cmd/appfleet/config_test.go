package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/appfleet/internal/core/priority"
)

// clearEnv blanks every variable LoadConfig reads so the host environment
// cannot leak into tests. Viper ignores empty variables.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APPFLEET_APPS",
		"APPFLEET_PRIORITY_MAX_PRIORITY",
		"APPFLEET_PRIORITY_HASH",
		"APPFLEET_PLAN_ORIGIN_HEADER_VALUE",
		"APPFLEET_APPLY_PROVIDER",
		"APPFLEET_AWS_REGION",
		"APPFLEET_AWS_ACCESS_KEY_ID",
		"APPFLEET_AWS_SECRET_ACCESS_KEY",
		"APPFLEET_DATABASE_DSN",
		"APPFLEET_LOG_LEVEL",
		"APPFLEET_LOG_FORMAT",
		"APPFLEET_DEMO_APP",
		"APPFLEET_DEMO_BASE_PATH",
		"STREAMLIT_SERVER_BASE_URL_PATH",
	} {
		t.Setenv(key, "")
	}
}

// =============================================================================
// Config Loading Tests
// =============================================================================

func TestLoadConfig_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Empty(t, cfg.Apps)
	assert.Equal(t, 50000, cfg.Priority.MaxPriority)
	assert.Equal(t, 32, cfg.Priority.MaxNameLength)
	assert.Equal(t, "fnv1a32", cfg.Priority.Hash)
	assert.Equal(t, "StreamlitApplications", cfg.Plan.NamePrefix)
	assert.Equal(t, "X-Custom-Header", cfg.Plan.OriginHeaderName)
	assert.Equal(t, 8501, cfg.Plan.ContainerPort)
	assert.Equal(t, 100, cfg.Plan.MaxApps)
	assert.Equal(t, "dry-run", cfg.Apply.Provider)
	assert.Equal(t, "us-east-1", cfg.AWS.Region)
	assert.Equal(t, "StreamlitApplicationsVPC", cfg.AWS.VPCName)
	assert.Equal(t, 4, cfg.AWS.Concurrency)
	assert.Equal(t, "./data/appfleet.db", cfg.Database.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "bedrock", cfg.Demo.Backend)
	assert.Equal(t, 8501, cfg.Demo.Port)
	assert.Equal(t, 60*time.Second, cfg.Demo.InvokeTimeout)
	assert.Equal(t, 10*time.Second, cfg.Demo.ShutdownTimeout)

	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_FromFile(t *testing.T) {
	clearEnv(t)

	configContent := `
apps:
  - chat-app
  - summarizer
priority:
  max_priority: 1000
  hash: xxhash64
plan:
  origin_header_value: "secret-value"
  cpu: 512
aws:
  listener_arn: "arn:listener/1"
  concurrency: 8
database:
  dsn: "/tmp/test.db"
log:
  level: "debug"
  format: "json"
demo:
  app: chat-app
  port: 9000
  invoke_timeout: 5s
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(configContent), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, []string{"chat-app", "summarizer"}, cfg.Apps)
	assert.Equal(t, 1000, cfg.Priority.MaxPriority)
	assert.Equal(t, priority.HashXXHash64, cfg.AssignerConfig().Hash)
	assert.Equal(t, "secret-value", cfg.PlanParams().OriginHeader.Value)
	assert.Equal(t, 512, cfg.PlanParams().CPU)
	assert.Equal(t, "arn:listener/1", cfg.AWSSettings().ListenerARN)
	assert.Equal(t, 8, cfg.AWSSettings().Concurrency)
	assert.Equal(t, "/tmp/test.db", cfg.Database.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "0.0.0.0:9000", cfg.Demo.Address())
	assert.Equal(t, "/chat-app", cfg.Demo.ResolvedBasePath())
	assert.Equal(t, 5*time.Second, cfg.Demo.InvokeTimeout)
}

func TestLoadConfig_EnvironmentOverride(t *testing.T) {
	clearEnv(t)

	t.Setenv("APPFLEET_APPS", "chat-app,translator")
	t.Setenv("APPFLEET_PRIORITY_HASH", "sha256")
	t.Setenv("APPFLEET_DATABASE_DSN", "/custom/path.db")
	t.Setenv("APPFLEET_LOG_LEVEL", "warn")
	t.Setenv("APPFLEET_AWS_ACCESS_KEY_ID", "AKIA")
	t.Setenv("APPFLEET_AWS_SECRET_ACCESS_KEY", "secret")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, []string{"chat-app", "translator"}, cfg.Apps)
	assert.Equal(t, "sha256", cfg.Priority.Hash)
	assert.Equal(t, "/custom/path.db", cfg.Database.DSN)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.AWSSettings().Credentials.Static())
	assert.True(t, cfg.LLMConfig().Credentials.Static())
}

func TestLoadConfig_BasePathFromServiceEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("APPFLEET_DEMO_APP", "chat-app")
	t.Setenv("STREAMLIT_SERVER_BASE_URL_PATH", "/from-service")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "/from-service", cfg.Demo.ResolvedBasePath())
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	clearEnv(t)

	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("apps: [unclosed"), 0644))

	_, err := LoadConfig(tmpFile)
	assert.Error(t, err)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 50000, cfg.Priority.MaxPriority)
}

func TestConfig_Validate(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown hash", func(c *Config) { c.Priority.Hash = "md5" }},
		{"zero max priority", func(c *Config) { c.Priority.MaxPriority = 0 }},
		{"unknown provider", func(c *Config) { c.Apply.Provider = "gcp" }},
		{"half credentials", func(c *Config) { c.AWS.AccessKeyID = "AKIA" }},
		{"aws priority above listener limit", func(c *Config) {
			c.Apply.Provider = "aws"
			c.Priority.MaxPriority = 60000
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_ValidateLargeRangeForDryRun(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.Priority.MaxPriority = 60000
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 60000, cfg.AWSSettings().MaxPriority)
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestSetupLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := &Config{Log: LogConfig{Level: tt.level}}
			logger := SetupLogger(cfg, &bytes.Buffer{})
			assert.True(t, logger.Enabled(context.Background(), tt.want))
			if tt.want > slog.LevelDebug {
				assert.False(t, logger.Enabled(context.Background(), tt.want-1))
			}
		})
	}
}

func TestSetupLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	SetupLogger(&Config{Log: LogConfig{Format: "json"}}, &buf).Info("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	SetupLogger(&Config{Log: LogConfig{Format: "text"}}, &buf).Info("hello", "k", "v")
	assert.Contains(t, buf.String(), "msg=hello")
}
