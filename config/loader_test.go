package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Executor.DefaultTimeout)
	assert.Equal(t, 3, cfg.Executor.DefaultMaxRetries)
	assert.Equal(t, TimeoutZeroLegacyDirect, cfg.Executor.TimeoutZeroMode)
	assert.Equal(t, 60*time.Second, cfg.Async.DefaultAwaitTimeout)
	assert.Equal(t, 100, cfg.Async.MailboxFlushLimit)
	assert.Equal(t, TelemetryModeSilent, cfg.Telemetry.Mode)
	assert.True(t, cfg.Pool.Enabled)
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
executor:
  default_timeout: 5s
  default_max_retries: 7
  timeout_zero_mode: immediate-timeout
async:
  grace: 250ms
  mailbox_flush_limit: 10
telemetry:
  mode: minimal
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Executor.DefaultTimeout)
	assert.Equal(t, 7, cfg.Executor.DefaultMaxRetries)
	assert.Equal(t, TimeoutZeroImmediate, cfg.Executor.TimeoutZeroMode)
	assert.Equal(t, 250*time.Millisecond, cfg.Async.Grace)
	assert.Equal(t, 10, cfg.Async.MailboxFlushLimit)
	assert.Equal(t, TelemetryModeMinimal, cfg.Telemetry.Mode)

	// Untouched values keep their defaults.
	assert.Equal(t, 1*time.Second, cfg.Executor.DefaultBackoff)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/actionflow.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Executor.DefaultTimeout)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("ACTIONFLOW_EXECUTOR_DEFAULT_TIMEOUT", "2s")
	t.Setenv("ACTIONFLOW_EXECUTOR_DEFAULT_MAX_RETRIES", "9")
	t.Setenv("ACTIONFLOW_ASYNC_GRACE", "50ms")
	t.Setenv("ACTIONFLOW_POOL_ENABLED", "false")
	t.Setenv("ACTIONFLOW_LOG_OUTPUT_PATHS", "stdout, stderr")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Executor.DefaultTimeout)
	assert.Equal(t, 9, cfg.Executor.DefaultMaxRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.Async.Grace)
	assert.False(t, cfg.Pool.Enabled)
	assert.Equal(t, []string{"stdout", "stderr"}, cfg.Log.OutputPaths)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("executor:\n  default_max_retries: 5\n"), 0o600))

	t.Setenv("ACTIONFLOW_EXECUTOR_DEFAULT_MAX_RETRIES", "11")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 11, cfg.Executor.DefaultMaxRetries)
}

func TestCustomValidatorRuns(t *testing.T) {
	called := false
	_, err := NewLoader().WithValidator(func(c *Config) error {
		called = true
		return nil
	}).Load()
	require.NoError(t, err)
	assert.True(t, called)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Executor.TimeoutZeroMode = "sometimes"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout_zero_mode")

	cfg = DefaultConfig()
	cfg.Async.MailboxFlushLimit = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Telemetry.Mode = "loud"
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Pool.Enabled = false
	cfg.Pool.MaxWorkers = 0
	assert.NoError(t, cfg.Validate(), "worker count unchecked when pool disabled")
}
