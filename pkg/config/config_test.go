package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plugin.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadOverridesOnlyDefinedKeys(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"
call_timeout = "10s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.CallTimeout)

	def := Default()
	assert.Equal(t, def.HandlerTimeout, cfg.HandlerTimeout)
	assert.Equal(t, def.TickInterval, cfg.TickInterval)
	assert.Equal(t, def.ShutdownGrace, cfg.ShutdownGrace)
	assert.Equal(t, def.NotifyPerSecond, cfg.NotifyPerSecond)
}

func TestLoadRejectsBadDurations(t *testing.T) {
	path := writeConfig(t, `handler_timeout = "soon"`)
	_, err := Load(path)
	assert.Error(t, err)

	path = writeConfig(t, `tick_interval = "-1s"`)
	_, err = Load(path)
	assert.Error(t, err)

	path = writeConfig(t, `notify_per_second = 0.0`)
	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}
