package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	for _, k := range []string{"CONFIG_DIR", "DISCORD_TOKEN", "MODULE_PATHS", "LOG_LEVEL", "LOG_FILE",
		"CONFIG_WATCH", "CONFIG_WATCH_INTERVAL", "CONFIG_BACKUPS"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("data", "config.json"), filepath.Clean(cfg.ConfigFile()))
	assert.Equal(t, []string{"./modules"}, cfg.ModulePaths)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.ConfigWatch)
	assert.Equal(t, 2*time.Second, cfg.ConfigWatchInterval)
	assert.Equal(t, 3, cfg.ConfigBackups)
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("CONFIG_DIR", "/srv/bot")
	t.Setenv("MODULE_PATHS", "/a,/b")
	t.Setenv("CONFIG_WATCH", "false")
	t.Setenv("CONFIG_WATCH_INTERVAL", "500ms")
	t.Setenv("CONFIG_BACKUPS", "0")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "/srv/bot/config.json", cfg.ConfigFile())
	assert.Equal(t, []string{"/a", "/b"}, cfg.ModulePaths)
	assert.False(t, cfg.ConfigWatch)
	assert.Equal(t, 500*time.Millisecond, cfg.ConfigWatchInterval)
	assert.Zero(t, cfg.ConfigBackups)
}

func TestParseRejectsNegativeBackups(t *testing.T) {
	t.Setenv("CONFIG_BACKUPS", "-1")
	_, err := Parse()
	assert.Error(t, err)
}
