package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "capcut", cfg.Profile)
	assert.Equal(t, 500*time.Millisecond, cfg.DeleteRetryPause)
	assert.True(t, cfg.Journal)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
install_root: D:\Apps\CapCut\Apps
clean_cache: true
delete_retry_pause: 2s
log_level: DEBUG
journal: false
watch_interval: 1h
`), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, `D:\Apps\CapCut\Apps`, cfg.InstallRoot)
	assert.True(t, cfg.CleanCache)
	assert.Equal(t, 2*time.Second, cfg.DeleteRetryPause)
	assert.False(t, cfg.Journal)
	assert.Equal(t, time.Hour, cfg.WatchInterval)
	assert.Equal(t, "capcut", cfg.Profile, "unset keys keep their default")

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lvl)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"malformed yaml", "clean_cache: [", "parse config"},
		{"bad duration", "delete_retry_pause: soon", "parse config"},
		{"negative pause", "delete_retry_pause: -1s", "must not be negative"},
		{"interval too short", "watch_interval: 10ms", "at least 1s"},
		{"bad level", "log_level: chatty", "log_level"},
		{"empty profile", "profile: \"\"", "profile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := Load(path)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.CleanCache = true
	cfg.DownloadDir = "/tmp/installers"

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
