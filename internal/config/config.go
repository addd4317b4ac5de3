// Package config loads the verguard YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/version_guard/internal/profile"
	"github.com/eliteGoblin/focusd/version_guard/internal/usecase"
)

// DefaultWatchInterval is how often the watch loop verifies protection.
const DefaultWatchInterval = 10 * time.Minute

// Configuration holds shell-level options. The core components receive
// only the values they need.
type Configuration struct {
	Profile          string        `yaml:"profile"`
	AppRoot          string        `yaml:"app_root,omitempty"`
	InstallRoot      string        `yaml:"install_root,omitempty"`
	CleanCache       bool          `yaml:"clean_cache"`
	DeleteRetryPause time.Duration `yaml:"delete_retry_pause"`
	LogLevel         string        `yaml:"log_level"`
	Journal          bool          `yaml:"journal"`
	WatchInterval    time.Duration `yaml:"watch_interval"`
	DownloadDir      string        `yaml:"download_dir,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Configuration {
	return &Configuration{
		Profile:          profile.DefaultProfileID,
		DeleteRetryPause: usecase.DefaultRetryPause,
		LogLevel:         "info",
		Journal:          true,
		WatchInterval:    DefaultWatchInterval,
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Configuration, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory.
func Save(path string, cfg *Configuration) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate rejects values the components cannot work with.
func (c *Configuration) Validate() error {
	if c.Profile == "" {
		return errors.New("profile must not be empty")
	}
	if c.DeleteRetryPause < 0 {
		return fmt.Errorf("delete_retry_pause must not be negative, got %s", c.DeleteRetryPause)
	}
	if c.WatchInterval < time.Second {
		return fmt.Errorf("watch_interval must be at least 1s, got %s", c.WatchInterval)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c *Configuration) Level() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}
