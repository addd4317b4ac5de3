package main

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/version_guard/internal/config"
	"github.com/eliteGoblin/focusd/version_guard/internal/domain"
	"github.com/eliteGoblin/focusd/version_guard/internal/infra"
	"github.com/eliteGoblin/focusd/version_guard/internal/profile"
	"github.com/eliteGoblin/focusd/version_guard/internal/usecase"
)

// app wires the components for one command invocation.
type app struct {
	cfg      *config.Configuration
	layout   *infra.Layout
	logger   *zap.Logger
	profile  domain.Profile
	probe    *infra.ProcessManagerImpl
	scanner  *usecase.ScannerImpl
	engine   *usecase.ProtectorImpl
	verifier *usecase.VerifierImpl
}

// newApp loads configuration and builds the component graph. When
// fileLogging is set, logs go to the data dir instead of the console.
func newApp(fileLogging bool) (*app, error) {
	layout := infra.DetectLayout()

	path := configPath
	if path == "" {
		path = layout.ConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	applyFlags(cfg)

	level, _ := cfg.Level()
	if verbose {
		level = zapcore.DebugLevel
	}
	var logger *zap.Logger
	if fileLogging {
		logger = createFileLogger(layout, level)
	} else {
		logger = createConsoleLogger(level)
	}

	p, err := resolveProfile(cfg, layout)
	if err != nil {
		return nil, err
	}

	fsm := infra.NewFileSystemManager()
	probe := infra.NewProcessManager(logger)
	scanner := usecase.NewScanner(fsm, logger)
	engine := usecase.NewProtector(p, probe, fsm, usecase.ProtectorConfig{RetryPause: cfg.DeleteRetryPause}, logger)

	return &app{
		cfg:      cfg,
		layout:   layout,
		logger:   logger,
		profile:  p,
		probe:    probe,
		scanner:  scanner,
		engine:   engine,
		verifier: usecase.NewVerifier(p, scanner, fsm, logger),
	}, nil
}

func applyFlags(cfg *config.Configuration) {
	if profileID != "" {
		cfg.Profile = profileID
	}
	if installRoot != "" {
		cfg.InstallRoot = installRoot
	}
	if appRoot != "" {
		cfg.AppRoot = appRoot
	}
}

func resolveProfile(cfg *config.Configuration, layout *infra.Layout) (domain.Profile, error) {
	registry := profile.NewRegistry(layout.LocalAppData)
	if cfg.Profile == profile.DefaultProfileID && (cfg.AppRoot != "" || cfg.InstallRoot != "") {
		root := cfg.AppRoot
		if root == "" {
			root = profile.NewCapCutProfile(layout.LocalAppData).AppRoot()
		}
		registry.Register(profile.NewCapCutProfileWithRoots(root, cfg.InstallRoot))
	}
	return registry.Lookup(cfg.Profile)
}

// openJournal returns nil when the journal is disabled.
func (a *app) openJournal() (*infra.EncryptedJournal, error) {
	if !a.cfg.Journal {
		return nil, nil
	}
	if err := a.layout.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return infra.OpenJournal(a.layout.DataDir, infra.DefaultKeyProvider(a.layout.DataDir))
}

// record appends a run to the journal; failures are logged only.
func (a *app) record(result *domain.ProtectionResult) {
	j, err := a.openJournal()
	if err != nil {
		a.logger.Warn("journal unavailable", zap.Error(err))
		return
	}
	if j == nil {
		return
	}
	defer j.Close()
	if _, err := j.Append(domain.NewRunRecord(a.profile.ID, result)); err != nil {
		a.logger.Warn("failed to journal run", zap.Error(err))
	}
}

func (a *app) downloadDir() string {
	if a.cfg.DownloadDir != "" {
		return a.cfg.DownloadDir
	}
	return a.layout.DownloadDir
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func createConsoleLogger(level zapcore.Level) *zap.Logger {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	if level > zapcore.DebugLevel {
		config.DisableStacktrace = true
	}
	logger, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func createFileLogger(layout *infra.Layout, level zapcore.Level) *zap.Logger {
	if err := layout.EnsureDataDir(); err != nil {
		return createConsoleLogger(level)
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.OutputPaths = []string{layout.LogPath}
	config.ErrorOutputPaths = []string{layout.LogPath}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}
