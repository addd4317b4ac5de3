// Package daemon implements the guard loop that keeps a pinned version pinned.
package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/version_guard/internal/domain"
)

// DefaultVerifyInterval is how often the protected state is re-checked.
const DefaultVerifyInterval = 10 * time.Minute

// PinStore remembers which version was last pinned per profile.
type PinStore interface {
	PinnedVersion(profile string) (string, error)
}

// WatcherConfig holds watch loop configuration.
type WatcherConfig struct {
	VerifyInterval time.Duration // How often to verify (default 10 min)
	Reprotect      bool          // Re-run protection when drift is found
	CleanCache     bool          // Cache option for re-protection runs
	PinnedVersion  string        // Overrides the remembered pin
}

// DefaultWatcherConfig returns default watcher configuration.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		VerifyInterval: DefaultVerifyInterval,
	}
}

// CheckOutcome is what one pass of the loop saw and did.
type CheckOutcome struct {
	State  *domain.ProtectedState
	Result *domain.ProtectionResult // set only when protection was re-run
	Err    error
}

// Watcher periodically verifies the protected state and, when asked to,
// restores it by re-running the engine for the pinned version.
type Watcher struct {
	config   WatcherConfig
	profile  domain.Profile
	verifier domain.StateVerifier
	scanner  domain.VersionScanner
	engine   domain.ProtectionEngine
	probe    domain.ProcessProbe
	journal  domain.RunJournal
	pins     PinStore
	logger   *zap.Logger
}

// NewWatcher creates a new watcher. journal may be nil; when it also
// implements PinStore it supplies the remembered pin.
func NewWatcher(
	config WatcherConfig,
	profile domain.Profile,
	verifier domain.StateVerifier,
	scanner domain.VersionScanner,
	engine domain.ProtectionEngine,
	probe domain.ProcessProbe,
	journal domain.RunJournal,
	logger *zap.Logger,
) *Watcher {
	if config.VerifyInterval <= 0 {
		config.VerifyInterval = DefaultVerifyInterval
	}
	w := &Watcher{
		config:   config,
		profile:  profile,
		verifier: verifier,
		scanner:  scanner,
		engine:   engine,
		probe:    probe,
		journal:  journal,
		logger:   logger,
	}
	if ps, ok := journal.(PinStore); ok {
		w.pins = ps
	}
	return w
}

// Run verifies immediately, then on every tick. It blocks until ctx is
// canceled.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watcher started",
		zap.String("profile", w.profile.ID),
		zap.Duration("interval", w.config.VerifyInterval),
		zap.Bool("reprotect", w.config.Reprotect))

	w.Check(ctx)

	ticker := time.NewTicker(w.config.VerifyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopping")
			return ctx.Err()
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}

// Check runs a single verification pass.
func (w *Watcher) Check(ctx context.Context) CheckOutcome {
	state, err := w.verifier.Verify(ctx)
	if err != nil {
		if domain.IsNotInstalled(err) {
			w.logger.Info("application not installed", zap.Error(err))
		} else {
			w.logger.Error("verification failed", zap.Error(err))
		}
		return CheckOutcome{Err: err}
	}

	out := CheckOutcome{State: state}
	if state.Protected() {
		w.logger.Debug("protection intact", zap.Int("versions", len(state.RemainingVersions)))
		return out
	}

	w.logger.Warn("protection drift detected",
		zap.Int("versions", len(state.RemainingVersions)),
		zap.Strings("unlocked_configs", state.UnlockedConfigs),
		zap.Strings("missing_blockers", state.MissingBlockers))

	if w.config.Reprotect {
		out.Result = w.reprotect(ctx)
	}
	return out
}

func (w *Watcher) reprotect(ctx context.Context) *domain.ProtectionResult {
	report, err := w.scanner.Scan(ctx, w.profile.InstallRoot)
	if err != nil {
		w.logger.Warn("re-protect skipped: scan failed", zap.Error(err))
		return nil
	}

	target, ok := w.pinnedTarget(report)
	if !ok {
		return nil
	}

	if state := w.probe.Probe(ctx, w.profile.ProcessNames...); !state.Safe() {
		w.logger.Info("re-protect deferred: application may be running",
			zap.String("run_state", string(state)))
		return nil
	}

	result := w.engine.Protect(ctx, domain.ProtectionTarget{
		Version: target,
		Options: domain.ProtectionOptions{CleanCache: w.config.CleanCache},
	}, report.All())

	w.logger.Info("re-protect finished",
		zap.String("version", target.Name),
		zap.String("status", string(result.Status)),
		zap.Error(result.Error()))

	if w.journal != nil {
		if _, err := w.journal.Append(domain.NewRunRecord(w.profile.ID, result)); err != nil {
			w.logger.Warn("failed to journal run", zap.Error(err))
		}
	}
	return result
}

// pinnedTarget finds the version to keep: the configured pin, else the
// remembered pin, else the only version on disk.
func (w *Watcher) pinnedTarget(report *domain.ScanReport) (domain.InstalledVersion, bool) {
	pin := w.config.PinnedVersion
	if pin == "" && w.pins != nil {
		remembered, err := w.pins.PinnedVersion(w.profile.ID)
		if err != nil {
			w.logger.Warn("failed to read remembered pin", zap.Error(err))
		}
		pin = remembered
	}

	if pin == "" {
		if all := report.All(); len(all) == 1 {
			return all[0], true
		}
		w.logger.Warn("re-protect skipped: pinned version unknown",
			zap.Strings("versions", names(report.All())))
		return domain.InstalledVersion{}, false
	}

	for _, v := range report.Versions {
		if v.Name == pin || v.ID.String() == pin || v.ID.Core() == pin {
			return v, true
		}
	}
	w.logger.Warn("re-protect skipped: pinned version no longer installed",
		zap.String("pinned", pin),
		zap.Strings("versions", names(report.All())))
	return domain.InstalledVersion{}, false
}

func names(vs []domain.InstalledVersion) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Name
	}
	return out
}
