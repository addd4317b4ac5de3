// Package usecase contains application business logic.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/version_guard/internal/domain"
)

// DefaultRetryPause is the wait before the single retry of a failed removal.
const DefaultRetryPause = 500 * time.Millisecond

// ProtectorConfig tunes the protection engine.
type ProtectorConfig struct {
	// RetryPause is how long to wait before retrying a failed version removal.
	RetryPause time.Duration
}

// DefaultProtectorConfig returns the default engine configuration.
func DefaultProtectorConfig() ProtectorConfig {
	return ProtectorConfig{RetryPause: DefaultRetryPause}
}

// ProtectorImpl implements domain.ProtectionEngine.
type ProtectorImpl struct {
	profile   domain.Profile
	probe     domain.ProcessProbe
	fsManager domain.FileSystemManager
	config    ProtectorConfig
	sleep     func(time.Duration)
	logger    *zap.Logger
}

// NewProtector creates a protection engine for one application profile.
func NewProtector(
	profile domain.Profile,
	probe domain.ProcessProbe,
	fsm domain.FileSystemManager,
	config ProtectorConfig,
	logger *zap.Logger,
) *ProtectorImpl {
	if config.RetryPause < 0 {
		config.RetryPause = 0
	}
	return &ProtectorImpl{
		profile:   profile,
		probe:     probe,
		fsManager: fsm,
		config:    config,
		sleep:     time.Sleep,
		logger:    logger,
	}
}

type protectionStep struct {
	name domain.StepName
	run  func(ctx context.Context, result *domain.ProtectionResult) domain.StepOutcome
}

// Protect runs the four protection steps for target. all is every version
// directory the scanner found, duplicates included.
func (p *ProtectorImpl) Protect(ctx context.Context, target domain.ProtectionTarget, all []domain.InstalledVersion) *domain.ProtectionResult {
	start := time.Now()
	result := &domain.ProtectionResult{
		Target:    target,
		StartedAt: start,
	}

	log := p.logger.With(
		zap.String("profile", p.profile.ID),
		zap.String("version", target.Version.Name))

	if err := p.checkTarget(target); err != nil {
		log.Error("protection aborted", zap.Error(err))
		return p.abort(result, err, start)
	}
	if err := ctx.Err(); err != nil {
		log.Warn("protection cancelled before start", zap.Error(err))
		return p.abort(result, err, start)
	}

	// Re-probe right before anything is deleted.
	if state := p.probe.Probe(ctx, p.profile.ProcessNames...); !state.Safe() &&
		!(state == domain.RunStateUnknown && target.Options.AcceptUnknownRunState) {
		err := fmt.Errorf("%w: %w (probe: %s)", domain.ErrFatalProtection, domain.ErrUnsafeToProceed, state)
		log.Warn("protection aborted", zap.String("run_state", string(state)), zap.Error(err))
		return p.abort(result, err, start)
	}

	steps := []protectionStep{
		{domain.StepDeleteVersions, func(ctx context.Context, r *domain.ProtectionResult) domain.StepOutcome {
			return p.deleteOtherVersions(ctx, r, all)
		}},
		{domain.StepCleanCache, p.cleanCache},
		{domain.StepLockConfig, p.lockConfig},
		{domain.StepInstallBlocker, p.installBlockers},
	}

	for i, step := range steps {
		if i > 0 && ctx.Err() != nil {
			for _, rest := range steps[i:] {
				result.Steps = append(result.Steps, domain.StepOutcome{
					Step:   rest.name,
					State:  domain.StepNotRun,
					Detail: "cancelled",
				})
			}
			log.Warn("protection cancelled", zap.String("at_step", string(step.name)))
			break
		}

		outcome := step.run(ctx, result)
		outcome.Step = step.name
		result.Steps = append(result.Steps, outcome)

		fields := []zap.Field{
			zap.String("step", string(step.name)),
			zap.String("state", string(outcome.State)),
			zap.String("detail", outcome.Detail),
		}
		if outcome.Succeeded() {
			log.Info("protection step finished", fields...)
		} else {
			log.Warn("protection step incomplete",
				append(fields, zap.Strings("failed_paths", outcome.FailedPaths))...)
		}
	}

	result.Status = statusOf(result.Steps)
	result.Duration = time.Since(start)

	log.Info("protection finished",
		zap.String("status", string(result.Status)),
		zap.Int("deleted", len(result.Deleted)),
		zap.Int("blockers", len(result.Blockers)),
		zap.Int64("duration_ms", result.Duration.Milliseconds()))

	return result
}

func (p *ProtectorImpl) checkTarget(target domain.ProtectionTarget) error {
	path := target.Version.Path
	if path == "" {
		return fmt.Errorf("%w: empty target path", domain.ErrFatalProtection)
	}
	info, err := p.fsManager.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrTargetVanished, path)
		}
		return fmt.Errorf("%w: %w", domain.ErrFatalProtection, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrTargetVanished, path)
	}
	return nil
}

func (p *ProtectorImpl) abort(result *domain.ProtectionResult, err error, start time.Time) *domain.ProtectionResult {
	result.Err = err
	result.Status = domain.StatusFailed
	for _, name := range domain.ProtectionSteps {
		result.Steps = append(result.Steps, domain.StepOutcome{
			Step:   name,
			State:  domain.StepNotRun,
			Detail: "aborted",
		})
	}
	result.Duration = time.Since(start)
	return result
}

func statusOf(steps []domain.StepOutcome) domain.ProtectionStatus {
	for _, s := range steps {
		switch s.State {
		case domain.StepPartialFailure, domain.StepFailed, domain.StepNotRun:
			return domain.StatusPartial
		}
	}
	return domain.StatusComplete
}

// deleteOtherVersions removes every version directory except the target.
func (p *ProtectorImpl) deleteOtherVersions(ctx context.Context, result *domain.ProtectionResult, all []domain.InstalledVersion) domain.StepOutcome {
	targetPath := filepath.Clean(result.Target.Version.Path)
	installRoot := p.resolve(p.profile.InstallRoot)

	var victims []domain.InstalledVersion
	for _, v := range all {
		if filepath.Clean(v.Path) == targetPath {
			continue
		}
		victims = append(victims, v)
	}

	outcome := domain.StepOutcome{}
	var errs error
	var removed []string
	for _, v := range victims {
		path := filepath.Clean(v.Path)
		if p.resolve(filepath.Dir(path)) != installRoot {
			outcome.FailedPaths = append(outcome.FailedPaths, path)
			errs = multierr.Append(errs, fmt.Errorf("%s is outside %s", path, installRoot))
			continue
		}
		if !p.fsManager.Exists(path) {
			continue
		}

		if err := p.removeWithRetry(ctx, path); err != nil {
			left := p.remainingFiles(path)
			if len(left) == 0 {
				left = []string{path}
			}
			outcome.FailedPaths = append(outcome.FailedPaths, left...)
			errs = multierr.Append(errs, err)
			continue
		}
		removed = append(removed, v.Name)
		result.Deleted = append(result.Deleted, path)
	}

	switch {
	case errs != nil:
		outcome.State = domain.StepPartialFailure
		outcome.Detail = fmt.Sprintf("removed %d of %d version(s): %v", len(removed), len(victims), errs)
	case len(removed) == 0:
		outcome.State = domain.StepAlreadySatisfied
		outcome.Detail = "no other versions installed"
	default:
		outcome.State = domain.StepDone
		outcome.Detail = "removed " + strings.Join(removed, ", ")
	}
	return outcome
}

// resolve follows symlinks in path, falling back to the cleaned path.
func (p *ProtectorImpl) resolve(path string) string {
	if resolved, err := p.fsManager.EvalSymlinks(path); err == nil {
		return resolved
	}
	return filepath.Clean(path)
}

// removeWithRetry retries a failed removal once, after RetryPause.
func (p *ProtectorImpl) removeWithRetry(ctx context.Context, path string) error {
	err := p.forceRemove(path)
	if err == nil {
		return nil
	}

	p.logger.Warn("removal failed, retrying",
		zap.String("path", path),
		zap.Duration("pause", p.config.RetryPause),
		zap.Error(err))

	if ctx.Err() == nil {
		p.sleep(p.config.RetryPause)
	}

	if err := p.forceRemove(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// forceRemove clears read-only markers below path, then removes it.
func (p *ProtectorImpl) forceRemove(path string) error {
	_ = p.fsManager.WalkDir(path, func(fp string, d fs.DirEntry, err error) error {
		if err != nil || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if ro, rerr := p.fsManager.IsReadOnly(fp); rerr == nil && ro {
			if cerr := p.fsManager.ClearReadOnly(fp); cerr != nil {
				p.logger.Debug("could not clear read-only flag",
					zap.String("path", fp),
					zap.Error(cerr))
			}
		}
		return nil
	})
	return p.fsManager.Delete(path)
}

// remainingFiles lists what is left below path after a failed removal.
func (p *ProtectorImpl) remainingFiles(path string) []string {
	var left []string
	_ = p.fsManager.WalkDir(path, func(fp string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			left = append(left, fp)
		}
		return nil
	})
	return left
}

// cleanCache removes the profile's cache directories.
func (p *ProtectorImpl) cleanCache(_ context.Context, result *domain.ProtectionResult) domain.StepOutcome {
	if !result.Target.Options.CleanCache {
		return domain.StepOutcome{State: domain.StepSkipped, Detail: "cache cleaning not requested"}
	}

	outcome := domain.StepOutcome{}
	var errs error
	removed := 0
	for _, dir := range p.profile.ResolveAll(p.profile.CacheDirs, &result.Target.Version) {
		if !p.fsManager.Exists(dir) {
			continue
		}
		if err := p.forceRemove(dir); err != nil {
			outcome.FailedPaths = append(outcome.FailedPaths, dir)
			errs = multierr.Append(errs, err)
			continue
		}
		removed++
	}

	switch {
	case errs != nil:
		outcome.State = domain.StepPartialFailure
		outcome.Detail = fmt.Sprintf("removed %d cache director(ies): %v", removed, errs)
	case removed == 0:
		outcome.State = domain.StepAlreadySatisfied
		outcome.Detail = "no cache present"
	default:
		outcome.State = domain.StepDone
		outcome.Detail = fmt.Sprintf("removed %d cache director(ies)", removed)
	}
	return outcome
}

// lockConfig marks the profile's configuration files read-only.
// File contents are never touched.
func (p *ProtectorImpl) lockConfig(_ context.Context, result *domain.ProtectionResult) domain.StepOutcome {
	outcome := domain.StepOutcome{}
	var errs error
	locked := 0
	for _, path := range p.profile.ResolveAll(p.profile.ConfigFiles, &result.Target.Version) {
		info, err := p.fsManager.Lstat(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err == nil && !info.Mode().IsRegular() {
			err = fmt.Errorf("%s is not a regular file", path)
		}
		if err != nil {
			outcome.FailedPaths = append(outcome.FailedPaths, path)
			errs = multierr.Append(errs, err)
			continue
		}

		if ro, err := p.fsManager.IsReadOnly(path); err == nil && ro {
			continue
		}
		if err := p.fsManager.SetReadOnly(path); err != nil {
			outcome.FailedPaths = append(outcome.FailedPaths, path)
			errs = multierr.Append(errs, err)
			continue
		}
		locked++
	}

	switch {
	case errs != nil:
		outcome.State = domain.StepPartialFailure
		outcome.Detail = fmt.Sprintf("locked %d file(s): %v", locked, errs)
	case locked == 0:
		outcome.State = domain.StepAlreadySatisfied
		outcome.Detail = "configuration already locked"
	default:
		outcome.State = domain.StepDone
		outcome.Detail = fmt.Sprintf("locked %d file(s)", locked)
	}
	return outcome
}

// installBlockers occupies every updater entry point.
func (p *ProtectorImpl) installBlockers(_ context.Context, result *domain.ProtectionResult) domain.StepOutcome {
	outcome := domain.StepOutcome{}
	var errs error
	placed := 0
	for _, ep := range p.profile.EntryPoints {
		path := p.profile.Resolve(ep.Path, &result.Target.Version)
		if path == "" {
			continue
		}

		artifact, changed, err := p.installBlocker(path, ep.Kind)
		if err != nil {
			outcome.FailedPaths = append(outcome.FailedPaths, path)
			errs = multierr.Append(errs, err)
			continue
		}
		result.Blockers = append(result.Blockers, artifact)
		if changed {
			placed++
			p.logger.Info("blocker installed",
				zap.String("path", path),
				zap.String("kind", string(ep.Kind)),
				zap.String("backup", artifact.BackupPath))
		}
	}

	switch {
	case errs != nil:
		outcome.State = domain.StepPartialFailure
		outcome.Detail = fmt.Sprintf("placed %d blocker(s): %v", placed, errs)
	case placed == 0:
		outcome.State = domain.StepAlreadySatisfied
		outcome.Detail = "blockers already in place"
	default:
		outcome.State = domain.StepDone
		outcome.Detail = fmt.Sprintf("placed %d blocker(s)", placed)
	}
	return outcome
}

func (p *ProtectorImpl) installBlocker(path string, kind domain.BlockerKind) (domain.BlockerArtifact, bool, error) {
	artifact := domain.BlockerArtifact{Path: path, Kind: kind}

	ok, err := BlockerInPlace(p.fsManager, path, kind)
	if err != nil {
		return artifact, false, err
	}
	if ok {
		return artifact, false, nil
	}

	info, err := p.fsManager.Lstat(path)
	switch {
	case err == nil && kind == domain.BlockerFile && info.Mode().IsRegular() && info.Size() == 0:
		// Empty placeholder that only lacks the read-only marker.
		return artifact, true, p.fsManager.SetReadOnly(path)
	case err == nil && kind == domain.BlockerDirectory && info.IsDir() && p.isEmptyDir(path):
		return artifact, true, p.fsManager.SetReadOnly(path)
	case err == nil:
		backup, err := p.moveAside(path)
		if err != nil {
			return artifact, false, err
		}
		artifact.BackupPath = backup
	case !errors.Is(err, fs.ErrNotExist):
		return artifact, false, err
	}

	if err := p.fsManager.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return artifact, false, err
	}

	switch kind {
	case domain.BlockerDirectory:
		if err := p.fsManager.Mkdir(path, 0o555); err != nil {
			return artifact, false, err
		}
	default:
		if err := p.fsManager.WriteFile(path, nil, 0o444); err != nil {
			return artifact, false, err
		}
	}
	if err := p.fsManager.SetReadOnly(path); err != nil {
		return artifact, false, err
	}
	return artifact, true, nil
}

func (p *ProtectorImpl) isEmptyDir(path string) bool {
	entries, err := p.fsManager.ReadDir(path)
	return err == nil && len(entries) == 0
}

// moveAside renames path to the first free .bak sibling.
func (p *ProtectorImpl) moveAside(path string) (string, error) {
	backup := path + ".bak"
	for i := 1; p.fsManager.Exists(backup); i++ {
		backup = fmt.Sprintf("%s.bak.%d", path, i)
	}
	if err := p.fsManager.Rename(path, backup); err != nil {
		return "", fmt.Errorf("move %s aside: %w", path, err)
	}
	return backup, nil
}

// Ensure ProtectorImpl implements domain.ProtectionEngine.
var _ domain.ProtectionEngine = (*ProtectorImpl)(nil)
