package usecase

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/version_guard/internal/domain"
)

// VerifierImpl implements domain.StateVerifier. It never modifies the disk.
type VerifierImpl struct {
	profile   domain.Profile
	scanner   domain.VersionScanner
	fsManager domain.FileSystemManager
	logger    *zap.Logger
}

// NewVerifier creates a protected-state verifier.
func NewVerifier(profile domain.Profile, scanner domain.VersionScanner, fsm domain.FileSystemManager, logger *zap.Logger) *VerifierImpl {
	return &VerifierImpl{
		profile:   profile,
		scanner:   scanner,
		fsManager: fsm,
		logger:    logger,
	}
}

// Verify checks that exactly one version remains, configuration files are
// read-only and blockers occupy every updater entry point.
func (v *VerifierImpl) Verify(ctx context.Context) (*domain.ProtectedState, error) {
	report, err := v.scanner.Scan(ctx, v.profile.InstallRoot)
	if err != nil {
		return nil, err
	}

	state := &domain.ProtectedState{
		Root:              report.Root,
		RemainingVersions: report.All(),
		CheckedAt:         time.Now(),
	}

	// Version-scoped paths are only checked when the pin is unambiguous.
	var pinned *domain.InstalledVersion
	if p, ok := state.Pinned(); ok {
		pinned = &p
	}

	for _, path := range v.profile.ResolveAll(v.profile.ConfigFiles, pinned) {
		if _, err := v.fsManager.Lstat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		ro, err := v.fsManager.IsReadOnly(path)
		if err != nil || !ro {
			state.UnlockedConfigs = append(state.UnlockedConfigs, path)
		}
	}

	for _, ep := range v.profile.EntryPoints {
		path := v.profile.Resolve(ep.Path, pinned)
		if path == "" {
			continue
		}
		ok, err := BlockerInPlace(v.fsManager, path, ep.Kind)
		if err != nil || !ok {
			state.MissingBlockers = append(state.MissingBlockers, path)
		}
	}

	v.logger.Debug("verification completed",
		zap.String("profile", v.profile.ID),
		zap.Bool("protected", state.Protected()),
		zap.Int("versions", len(state.RemainingVersions)),
		zap.Int("unlocked_configs", len(state.UnlockedConfigs)),
		zap.Int("missing_blockers", len(state.MissingBlockers)))

	return state, nil
}

// Ensure VerifierImpl implements domain.StateVerifier.
var _ domain.StateVerifier = (*VerifierImpl)(nil)
