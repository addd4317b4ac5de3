// Package profile implements the Strategy pattern for app-specific protection rules.
// Each protectable application has its own profile describing where it lives,
// which files gate its updater, and where the updater materializes.
package profile

import (
	"github.com/eliteGoblin/focusd/version_guard/internal/domain"
)

// AppProfile defines the strategy interface for pinning an application.
type AppProfile interface {
	// ID returns unique identifier (e.g., "capcut").
	ID() string

	// Name returns human-readable name for display.
	Name() string

	// ProcessNames returns executable names checked before any destructive step.
	// Names are matched case-insensitively, with or without ".exe".
	ProcessNames() []string

	// AppRoot is the application's data root (e.g. %LOCALAPPDATA%\CapCut).
	AppRoot() string

	// InstallRoot holds one subdirectory per installed version.
	InstallRoot() string

	// ConfigFiles are the files consulted to decide whether an update is due.
	// Only their permission bits are ever touched.
	ConfigFiles() []domain.ScopedPath

	// CacheDirs are removed when cache cleaning is requested.
	CacheDirs() []domain.ScopedPath

	// UpdaterEntryPoints are occupied by blockers.
	UpdaterEntryPoints() []domain.UpdaterEntryPoint
}

// ToProfile converts an AppProfile to a domain.Profile entity.
func ToProfile(ap AppProfile) domain.Profile {
	return domain.Profile{
		ID:           ap.ID(),
		Name:         ap.Name(),
		ProcessNames: ap.ProcessNames(),
		AppRoot:      ap.AppRoot(),
		InstallRoot:  ap.InstallRoot(),
		ConfigFiles:  ap.ConfigFiles(),
		CacheDirs:    ap.CacheDirs(),
		EntryPoints:  ap.UpdaterEntryPoints(),
	}
}
