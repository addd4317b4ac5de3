package profile

import (
	"path/filepath"

	"github.com/eliteGoblin/focusd/version_guard/internal/domain"
)

// CapCutProfile implements AppProfile for the CapCut desktop editor.
type CapCutProfile struct {
	appRoot     string
	installRoot string
}

// NewCapCutProfile creates the CapCut profile below a local app data directory.
func NewCapCutProfile(localAppData string) *CapCutProfile {
	appRoot := filepath.Join(localAppData, "CapCut")
	return &CapCutProfile{
		appRoot:     appRoot,
		installRoot: filepath.Join(appRoot, "Apps"),
	}
}

// NewCapCutProfileWithRoots creates a CapCut profile with explicit roots
// (config overrides and tests).
func NewCapCutProfileWithRoots(appRoot, installRoot string) *CapCutProfile {
	if installRoot == "" {
		installRoot = filepath.Join(appRoot, "Apps")
	}
	return &CapCutProfile{appRoot: appRoot, installRoot: installRoot}
}

func (p *CapCutProfile) ID() string {
	return "capcut"
}

func (p *CapCutProfile) Name() string {
	return "CapCut"
}

// ProcessNames returns the CapCut executables that hold the install open.
func (p *CapCutProfile) ProcessNames() []string {
	return []string{
		"CapCut",
		"CapCutService",
	}
}

func (p *CapCutProfile) AppRoot() string {
	return p.appRoot
}

func (p *CapCutProfile) InstallRoot() string {
	return p.installRoot
}

// ConfigFiles returns the files the launcher and updater read to decide
// whether a newer build should be fetched.
func (p *CapCutProfile) ConfigFiles() []domain.ScopedPath {
	return []domain.ScopedPath{
		// Launcher state, records last_version
		{Scope: domain.ScopeInstallRoot, Rel: "configure.ini"},

		// Product manifest compared against the update feed
		{Scope: domain.ScopeInstallRoot, Rel: "ProductInfo.xml"},

		// Per-version copy shipped by newer builds
		{Scope: domain.ScopeVersion, Rel: "configure.ini"},
	}
}

// CacheDirs returns cache locations, shared and version-scoped.
func (p *CapCutProfile) CacheDirs() []domain.ScopedPath {
	return []domain.ScopedPath{
		{Scope: domain.ScopeAppRoot, Rel: "User Data/Cache"},
		{Scope: domain.ScopeAppRoot, Rel: "User Data/Temp"},
		{Scope: domain.ScopeVersion, Rel: "Cache"},
	}
}

// UpdaterEntryPoints returns the updater executable and the staging
// directory it creates at startup.
func (p *CapCutProfile) UpdaterEntryPoints() []domain.UpdaterEntryPoint {
	return []domain.UpdaterEntryPoint{
		{
			Path: domain.ScopedPath{Scope: domain.ScopeAppRoot, Rel: "User Data/Download/update.exe"},
			Kind: domain.BlockerFile,
		},
		{
			Path: domain.ScopedPath{Scope: domain.ScopeAppRoot, Rel: "User Data/Download/Update"},
			Kind: domain.BlockerDirectory,
		},
	}
}

// Ensure CapCutProfile implements AppProfile.
var _ AppProfile = (*CapCutProfile)(nil)
