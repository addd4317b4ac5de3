package domain

import (
	"context"
	"io/fs"
	"path/filepath"
)

// ProcessProbe answers whether the target application is running.
// Implementation: uses gopsutil for cross-platform support.
type ProcessProbe interface {
	// Probe never fails: enumeration errors yield RunStateUnknown.
	Probe(ctx context.Context, names ...string) RunState
}

// FileSystemManager handles filesystem operations.
// The permission methods hide the platform's read-only model
// (mode bits on Unix, the read-only attribute on Windows).
type FileSystemManager interface {
	// Exists checks if a path exists without following symlinks.
	Exists(path string) bool

	Lstat(path string) (fs.FileInfo, error)
	// EvalSymlinks resolves symlinks and junctions in path.
	EvalSymlinks(path string) (string, error)
	ReadDir(path string) ([]fs.DirEntry, error)
	WalkDir(root string, fn fs.WalkDirFunc) error

	// Delete removes a file or directory recursively.
	Delete(path string) error
	Rename(oldPath, newPath string) error
	MkdirAll(path string, perm fs.FileMode) error
	Mkdir(path string, perm fs.FileMode) error
	WriteFile(path string, data []byte, perm fs.FileMode) error

	SetReadOnly(path string) error
	ClearReadOnly(path string) error
	IsReadOnly(path string) (bool, error)
}

// VersionScanner discovers installed versions under an install root.
type VersionScanner interface {
	Scan(ctx context.Context, root string) (*ScanReport, error)
}

// ProtectionEngine runs the protection sequence for one target.
type ProtectionEngine interface {
	Protect(ctx context.Context, target ProtectionTarget, all []InstalledVersion) *ProtectionResult
}

// StateVerifier re-checks the protected-state invariant without mutating anything.
type StateVerifier interface {
	Verify(ctx context.Context) (*ProtectedState, error)
}

// DownloadManager fetches a curated installer. The core never calls it.
type DownloadManager interface {
	Download(ctx context.Context, entry ArchiveEntry) (path string, err error)
}

// RunJournal keeps a history of protection runs.
// Implementation: SQLCipher encrypted SQLite database.
type RunJournal interface {
	Append(record RunRecord) (int64, error)
	Recent(limit int) ([]RunRecord, error)
	Close() error
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// PathScope says which directory a profile path is relative to.
type PathScope string

const (
	ScopeAppRoot     PathScope = "app_root"
	ScopeInstallRoot PathScope = "install_root"
	ScopeVersion     PathScope = "version" // the selected version's directory
)

// ScopedPath is a slash-separated relative path anchored at a scope.
type ScopedPath struct {
	Scope PathScope
	Rel   string
}

// UpdaterEntryPoint is a path the updater expects to own.
type UpdaterEntryPoint struct {
	Path ScopedPath
	Kind BlockerKind
}

// Profile describes one protectable application.
type Profile struct {
	ID           string
	Name         string
	ProcessNames []string
	AppRoot      string
	InstallRoot  string
	ConfigFiles  []ScopedPath
	CacheDirs    []ScopedPath
	EntryPoints  []UpdaterEntryPoint
}

// Resolve turns a scoped path into an absolute one. Version-scoped paths
// need a selected version; without one they resolve to "".
func (p Profile) Resolve(sp ScopedPath, v *InstalledVersion) string {
	rel := filepath.FromSlash(sp.Rel)
	switch sp.Scope {
	case ScopeAppRoot:
		return filepath.Join(p.AppRoot, rel)
	case ScopeInstallRoot:
		return filepath.Join(p.InstallRoot, rel)
	case ScopeVersion:
		if v == nil || v.Path == "" {
			return ""
		}
		return filepath.Join(v.Path, rel)
	}
	return ""
}

// ResolveAll resolves paths, dropping the ones that cannot be resolved.
func (p Profile) ResolveAll(paths []ScopedPath, v *InstalledVersion) []string {
	out := make([]string, 0, len(paths))
	for _, sp := range paths {
		if abs := p.Resolve(sp, v); abs != "" {
			out = append(out, abs)
		}
	}
	return out
}
