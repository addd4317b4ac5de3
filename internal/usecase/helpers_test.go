package usecase

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/version_guard/internal/domain"
	"github.com/eliteGoblin/focusd/version_guard/internal/infra"
	"github.com/eliteGoblin/focusd/version_guard/internal/profile"
)

// mockProbe implements domain.ProcessProbe for testing
type mockProbe struct {
	mu     sync.Mutex
	state  domain.RunState
	calls  int
	lastAt []string
}

func (m *mockProbe) Probe(ctx context.Context, names ...string) domain.RunState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastAt = names
	if m.state == "" {
		return domain.RunStateNotRunning
	}
	return m.state
}

// faultyFS wraps the real filesystem and fails selected operations.
type faultyFS struct {
	domain.FileSystemManager

	deleteFails   map[string]int // path -> remaining failures
	readOnlyFails map[string]bool
	renameFails   map[string]bool
	deletes       []string
}

func newFaultyFS() *faultyFS {
	return &faultyFS{
		FileSystemManager: infra.NewFileSystemManager(),
		deleteFails:       map[string]int{},
		readOnlyFails:     map[string]bool{},
		renameFails:       map[string]bool{},
	}
}

var errInjected = errors.New("injected failure")

func (f *faultyFS) Delete(path string) error {
	f.deletes = append(f.deletes, path)
	if n := f.deleteFails[path]; n != 0 {
		if n > 0 {
			f.deleteFails[path] = n - 1
		}
		return &fs.PathError{Op: "remove", Path: path, Err: errInjected}
	}
	return f.FileSystemManager.Delete(path)
}

func (f *faultyFS) SetReadOnly(path string) error {
	if f.readOnlyFails[path] {
		return &fs.PathError{Op: "chmod", Path: path, Err: errInjected}
	}
	return f.FileSystemManager.SetReadOnly(path)
}

func (f *faultyFS) Rename(oldPath, newPath string) error {
	if f.renameFails[oldPath] {
		return &os.LinkError{Op: "rename", Old: oldPath, New: newPath, Err: errInjected}
	}
	return f.FileSystemManager.Rename(oldPath, newPath)
}

// capcutLayout builds a CapCut-like tree under a temp dir.
type capcutLayout struct {
	localAppData string
	profile      domain.Profile
}

func newCapCutLayout(t *testing.T, versions ...string) *capcutLayout {
	t.Helper()

	base := t.TempDir()
	p := profile.ToProfile(profile.NewCapCutProfile(base))
	l := &capcutLayout{localAppData: base, profile: p}

	writeFile(t, filepath.Join(p.InstallRoot, "configure.ini"), "last_version=1.0.0\n")
	writeFile(t, filepath.Join(p.InstallRoot, "ProductInfo.xml"), "<ProductInfo/>")
	writeFile(t, filepath.Join(p.AppRoot, "User Data", "Download", "update.exe"), "MZ updater")
	writeFile(t, filepath.Join(p.AppRoot, "User Data", "Cache", "blob.bin"), "cache")

	for _, v := range versions {
		dir := filepath.Join(p.InstallRoot, v)
		writeFile(t, filepath.Join(dir, "CapCut.exe"), "MZ "+v)
		writeFile(t, filepath.Join(dir, "configure.ini"), "version="+v+"\n")
		writeFile(t, filepath.Join(dir, "Resources", "data.pak"), strings.Repeat("x", 64))
	}
	return l
}

func (l *capcutLayout) versionPath(name string) string {
	return filepath.Join(l.profile.InstallRoot, name)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// linkInstallRoot points a symlink elsewhere at the install root and makes
// the profile use it.
func (l *capcutLayout) linkInstallRoot(t *testing.T) string {
	t.Helper()
	link := filepath.Join(t.TempDir(), "CapCut")
	if err := os.Symlink(l.profile.InstallRoot, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	l.profile.InstallRoot = link
	return link
}

func scanAll(t *testing.T, fsm domain.FileSystemManager, root string) *domain.ScanReport {
	t.Helper()
	report, err := NewScanner(fsm, nopLogger()).Scan(context.Background(), root)
	require.NoError(t, err)
	return report
}

func versionNames(vs []domain.InstalledVersion) []string {
	names := make([]string, len(vs))
	for i, v := range vs {
		names[i] = v.Name
	}
	return names
}
