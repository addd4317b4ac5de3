// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"os"
	"path/filepath"
)

// FakeCapCut creates a directory structure mimicking a CapCut installation
// below a stand-in for %LOCALAPPDATA%.
type FakeCapCut struct {
	LocalAppData string
}

// NewFakeCapCut creates a new fake CapCut structure generator.
func NewFakeCapCut(localAppData string) *FakeCapCut {
	return &FakeCapCut{LocalAppData: localAppData}
}

// AppRoot is <LocalAppData>/CapCut.
func (f *FakeCapCut) AppRoot() string {
	return filepath.Join(f.LocalAppData, "CapCut")
}

// InstallRoot is <AppRoot>/Apps.
func (f *FakeCapCut) InstallRoot() string {
	return filepath.Join(f.AppRoot(), "Apps")
}

// VersionPath returns the directory for one installed version.
func (f *FakeCapCut) VersionPath(name string) string {
	return filepath.Join(f.InstallRoot(), name)
}

// UpdaterPath is the updater executable the blocker replaces.
func (f *FakeCapCut) UpdaterPath() string {
	return filepath.Join(f.AppRoot(), "User Data", "Download", "update.exe")
}

// UpdateDir is the staging directory the blocker replaces.
func (f *FakeCapCut) UpdateDir() string {
	return filepath.Join(f.AppRoot(), "User Data", "Download", "Update")
}

// ConfigPath is the launcher configuration in the install root.
func (f *FakeCapCut) ConfigPath() string {
	return filepath.Join(f.InstallRoot(), "configure.ini")
}

// Create lays out the given versions with launcher config, caches and a
// live updater.
func (f *FakeCapCut) Create(versions ...string) error {
	files := map[string]string{}
	files[f.ConfigPath()] = "[General]\nlast_version=" + last(versions) + "\n"
	files[filepath.Join(f.InstallRoot(), "ProductInfo.xml")] = "<ProductInfo/>\n"
	files[filepath.Join(f.AppRoot(), "User Data", "Cache", "blob.bin")] = "cache"
	files[filepath.Join(f.AppRoot(), "User Data", "Temp", "scratch.tmp")] = "tmp"
	files[f.UpdaterPath()] = "MZ updater"
	for _, v := range versions {
		files[filepath.Join(f.VersionPath(v), "CapCut.exe")] = "MZ " + v
		files[filepath.Join(f.VersionPath(v), "configure.ini")] = "[Version]\nname=" + v + "\n"
		files[filepath.Join(f.VersionPath(v), "Cache", "effects.bin")] = "effects"
	}

	for path, content := range files {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return os.MkdirAll(filepath.Join(f.UpdateDir(), "pending"), 0o755)
}

// VersionExists checks if a version directory exists.
func (f *FakeCapCut) VersionExists(name string) bool {
	_, err := os.Stat(f.VersionPath(name))
	return err == nil
}

// Installed lists the version directory names present on disk.
func (f *FakeCapCut) Installed() []string {
	entries, err := os.ReadDir(f.InstallRoot())
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names
}

// Cleanup restores write permission so the tree can be removed, then
// removes it.
func (f *FakeCapCut) Cleanup() error {
	_ = filepath.Walk(f.AppRoot(), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			_ = os.Chmod(path, 0o755)
		} else {
			_ = os.Chmod(path, 0o644)
		}
		return nil
	})
	return os.RemoveAll(f.AppRoot())
}

func last(vs []string) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[len(vs)-1]
}
