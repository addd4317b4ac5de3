package infra

import (
	"os"
	"path/filepath"
)

const (
	// DataDirName is the directory verguard keeps its own state in.
	DataDirName = "VersionGuard"

	configFileName  = "config.yaml"
	logFileName     = "verguard.log"
	downloadDirName = "Downloads"
)

// Layout holds the per-user directories verguard works with.
type Layout struct {
	LocalAppData string // %LOCALAPPDATA%, or the OS user cache dir elsewhere
	DataDir      string // journal, key, config and logs
	DownloadDir  string // archived installers
	ConfigPath   string
	LogPath      string
}

// DetectLayout resolves the layout for the current user. LOCALAPPDATA wins
// when set; otherwise os.UserCacheDir is used, then the temp dir.
func DetectLayout() *Layout {
	return LayoutFor(localAppData())
}

// LayoutFor builds a layout below an explicit local app data directory.
func LayoutFor(localAppData string) *Layout {
	dataDir := filepath.Join(localAppData, DataDirName)
	return &Layout{
		LocalAppData: localAppData,
		DataDir:      dataDir,
		DownloadDir:  filepath.Join(dataDir, downloadDirName),
		ConfigPath:   filepath.Join(dataDir, configFileName),
		LogPath:      filepath.Join(dataDir, logFileName),
	}
}

func localAppData() string {
	if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
		return dir
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	return os.TempDir()
}

// EnsureDataDir creates the data directory with owner-only access.
func (l *Layout) EnsureDataDir() error {
	return os.MkdirAll(l.DataDir, 0o700)
}
