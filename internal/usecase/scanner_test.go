package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/version_guard/internal/domain"
	"github.com/eliteGoblin/focusd/version_guard/internal/infra"
)

func nopLogger() *zap.Logger {
	return zap.NewNop()
}

func TestParseVersionID(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantCore   string
		wantQual   string
		wantErr    bool
	}{
		{"triple", "2.5.4", "2.5.4", "", false},
		{"four components", "3.9.0.1234", "3.9.0.1234", "", false},
		{"two components", "1.5", "1.5.0", "", false},
		{"beta qualifier", "3.9.0-beta", "3.9.0", "-beta", false},
		{"build metadata", "4.0.0+build.7", "4.0.0", "+build.7", false},
		{"leading zeros", "01.02.003", "1.2.3", "", false},
		{"not a version", "not-a-version", "", "", true},
		{"single component", "10", "", "", true},
		{"v prefix", "v1.2.3", "", "", true},
		{"trailing dot", "1.2.", "", "", true},
		{"empty", "", "", "", true},
		{"dangling dash", "1.2.3-", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseVersionID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCore, id.Core())
			assert.Equal(t, tt.wantQual, id.Qualifier)
		})
	}
}

func TestParseVersionID_NumericOrdering(t *testing.T) {
	assert.Equal(t, -1, MustParseVersionID("9.0.0").Compare(MustParseVersionID("10.0.0")))
	assert.Equal(t, -1, MustParseVersionID("2.10.0").Compare(MustParseVersionID("2.100.0")))
	assert.Equal(t, 0, MustParseVersionID("3.9.0-beta").Compare(MustParseVersionID("3.9.0")))
	assert.Equal(t, 1, MustParseVersionID("1.2.0.1").Compare(MustParseVersionID("1.2")))
	assert.True(t, MustParseVersionID("2.5.4.0").Equal(MustParseVersionID("2.5.4")))
}

func TestScan_OrdersNumerically(t *testing.T) {
	l := newCapCutLayout(t, "2.9.0", "1.5.0", "10.0.0", "3.2.0")

	report := scanAll(t, infra.NewFileSystemManager(), l.profile.InstallRoot)

	assert.Equal(t, []string{"1.5.0", "2.9.0", "3.2.0", "10.0.0"}, versionNames(report.Versions))
	assert.Empty(t, report.Duplicates)
	assert.Empty(t, report.Warnings)
	for _, v := range report.Versions {
		assert.Equal(t, filepath.Join(l.profile.InstallRoot, v.Name), v.Path)
		assert.Greater(t, v.SizeBytes, int64(0))
	}
}

func TestScan_ToleratesMalformedNames(t *testing.T) {
	l := newCapCutLayout(t, "2.5.4", "3.9.0-beta")
	require.NoError(t, os.MkdirAll(filepath.Join(l.profile.InstallRoot, "not-a-version"), 0o755))

	report := scanAll(t, infra.NewFileSystemManager(), l.profile.InstallRoot)

	require.Len(t, report.Versions, 2)
	assert.Equal(t, "2.5.4", report.Versions[0].Name)
	assert.Equal(t, "3.9.0-beta", report.Versions[1].Name)
	assert.Equal(t, "-beta", report.Versions[1].ID.Qualifier)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "not-a-version")
}

func TestScan_IgnoresFilesAtRoot(t *testing.T) {
	l := newCapCutLayout(t, "2.5.4")

	report := scanAll(t, infra.NewFileSystemManager(), l.profile.InstallRoot)

	assert.Len(t, report.Versions, 1)
	assert.Empty(t, report.Warnings, "configure.ini and ProductInfo.xml are not versions")
}

func TestScan_ReportsDuplicates(t *testing.T) {
	l := newCapCutLayout(t, "2.5.4", "2.5.4-hotfix", "3.0.0")

	report := scanAll(t, infra.NewFileSystemManager(), l.profile.InstallRoot)

	assert.Equal(t, []string{"2.5.4", "3.0.0"}, versionNames(report.Versions))
	require.Len(t, report.Duplicates, 1)
	assert.Equal(t, "2.5.4-hotfix", report.Duplicates[0].Name)
	assert.Len(t, report.All(), 3)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "duplicate version 2.5.4")
}

func TestScan_EmptyRoot(t *testing.T) {
	root := t.TempDir()

	report := scanAll(t, infra.NewFileSystemManager(), root)

	assert.Empty(t, report.Versions)
	assert.Equal(t, root, report.Root)
}

func TestScan_NotInstalled(t *testing.T) {
	root := filepath.Join(t.TempDir(), "CapCut", "Apps")

	report, err := NewScanner(infra.NewFileSystemManager(), nopLogger()).Scan(context.Background(), root)

	assert.Nil(t, report)
	require.Error(t, err)
	assert.True(t, domain.IsNotInstalled(err))

	var scanErr *domain.ScanError
	require.True(t, errors.As(err, &scanErr))
	assert.Equal(t, root, scanErr.Root)
}

func TestScan_RootIsFile(t *testing.T) {
	root := filepath.Join(t.TempDir(), "Apps")
	writeFile(t, root, "oops")

	_, err := NewScanner(infra.NewFileSystemManager(), nopLogger()).Scan(context.Background(), root)

	assert.True(t, domain.IsNotInstalled(err))
}

func TestScan_SymlinkedVersionSkipped(t *testing.T) {
	l := newCapCutLayout(t, "2.5.4")
	elsewhere := filepath.Join(t.TempDir(), "9.9.9")
	require.NoError(t, os.MkdirAll(elsewhere, 0o755))
	if err := os.Symlink(elsewhere, filepath.Join(l.profile.InstallRoot, "9.9.9")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	report := scanAll(t, infra.NewFileSystemManager(), l.profile.InstallRoot)

	assert.Equal(t, []string{"2.5.4"}, versionNames(report.Versions))
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "symbolic link")
}

func TestScan_SymlinkedRoot(t *testing.T) {
	l := newCapCutLayout(t, "1.5.0", "2.5.4")
	link := l.linkInstallRoot(t)

	report, err := NewScanner(infra.NewFileSystemManager(), nopLogger()).Scan(context.Background(), link)

	require.NoError(t, err)
	assert.Equal(t, link, report.Root)
	assert.Equal(t, []string{"1.5.0", "2.5.4"}, versionNames(report.Versions))
	assert.Equal(t, filepath.Join(link, "2.5.4"), report.Versions[1].Path)
}

func TestScan_Cancelled(t *testing.T) {
	l := newCapCutLayout(t, "2.5.4", "3.0.0")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewScanner(infra.NewFileSystemManager(), nopLogger()).Scan(ctx, l.profile.InstallRoot)

	assert.ErrorIs(t, err, context.Canceled)
}
