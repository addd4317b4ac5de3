package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/version_guard/internal/domain"
)

// ScannerImpl implements domain.VersionScanner.
type ScannerImpl struct {
	fsManager domain.FileSystemManager
	logger    *zap.Logger
}

// NewScanner creates a new version scanner.
func NewScanner(fsm domain.FileSystemManager, logger *zap.Logger) *ScannerImpl {
	return &ScannerImpl{fsManager: fsm, logger: logger}
}

// Scan lists the version directories directly under root, ascending.
// A missing or untraversable root yields a *domain.ScanError wrapping
// domain.ErrNotInstalled. The root itself may be a symlink or junction;
// entries below it are never followed.
func (s *ScannerImpl) Scan(ctx context.Context, root string) (*domain.ScanReport, error) {
	resolved, err := s.fsManager.EvalSymlinks(root)
	if err != nil {
		return nil, rootError(root, err)
	}
	info, err := s.fsManager.Lstat(resolved)
	if err != nil {
		return nil, rootError(root, err)
	}
	if !info.IsDir() {
		return nil, &domain.ScanError{
			Root: root,
			Err:  fmt.Errorf("%w: not a directory", domain.ErrNotInstalled),
		}
	}

	entries, err := s.fsManager.ReadDir(resolved)
	if err != nil {
		return nil, rootError(root, err)
	}

	report := &domain.ScanReport{
		Root:      root,
		ScannedAt: time.Now(),
	}

	var found []domain.InstalledVersion
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := entry.Name()
		if entry.Type()&fs.ModeSymlink != 0 {
			report.Warnings = append(report.Warnings, fmt.Sprintf("skipped %q: symbolic link", name))
			continue
		}
		if !entry.IsDir() {
			continue // launcher files such as configure.ini live next to the versions
		}

		id, err := ParseVersionID(name)
		if err != nil {
			s.logger.Debug("skipping non-version directory", zap.String("name", name))
			report.Warnings = append(report.Warnings, fmt.Sprintf("skipped %q: not a version directory", name))
			continue
		}

		path := filepath.Join(root, name)
		v := domain.InstalledVersion{ID: id, Name: name, Path: path}
		if fi, err := entry.Info(); err == nil {
			v.ModTime = fi.ModTime()
		}

		size, err := s.dirSize(path)
		if err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("size of %q is incomplete: %v", name, err))
		}
		v.SizeBytes = size

		found = append(found, v)
	}

	sort.SliceStable(found, func(i, j int) bool {
		if c := found[i].ID.Compare(found[j].ID); c != 0 {
			return c < 0
		}
		return found[i].Name < found[j].Name
	})

	for _, v := range found {
		if n := len(report.Versions); n > 0 && report.Versions[n-1].ID.Equal(v.ID) {
			kept := report.Versions[n-1]
			report.Duplicates = append(report.Duplicates, v)
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("duplicate version %s: %q and %q", v.ID.Core(), kept.Name, v.Name))
			continue
		}
		report.Versions = append(report.Versions, v)
	}

	s.logger.Debug("scan completed",
		zap.String("root", root),
		zap.Int("versions", len(report.Versions)),
		zap.Int("duplicates", len(report.Duplicates)),
		zap.Int("warnings", len(report.Warnings)))

	return report, nil
}

// dirSize sums regular file sizes. Symlinks and junctions are not followed
// and contribute nothing.
func (s *ScannerImpl) dirSize(root string) (int64, error) {
	var total int64
	var firstErr error
	err := s.fsManager.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return nil
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return total, err
	}
	return total, firstErr
}

func rootError(root string, err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return &domain.ScanError{Root: root, Err: fmt.Errorf("%w: %w", domain.ErrNotInstalled, err)}
	}
	return &domain.ScanError{Root: root, Err: err}
}

// Ensure ScannerImpl implements domain.VersionScanner.
var _ domain.VersionScanner = (*ScannerImpl)(nil)
