package usecase

import (
	"errors"
	"io/fs"

	"github.com/eliteGoblin/focusd/version_guard/internal/domain"
)

// BlockerInPlace reports whether path already holds a blocker of kind:
// an empty read-only regular file, or an empty read-only directory.
func BlockerInPlace(fsm domain.FileSystemManager, path string, kind domain.BlockerKind) (bool, error) {
	info, err := fsm.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	switch kind {
	case domain.BlockerDirectory:
		if !info.IsDir() {
			return false, nil
		}
		entries, err := fsm.ReadDir(path)
		if err != nil || len(entries) > 0 {
			return false, nil
		}
	default:
		if !info.Mode().IsRegular() || info.Size() != 0 {
			return false, nil
		}
	}

	return fsm.IsReadOnly(path)
}
