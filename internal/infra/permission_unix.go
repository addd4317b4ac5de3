//go:build !windows

package infra

import (
	"os"
)

const writeBits = 0o222

// setReadOnly strips or restores the write bits. Restoring only grants the
// owner write permission.
func setReadOnly(path string, readOnly bool) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil
	}

	mode := info.Mode().Perm()
	if readOnly {
		mode &^= writeBits
	} else {
		mode |= 0o200
	}
	if mode == info.Mode().Perm() {
		return nil
	}
	return os.Chmod(path, mode)
}

func isReadOnly(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return false, err
	}
	return info.Mode().Perm()&writeBits == 0, nil
}
