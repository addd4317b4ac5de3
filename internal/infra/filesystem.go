package infra

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/eliteGoblin/focusd/version_guard/internal/domain"
)

// FileSystemManagerImpl implements domain.FileSystemManager on the local disk.
type FileSystemManagerImpl struct{}

// NewFileSystemManager creates a new filesystem manager.
func NewFileSystemManager() *FileSystemManagerImpl {
	return &FileSystemManagerImpl{}
}

// Exists checks if a path exists (symlinks are not followed).
func (fm *FileSystemManagerImpl) Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func (fm *FileSystemManagerImpl) Lstat(path string) (fs.FileInfo, error) {
	return os.Lstat(path)
}

func (fm *FileSystemManagerImpl) EvalSymlinks(path string) (string, error) {
	return filepath.EvalSymlinks(path)
}

func (fm *FileSystemManagerImpl) ReadDir(path string) ([]fs.DirEntry, error) {
	return os.ReadDir(path)
}

// WalkDir walks the tree rooted at root without following symlinks.
func (fm *FileSystemManagerImpl) WalkDir(root string, fn fs.WalkDirFunc) error {
	return filepath.WalkDir(root, fn)
}

// Delete removes a file or directory recursively.
func (fm *FileSystemManagerImpl) Delete(path string) error {
	return os.RemoveAll(path)
}

func (fm *FileSystemManagerImpl) Rename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

func (fm *FileSystemManagerImpl) MkdirAll(path string, perm fs.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (fm *FileSystemManagerImpl) Mkdir(path string, perm fs.FileMode) error {
	return os.Mkdir(path, perm)
}

func (fm *FileSystemManagerImpl) WriteFile(path string, data []byte, perm fs.FileMode) error {
	return os.WriteFile(path, data, perm)
}

// SetReadOnly marks path read-only for the current user.
func (fm *FileSystemManagerImpl) SetReadOnly(path string) error {
	return setReadOnly(path, true)
}

// ClearReadOnly makes path writable again.
func (fm *FileSystemManagerImpl) ClearReadOnly(path string) error {
	return setReadOnly(path, false)
}

// IsReadOnly reports whether path is marked read-only.
func (fm *FileSystemManagerImpl) IsReadOnly(path string) (bool, error) {
	return isReadOnly(path)
}

// Ensure FileSystemManagerImpl implements domain.FileSystemManager.
var _ domain.FileSystemManager = (*FileSystemManagerImpl)(nil)
