//go:build windows

package infra

import (
	"golang.org/x/sys/windows"
)

// setReadOnly toggles FILE_ATTRIBUTE_READONLY, leaving other attributes alone.
func setReadOnly(path string, readOnly bool) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil {
		return err
	}

	next := attrs &^ windows.FILE_ATTRIBUTE_READONLY
	if readOnly {
		next = attrs | windows.FILE_ATTRIBUTE_READONLY
	}
	if next == attrs {
		return nil
	}
	return windows.SetFileAttributes(p, next)
}

func isReadOnly(path string) (bool, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return false, err
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil {
		return false, err
	}
	return attrs&windows.FILE_ATTRIBUTE_READONLY != 0, nil
}
