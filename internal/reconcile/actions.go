package reconcile

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// deleteTarget removes a file, or a directory and everything below it.
func deleteTarget(fsys afero.Fs, path string, isDir bool) error {
	if isDir {
		if err := fsys.RemoveAll(path); err != nil {
			return fmt.Errorf("remove tree %s: %w", path, err)
		}
		return nil
	}
	if err := fsys.Remove(path); err != nil {
		return fmt.Errorf("remove file %s: %w", path, err)
	}
	return nil
}

// wipeDirectory removes every child of path while keeping path itself. A
// listing failure aborts the wipe; child failures are collected and the
// remaining children are still attempted.
func wipeDirectory(fsys afero.Fs, path string) ([]ChildFailure, error) {
	children, err := afero.ReadDir(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	var failures []ChildFailure
	for _, child := range children {
		childPath := filepath.Join(path, child.Name())
		if err := fsys.RemoveAll(childPath); err != nil {
			failures = append(failures, ChildFailure{Path: childPath, Err: err})
		}
	}
	return failures, nil
}
