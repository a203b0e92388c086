package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DirResources resolves resources as files named after the resource inside a directory.
type DirResources struct {
	dir string
}

// NewDirResources returns resources stored under dir.
func NewDirResources(dir string) *DirResources {
	return &DirResources{dir: dir}
}

// Path returns where the resource named name is stored.
func (r *DirResources) Path(name string) string {
	return filepath.Join(r.dir, name)
}

// Get returns the resource path, or "" if it does not exist.
func (r *DirResources) Get(_ context.Context, name string) (string, error) {
	path := r.Path(name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("stat resource %s: %w", name, err)
	}
	return path, nil
}

// FileSize returns the size of path in bytes.
func (r *DirResources) FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("resource %s is a directory", path)
	}
	return info.Size(), nil
}
