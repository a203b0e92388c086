package host

import (
	"fmt"
	"os"
	"path/filepath"
)

// LocalFiles manages links on the local filesystem.
type LocalFiles struct{}

// CreateSymlink points link at target, replacing any existing link atomically.
func (LocalFiles) CreateSymlink(target, link string) error {
	if current, err := os.Readlink(link); err == nil && current == target {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return err
	}

	tmp := fmt.Sprintf("%s.tmp-%d", link, os.Getpid())
	_ = os.Remove(tmp)
	if err := os.Symlink(target, tmp); err != nil {
		return fmt.Errorf("create symlink %s: %w", link, err)
	}
	if err := os.Rename(tmp, link); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace symlink %s: %w", link, err)
	}
	return nil
}
