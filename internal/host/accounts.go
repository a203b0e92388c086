package host

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
)

// LinuxAccounts manages users and groups with the shadow-utils commands.
type LinuxAccounts struct {
	run         CommandRunner
	lookupUser  func(name string) (*user.User, error)
	lookupGroup func(name string) (*user.Group, error)
	chown       func(path string, uid, gid int) error
}

// NewLinuxAccounts returns accounts backed by groupadd/useradd.
func NewLinuxAccounts(run CommandRunner) *LinuxAccounts {
	if run == nil {
		run = ExecCommand
	}
	return &LinuxAccounts{
		run:         run,
		lookupUser:  user.Lookup,
		lookupGroup: user.LookupGroup,
		chown:       os.Lchown,
	}
}

// CreateAccount creates the group, the system user and its home directory.
// Existing users and groups are left alone.
func (a *LinuxAccounts) CreateAccount(ctx context.Context, name, group, home string) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return fmt.Errorf("create home %s: %w", home, err)
	}

	if _, err := a.lookupGroup(group); err != nil {
		var unknown user.UnknownGroupError
		if !errors.As(err, &unknown) {
			return fmt.Errorf("lookup group %s: %w", group, err)
		}
		if err := a.run(ctx, "groupadd", "--system", group); err != nil {
			return err
		}
	}

	if _, err := a.lookupUser(name); err != nil {
		var unknown user.UnknownUserError
		if !errors.As(err, &unknown) {
			return fmt.Errorf("lookup user %s: %w", name, err)
		}
		return a.run(ctx, "useradd", "--system", "--gid", group, "--home-dir", home, "--shell", "/usr/sbin/nologin", name)
	}
	return nil
}

// SetOwnership changes the owner of path, walking the tree when recursive.
func (a *LinuxAccounts) SetOwnership(_ context.Context, path, userName, group string, recursive bool) error {
	uid, gid, err := a.ids(userName, group)
	if err != nil {
		return err
	}
	if !recursive {
		return a.chown(path, uid, gid)
	}
	return filepath.WalkDir(path, func(p string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		return a.chown(p, uid, gid)
	})
}

func (a *LinuxAccounts) ids(userName, group string) (int, int, error) {
	u, err := a.lookupUser(userName)
	if err != nil {
		return 0, 0, fmt.Errorf("lookup user %s: %w", userName, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, fmt.Errorf("parse uid %q: %w", u.Uid, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return 0, 0, fmt.Errorf("parse gid %q: %w", u.Gid, err)
	}
	if group != "" {
		g, err := a.lookupGroup(group)
		if err != nil {
			return 0, 0, fmt.Errorf("lookup group %s: %w", group, err)
		}
		if gid, err = strconv.Atoi(g.Gid); err != nil {
			return 0, 0, fmt.Errorf("parse gid %q: %w", g.Gid, err)
		}
	}
	return uid, gid, nil
}
