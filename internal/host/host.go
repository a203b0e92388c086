// Package host implements the side-effecting capabilities the lifecycle
// executor calls into: accounts, files, templates, the service manager,
// firewall ports and resources.
package host

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Accounts creates the system identity that owns the server files.
type Accounts interface {
	CreateAccount(ctx context.Context, name, group, home string) error
	SetOwnership(ctx context.Context, path, user, group string, recursive bool) error
}

// Files manages links on the filesystem.
type Files interface {
	CreateSymlink(target, link string) error
}

// Templates renders named templates onto disk.
type Templates interface {
	Render(ctx context.Context, name, target, owner, group string, perm os.FileMode, data any) error
}

// ServiceManager controls the managed server process.
type ServiceManager interface {
	Reload(ctx context.Context) error
	Start(ctx context.Context, name string) error
	Restart(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	IsRunning(ctx context.Context, name string) (bool, error)
}

// Ports opens and closes firewall ports. List returns "port/proto" entries.
type Ports interface {
	Open(ctx context.Context, port int) error
	Close(ctx context.Context, port int) error
	List(ctx context.Context) ([]string, error)
}

// Resources resolves externally supplied artifacts.
type Resources interface {
	// Get returns the resource path, or "" when the resource has not been supplied.
	Get(ctx context.Context, name string) (string, error)
	FileSize(path string) (int64, error)
}

// CommandRunner executes a host command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// ExecCommand runs a command and folds its combined output into the error.
func ExecCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		text := strings.TrimSpace(string(out))
		if text != "" {
			return fmt.Errorf("%s %s: %w (%s)", name, strings.Join(args, " "), err, text)
		}
		return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return nil
}
