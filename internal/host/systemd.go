package host

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/rs/zerolog"
)

// UnitDir is where the rendered unit file lives.
const UnitDir = "/etc/systemd/system"

// dbusConn is the subset of the systemd D-Bus API used by SystemdManager.
type dbusConn interface {
	ReloadContext(ctx context.Context) error
	StartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	RestartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	StopUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	ListUnitsByNamesContext(ctx context.Context, units []string) ([]dbus.UnitStatus, error)
	Close()
}

var _ dbusConn = (*dbus.Conn)(nil)

// SystemdManager controls the server as a systemd unit over D-Bus.
type SystemdManager struct {
	logger  zerolog.Logger
	newConn func(ctx context.Context) (dbusConn, error)
}

// NewSystemdManager connects to the system bus on every call.
func NewSystemdManager(logger zerolog.Logger) *SystemdManager {
	return &SystemdManager{
		logger: logger,
		newConn: func(ctx context.Context) (dbusConn, error) {
			return dbus.NewWithContext(ctx)
		},
	}
}

// UnitName returns the systemd unit name for a service.
func UnitName(name string) string {
	if strings.HasSuffix(name, ".service") {
		return name
	}
	return name + ".service"
}

func (m *SystemdManager) conn(ctx context.Context) (dbusConn, error) {
	conn, err := m.newConn(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to connect to systemd over dbus")
		return nil, fmt.Errorf("connect to systemd: %w", err)
	}
	return conn, nil
}

// Reload makes systemd re-read unit files.
func (m *SystemdManager) Reload(ctx context.Context) error {
	conn, err := m.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.ReloadContext(ctx); err != nil {
		return fmt.Errorf("daemon-reload: %w", err)
	}
	return nil
}

// Start starts the unit and waits for the job to finish.
func (m *SystemdManager) Start(ctx context.Context, name string) error {
	return m.job(ctx, "start", name, func(conn dbusConn, unit string, ch chan<- string) (int, error) {
		return conn.StartUnitContext(ctx, unit, "replace", ch)
	})
}

// Restart restarts the unit and waits for the job to finish.
func (m *SystemdManager) Restart(ctx context.Context, name string) error {
	return m.job(ctx, "restart", name, func(conn dbusConn, unit string, ch chan<- string) (int, error) {
		return conn.RestartUnitContext(ctx, unit, "replace", ch)
	})
}

// Stop stops the unit and waits for the job to finish.
func (m *SystemdManager) Stop(ctx context.Context, name string) error {
	return m.job(ctx, "stop", name, func(conn dbusConn, unit string, ch chan<- string) (int, error) {
		return conn.StopUnitContext(ctx, unit, "replace", ch)
	})
}

func (m *SystemdManager) job(ctx context.Context, op, name string, submit func(dbusConn, string, chan<- string) (int, error)) error {
	conn, err := m.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	unit := UnitName(name)
	ch := make(chan string, 1)
	if _, err := submit(conn, unit, ch); err != nil {
		return fmt.Errorf("%s %s: %w", op, unit, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case result := <-ch:
		if result != "done" {
			return fmt.Errorf("%s %s: job finished with %q", op, unit, result)
		}
	}
	m.logger.Debug().Str("unit", unit).Str("op", op).Msg("systemd job done")
	return nil
}

// IsRunning reports whether the unit is loaded and active.
func (m *SystemdManager) IsRunning(ctx context.Context, name string) (bool, error) {
	conn, err := m.conn(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	unit := UnitName(name)
	units, err := conn.ListUnitsByNamesContext(ctx, []string{unit})
	if err != nil {
		return false, fmt.Errorf("query %s: %w", unit, err)
	}
	for _, status := range units {
		if status.Name == unit {
			return status.LoadState == "loaded" && status.ActiveState == "active", nil
		}
	}
	return false, nil
}
