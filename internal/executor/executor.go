// Package executor applies engine plans through the host capabilities.
package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nholik/craft-sentinel/internal/engine"
	"github.com/nholik/craft-sentinel/internal/health"
	"github.com/nholik/craft-sentinel/internal/host"
	"github.com/nholik/craft-sentinel/internal/metrics"
	"github.com/nholik/craft-sentinel/internal/options"
	"github.com/rs/zerolog"
)

// ResourceName is the name of the server jar resource.
const ResourceName = "server-jar"

// Modes for rendered files. Nothing rendered is executable and the unit must
// not be writable by anyone but root.
const (
	ServerFileMode os.FileMode = 0o644
	UnitFileMode   os.FileMode = 0o644
)

// StatusReporter publishes workload status.
type StatusReporter interface {
	ReportStatus(ctx context.Context, report health.Report) error
}

// Layout describes where the managed server lives on the host.
type Layout struct {
	Home        string
	User        string
	Group       string
	ServiceName string
	UnitDir     string
	Java        string
	JavaOpts    string
}

// DefaultLayout returns the stock layout rooted at home.
func DefaultLayout(home string) Layout {
	return Layout{
		Home:        home,
		User:        "minecraft",
		Group:       "minecraft",
		ServiceName: "minecraft",
		UnitDir:     host.UnitDir,
		Java:        "/usr/bin/java",
		JavaOpts:    "-Xms1G -Xmx1G",
	}
}

// JarLink is the stable path the unit starts the server from.
func (l Layout) JarLink() string {
	return filepath.Join(l.Home, "minecraft_server.jar")
}

// UnitPath is where the service unit is rendered.
func (l Layout) UnitPath() string {
	return filepath.Join(l.UnitDir, host.UnitName(l.ServiceName))
}

// Capabilities bundles the host implementations the executor drives.
type Capabilities struct {
	Accounts  host.Accounts
	Files     host.Files
	Templates host.Templates
	Services  host.ServiceManager
	Ports     host.Ports
	Resources host.Resources
	Reporter  StatusReporter
}

// Executor runs engine actions against the host.
type Executor struct {
	caps    Capabilities
	layout  Layout
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New builds an Executor.
func New(caps Capabilities, layout Layout, metricsCollector *metrics.Metrics, logger zerolog.Logger) *Executor {
	return &Executor{caps: caps, layout: layout, metrics: metricsCollector, logger: logger}
}

// Run executes plan in order, calling committed after every successful
// action. The first failure stops the plan: it is reported as blocked and
// returned as an *ActionError. Run returns how many actions succeeded.
func (e *Executor) Run(ctx context.Context, plan engine.Plan, config options.Snapshot, committed func(engine.Action) error) (int, error) {
	for i, action := range plan.Actions {
		if err := ctx.Err(); err != nil {
			return i, err
		}

		err := e.Apply(ctx, action, config)
		e.metrics.IncAction(string(action.Kind), err)
		if err != nil {
			actionErr := &ActionError{Action: action, Err: err}
			e.logger.Error().Err(err).Str("action", action.String()).Msg("action failed, aborting plan")
			if action.Kind != engine.ReportStatus {
				if reportErr := e.caps.Reporter.ReportStatus(ctx, health.Blocked(actionErr.Error())); reportErr != nil {
					e.logger.Error().Err(reportErr).Msg("failed to report action failure")
				}
			}
			return i, actionErr
		}

		if committed != nil {
			if err := committed(action); err != nil {
				return i, fmt.Errorf("commit %s: %w", action.Kind, err)
			}
		}
	}
	return len(plan.Actions), nil
}

// Apply performs a single action.
func (e *Executor) Apply(ctx context.Context, action engine.Action, config options.Snapshot) error {
	e.logger.Debug().Str("action", action.String()).Msg("applying action")

	switch action.Kind {
	case engine.CreateSystemAccount:
		return e.createAccount(ctx)
	case engine.RenderEulaAcceptance:
		return e.render(ctx, host.TemplateEula, filepath.Join(e.layout.Home, "eula.txt"), nil)
	case engine.RenderServiceProperties:
		data := struct{ Options map[string]string }{Options: config.Current}
		return e.render(ctx, host.TemplateProperties, filepath.Join(e.layout.Home, "server.properties"), data)
	case engine.RenderServiceUnit:
		return e.renderUnit(ctx)
	case engine.LinkResource:
		return e.linkResource(ctx)
	case engine.ReloadUnitManager:
		return e.caps.Services.Reload(ctx)
	case engine.CloseAllOpenPorts:
		return e.closeAllPorts(ctx)
	case engine.OpenPort:
		return e.caps.Ports.Open(ctx, action.Port)
	case engine.StartService:
		return e.caps.Services.Start(ctx, e.layout.ServiceName)
	case engine.RestartService:
		return e.caps.Services.Restart(ctx, e.layout.ServiceName)
	case engine.ReportStatus:
		return e.caps.Reporter.ReportStatus(ctx, action.Status)
	default:
		return fmt.Errorf("unknown action %q", action.Kind)
	}
}

func (e *Executor) createAccount(ctx context.Context) error {
	if err := e.caps.Accounts.CreateAccount(ctx, e.layout.User, e.layout.Group, e.layout.Home); err != nil {
		return err
	}
	return e.caps.Accounts.SetOwnership(ctx, e.layout.Home, e.layout.User, e.layout.Group, true)
}

func (e *Executor) render(ctx context.Context, name, target string, data any) error {
	return e.caps.Templates.Render(ctx, name, target, e.layout.User, e.layout.Group, ServerFileMode, data)
}

func (e *Executor) renderUnit(ctx context.Context) error {
	data := struct {
		User             string
		Group            string
		WorkingDirectory string
		Java             string
		JavaOpts         string
		ServerJar        string
	}{
		User:             e.layout.User,
		Group:            e.layout.Group,
		WorkingDirectory: e.layout.Home,
		Java:             e.layout.Java,
		JavaOpts:         e.layout.JavaOpts,
		ServerJar:        e.layout.JarLink(),
	}
	// The unit belongs to root.
	return e.caps.Templates.Render(ctx, host.TemplateUnit, e.layout.UnitPath(), "", "", UnitFileMode, data)
}

func (e *Executor) linkResource(ctx context.Context) error {
	path, err := e.caps.Resources.Get(ctx, ResourceName)
	if err != nil {
		return err
	}
	if path == "" {
		e.logger.Info().Str("resource", ResourceName).Msg("resource not supplied yet, skipping link")
		return nil
	}
	return e.caps.Files.CreateSymlink(path, e.layout.JarLink())
}

func (e *Executor) closeAllPorts(ctx context.Context) error {
	entries, err := e.caps.Ports.List(ctx)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		port, err := host.ParsePortEntry(entry)
		if err != nil {
			return err
		}
		if err := e.caps.Ports.Close(ctx, port); err != nil {
			return err
		}
	}
	return nil
}

// ResourceReady reports whether the server jar is present and non-empty,
// returning its path when it is.
func ResourceReady(ctx context.Context, resources host.Resources) (string, bool, error) {
	path, err := resources.Get(ctx, ResourceName)
	if err != nil || path == "" {
		return "", false, err
	}
	size, err := resources.FileSize(path)
	if err != nil {
		return path, false, err
	}
	return path, size > 0, nil
}
