package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/nholik/craft-sentinel/internal/config"
	"github.com/nholik/craft-sentinel/internal/engine"
	"github.com/nholik/craft-sentinel/internal/executor"
	"github.com/nholik/craft-sentinel/internal/healthcheck"
	"github.com/nholik/craft-sentinel/internal/host"
	"github.com/nholik/craft-sentinel/internal/metrics"
	"github.com/nholik/craft-sentinel/internal/notify"
	"github.com/nholik/craft-sentinel/internal/options"
	"github.com/nholik/craft-sentinel/internal/resource"
	"github.com/nholik/craft-sentinel/internal/runner"
	"github.com/nholik/craft-sentinel/internal/state"
	"github.com/nholik/craft-sentinel/internal/status"
	"github.com/rs/zerolog"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg       config.Config
	logger    zerolog.Logger
	store     state.Store
	lock      *sync.Mutex
	metrics   *metrics.Metrics
	tracker   *healthcheck.Tracker
	services  host.ServiceManager
	resources *host.DirResources
	sink      *status.Sink
	runner    *runner.Runner
	closers   []func() error
}

// openStore opens the configured condition store.
func openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (state.Store, func() error, error) {
	switch cfg.StateBackend {
	case config.StateBackendSQLite:
		store, err := state.OpenSQLiteStore(ctx, cfg.StatePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return state.NewFileStore(cfg.StatePath, logger), func() error { return nil }, nil
	}
}

func buildServices(cfg config.Config, logger zerolog.Logger) (host.ServiceManager, func() error, error) {
	switch cfg.ServiceBackend {
	case config.ServiceBackendDocker:
		manager, err := host.NewDockerManager(cfg.DockerHost, cfg.ServiceName, 0, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("create docker client: %w", err)
		}
		return manager, manager.Close, nil
	default:
		return host.NewSystemdManager(logger), func() error { return nil }, nil
	}
}

func buildNotifier(cfg config.Config, logger zerolog.Logger) (notify.Notifier, error) {
	notifiers := []notify.Notifier{
		notify.NewSlackNotifier(logger.With().Str("notifier", "slack").Logger(), cfg.SlackWebhookURL),
	}

	webhook, err := notify.NewWebhookNotifier(logger.With().Str("notifier", "webhook").Logger(), cfg.WebhookURL, cfg.WebhookTemplate)
	if err != nil {
		return nil, err
	}
	if webhook != nil {
		notifiers = append(notifiers, webhook)
	}

	var notifier notify.Notifier = notify.NewMultiNotifier(notifiers...)
	if cfg.DryRun {
		notifier = notify.NewDryRunNotifier(logger, notifier)
	}
	return notifier, nil
}

// optionsLoader reads the options file. A missing file means schema defaults.
func optionsLoader(path string) runner.OptionsLoader {
	return func() (map[string]string, error) {
		values, err := options.LoadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return options.Defaults(), nil
		}
		return values, err
	}
}

// newApp wires the store, host backends, executor and runner. The caller
// must call close.
func newApp(ctx context.Context, cfg config.Config, logger zerolog.Logger, planner func(engine.Trigger, engine.Input) engine.Plan) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		lock:    &sync.Mutex{},
		metrics: metrics.New(),
		tracker: healthcheck.NewTracker(),
	}

	store, closeStore, err := openStore(ctx, cfg, logger.With().Str("component", "state").Logger())
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, closeStore)

	services, closeServices, err := buildServices(cfg, logger.With().Str("component", "services").Logger())
	if err != nil {
		a.close()
		return nil, err
	}
	a.services = services
	a.closers = append(a.closers, closeServices)

	notifier, err := buildNotifier(cfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.sink = status.NewSink(store, a.lock, a.metrics, notifier, cfg.ServiceName, logger.With().Str("component", "status").Logger())

	var firewall host.CommandRunner
	if cfg.Firewall == config.FirewallUFW {
		firewall = host.ExecCommand
	}

	accounts := host.NewLinuxAccounts(host.ExecCommand)
	templates, err := host.NewFileTemplates(accounts)
	if err != nil {
		a.close()
		return nil, err
	}

	a.resources = host.NewDirResources(cfg.ResourceDir)

	layout := executor.DefaultLayout(cfg.Home)
	layout.ServiceName = cfg.ServiceName

	exec := executor.New(executor.Capabilities{
		Accounts:  accounts,
		Files:     host.LocalFiles{},
		Templates: templates,
		Services:  services,
		Ports:     host.NewLedgerPorts(store, a.lock, firewall, logger.With().Str("component", "ports").Logger()),
		Resources: a.resources,
		Reporter:  a.sink,
	}, layout, a.metrics, logger.With().Str("component", "executor").Logger())

	opts := []runner.Option{
		runner.WithStateStore(store, a.lock),
		runner.WithExecutor(exec),
		runner.WithHost(services, a.resources, cfg.ServiceName),
		runner.WithOptionsLoader(optionsLoader(cfg.OptionsFile)),
		runner.WithObservability(a.metrics, a.tracker),
	}
	if planner != nil {
		opts = append(opts, runner.WithPlanner(planner))
	}
	if cfg.ResourceURL != "" {
		fetcher, err := resource.NewHTTPFetcher(cfg.ResourceURL, a.resources.Path(executor.ResourceName), fetchTimeout, 0, logger.With().Str("component", "resource").Logger())
		if err != nil {
			a.close()
			return nil, err
		}
		opts = append(opts, runner.WithResourceSyncer(fetcher))
	}

	a.runner = runner.New(logger.With().Str("component", "runner").Logger(), cfg.PollInterval, opts...)
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}
