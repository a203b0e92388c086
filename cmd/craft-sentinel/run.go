package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/nholik/craft-sentinel/internal/coordinator"
	"github.com/nholik/craft-sentinel/internal/health"
	"github.com/nholik/craft-sentinel/internal/mcping"
	"github.com/nholik/craft-sentinel/internal/server"
	"github.com/nholik/craft-sentinel/internal/status"
	"github.com/nholik/craft-sentinel/internal/watch"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the reconciliation daemon",
		Long: `Run reconciliation passes on startup, on every poll interval and whenever
the options file or the resource directory changes. The server is probed
between passes and status transitions are sent to the configured notifiers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(os.Stdout)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info().
				Str("home", cfg.Home).
				Str("state_backend", cfg.StateBackend).
				Str("service_backend", cfg.ServiceBackend).
				Str("service", cfg.ServiceName).
				Dur("poll_interval", cfg.PollInterval).
				Msg("craft-sentinel starting")

			a, err := newApp(ctx, cfg, logger, nil)
			if err != nil {
				return err
			}
			defer a.close()

			server.Start(ctx, logger, server.Options{
				PollInterval: cfg.PollInterval,
				Tracker:      a.tracker,
				Metrics:      a.metrics,
				State:        a.store,
				HealthPort:   cfg.HealthPort,
				MetricsPort:  cfg.MetricsPort,
			})

			probe := status.NewLoop(logger.With().Str("component", "probe").Logger(), status.LoopConfig{
				Interval:    cfg.PollInterval,
				Timeout:     cfg.ProbeTimeout,
				Prober:      health.NewProber(logger, mcping.NewClient(cfg.ProbeTimeout)),
				Services:    a.services,
				ServiceName: cfg.ServiceName,
				Store:       a.store,
				Options:     optionsLoader(cfg.OptionsFile),
				Reporter:    a.sink,
				Metrics:     a.metrics,
			})

			coord := coordinator.New(logger)
			coord.Add("runner", a.runner)
			coord.Add("probe", probe)
			if !noWatch {
				coord.Add("watch", watch.New(
					logger.With().Str("component", "watch").Logger(),
					a.runner.Trigger,
					watchDebounce,
					watch.OptionsFile(cfg.OptionsFile),
					watch.ResourceDir(cfg.ResourceDir),
				))
			}

			if err := coord.Run(ctx); err != nil {
				return err
			}
			logger.Info().Msg("craft-sentinel stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "disable filesystem watchers")
	return cmd
}
