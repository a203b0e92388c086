package status

import (
	"context"
	"errors"
	"time"

	"github.com/nholik/craft-sentinel/internal/health"
	"github.com/nholik/craft-sentinel/internal/host"
	"github.com/nholik/craft-sentinel/internal/metrics"
	"github.com/nholik/craft-sentinel/internal/options"
	"github.com/nholik/craft-sentinel/internal/state"
	"github.com/rs/zerolog"
)

// Reporter publishes a status report.
type Reporter interface {
	ReportStatus(ctx context.Context, report health.Report) error
}

// Loop periodically probes the server and publishes what it finds. It reads
// the store but never changes lifecycle flags.
type Loop struct {
	logger      zerolog.Logger
	interval    time.Duration
	timeout     time.Duration
	prober      *health.Prober
	services    host.ServiceManager
	serviceName string
	store       state.Store
	options     func() (map[string]string, error)
	reporter    Reporter
	metrics     *metrics.Metrics
	after       func(time.Duration) <-chan time.Time
}

// LoopConfig holds the Loop dependencies.
type LoopConfig struct {
	Interval    time.Duration
	Timeout     time.Duration
	Prober      *health.Prober
	Services    host.ServiceManager
	ServiceName string
	Store       state.Store
	Options     func() (map[string]string, error)
	Reporter    Reporter
	Metrics     *metrics.Metrics
}

// NewLoop builds a status probe loop.
func NewLoop(logger zerolog.Logger, cfg LoopConfig) *Loop {
	return &Loop{
		logger:      logger,
		interval:    cfg.Interval,
		timeout:     cfg.Timeout,
		prober:      cfg.Prober,
		services:    cfg.Services,
		serviceName: cfg.ServiceName,
		store:       cfg.Store,
		options:     cfg.Options,
		reporter:    cfg.Reporter,
		metrics:     cfg.Metrics,
		after:       time.After,
	}
}

// Run probes every interval until ctx is canceled.
func (l *Loop) Run(ctx context.Context) error {
	if l.interval <= 0 {
		return errors.New("status interval must be greater than zero")
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.after(l.interval):
			if err := l.ProbeOnce(ctx); err != nil {
				l.logger.Error().Err(err).Msg("status probe failed")
			}
		}
	}
}

// ProbeOnce runs a single probe. A blocked status is left for the driver
// to clear, since only a reconciliation pass can resolve it.
func (l *Loop) ProbeOnce(ctx context.Context) error {
	current, err := l.store.Load(ctx)
	if err != nil {
		return err
	}
	if current.Status.Level == health.LevelBlocked {
		l.logger.Debug().Str("message", current.Status.Message).Msg("status blocked, skipping probe")
		return nil
	}

	values, err := l.options()
	if err != nil {
		return err
	}
	snapshot := options.NewSnapshot(nil, values)
	target := health.Target{
		Host:     "127.0.0.1",
		Port:     snapshot.Int(options.ServerPort),
		Gamemode: snapshot.Get(options.Gamemode),
	}

	running, err := l.services.IsRunning(ctx, l.serviceName)
	if err != nil {
		return err
	}

	probeCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	report, outcome, publish := l.prober.Probe(probeCtx, running, target)
	l.metrics.IncProbe(string(outcome))
	if !publish {
		return nil
	}
	return l.reporter.ReportStatus(ctx, report)
}
