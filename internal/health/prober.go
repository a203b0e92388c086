package health

import (
	"context"

	"github.com/nholik/craft-sentinel/internal/mcping"
	"github.com/rs/zerolog"
)

// Querier performs a status query against the managed server.
type Querier interface {
	Status(ctx context.Context, host string, port int) (mcping.Result, error)
}

// Target identifies the server to probe.
type Target struct {
	Host     string
	Port     int
	Gamemode string
}

// Prober derives status reports from live observations. It never touches
// lifecycle flags.
type Prober struct {
	logger  zerolog.Logger
	querier Querier
}

// NewProber constructs a Prober.
func NewProber(logger zerolog.Logger, querier Querier) *Prober {
	return &Prober{logger: logger, querier: querier}
}

// Probe returns the report to publish and whether to publish it. Unreachable
// servers and unexpected query errors are logged and leave the status alone.
func (p *Prober) Probe(ctx context.Context, running bool, target Target) (Report, Outcome, bool) {
	if !running {
		return Evaluate(false, mcping.Result{}, nil, target.Gamemode)
	}

	result, err := p.querier.Status(ctx, target.Host, target.Port)
	report, outcome, ok := Evaluate(true, result, err, target.Gamemode)
	switch outcome {
	case OutcomeUnreachable:
		p.logger.Warn().Err(err).
			Str("host", target.Host).
			Int("port", target.Port).
			Msg("unable to connect to get server status")
	case OutcomeError:
		p.logger.Error().Err(err).
			Str("host", target.Host).
			Int("port", target.Port).
			Msg("server status query failed")
	case OutcomeReported:
		p.logger.Debug().
			Int("players_online", result.Players.Online).
			Int("players_max", result.Players.Max).
			Dur("latency", result.Latency).
			Msg("server status queried")
	}
	return report, outcome, ok
}
