package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nholik/craft-sentinel/internal/healthcheck"
	"github.com/nholik/craft-sentinel/internal/metrics"
	"github.com/nholik/craft-sentinel/internal/state"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

// Options configures the HTTP surface.
type Options struct {
	PollInterval time.Duration
	Tracker      *healthcheck.Tracker
	Metrics      *metrics.Metrics
	// State backs /status; nil disables the route.
	State       state.Store
	HealthPort  int
	MetricsPort int
}

// Start launches health and metrics HTTP servers as configured.
func Start(ctx context.Context, logger zerolog.Logger, opts Options) {
	if opts.HealthPort == 0 && opts.MetricsPort == 0 {
		return
	}

	if opts.HealthPort > 0 && opts.HealthPort == opts.MetricsPort {
		mux := http.NewServeMux()
		registerHealthRoutes(mux, opts)
		registerMetricsRoute(mux, opts.Metrics)
		startServer(ctx, logger, mux, opts.HealthPort, "health/metrics")
		return
	}

	if opts.HealthPort > 0 {
		mux := http.NewServeMux()
		registerHealthRoutes(mux, opts)
		startServer(ctx, logger, mux, opts.HealthPort, "health")
	}

	if opts.MetricsPort > 0 {
		mux := http.NewServeMux()
		registerMetricsRoute(mux, opts.Metrics)
		startServer(ctx, logger, mux, opts.MetricsPort, "metrics")
	}
}

func registerHealthRoutes(mux *http.ServeMux, opts Options) {
	mux.HandleFunc("/healthz", healthcheck.HealthHandler(opts.Tracker, opts.PollInterval))
	mux.HandleFunc("/readyz", healthcheck.ReadyHandler(opts.Tracker))
	if opts.State != nil {
		mux.HandleFunc("/status", statusHandler(opts.State))
	}
}

func registerMetricsRoute(mux *http.ServeMux, metricsCollector *metrics.Metrics) {
	if metricsCollector == nil {
		return
	}
	mux.Handle("/metrics", metricsCollector.Handler())
}

// statusView is the /status response body.
type statusView struct {
	Flags  []string           `json:"flags"`
	Status state.StatusRecord `json:"status"`
	Ports  []string           `json:"opened_ports"`
}

func statusHandler(store state.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, err := store.Load(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		ports := current.Ports
		if ports == nil {
			ports = []string{}
		}
		_ = json.NewEncoder(w).Encode(statusView{
			Flags:  current.Flags.Names(),
			Status: current.Status,
			Ports:  ports,
		})
	}
}

func startServer(ctx context.Context, logger zerolog.Logger, handler http.Handler, port int, label string) {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("server", label).Int("port", port).Msg("http server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("server", label).Int("port", port).Msg("http server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Str("server", label).Int("port", port).Msg("http server shutdown failed")
		}
	}()
}
