package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// statusLevels are the label values of the status level gauge.
var statusLevels = []string{"maintenance", "active", "waiting", "blocked"}

// Metrics wraps Prometheus collectors for craft-sentinel.
type Metrics struct {
	registry                *prometheus.Registry
	passDurationSeconds     *prometheus.HistogramVec
	passesTotal             *prometheus.CounterVec
	actionsTotal            *prometheus.CounterVec
	statusLevel             *prometheus.GaugeVec
	probesTotal             *prometheus.CounterVec
	notificationsTotal      *prometheus.CounterVec
	lastSuccessfulPassGauge prometheus.Gauge
}

// New initializes a Metrics registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		passDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "craft_sentinel_pass_duration_seconds",
			Help:    "Duration of reconciliation passes in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"trigger"}),
		passesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "craft_sentinel_passes_total",
			Help: "Total reconciliation passes by trigger and result.",
		}, []string{"trigger", "result"}),
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "craft_sentinel_actions_total",
			Help: "Total lifecycle actions executed by kind and result.",
		}, []string{"action", "result"}),
		statusLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "craft_sentinel_status_level",
			Help: "Currently published workload status level (1 for the active level).",
		}, []string{"level"}),
		probesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "craft_sentinel_status_probes_total",
			Help: "Total status probes by outcome.",
		}, []string{"outcome"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "craft_sentinel_notifications_total",
			Help: "Total status transition notifications by result.",
		}, []string{"result"}),
		lastSuccessfulPassGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "craft_sentinel_last_successful_pass_timestamp",
			Help: "Unix timestamp of the last successful reconciliation pass.",
		}),
	}

	registry.MustRegister(
		m.passDurationSeconds,
		m.passesTotal,
		m.actionsTotal,
		m.statusLevel,
		m.probesTotal,
		m.notificationsTotal,
		m.lastSuccessfulPassGauge,
	)

	return m
}

// Handler returns a Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePass records a completed pass.
func (m *Metrics) ObservePass(trigger string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.passDurationSeconds.WithLabelValues(trigger).Observe(duration.Seconds())
	m.passesTotal.WithLabelValues(trigger, result(err)).Inc()
}

// IncAction counts one executed action.
func (m *Metrics) IncAction(action string, err error) {
	if m == nil {
		return
	}
	m.actionsTotal.WithLabelValues(action, result(err)).Inc()
}

// SetStatusLevel marks level as the published status level.
func (m *Metrics) SetStatusLevel(level string) {
	if m == nil {
		return
	}
	for _, candidate := range statusLevels {
		value := 0.0
		if candidate == level {
			value = 1
		}
		m.statusLevel.WithLabelValues(candidate).Set(value)
	}
}

// IncProbe counts one status probe outcome.
func (m *Metrics) IncProbe(outcome string) {
	if m == nil {
		return
	}
	m.probesTotal.WithLabelValues(outcome).Inc()
}

// IncNotification counts one notification delivery.
func (m *Metrics) IncNotification(err error) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(result(err)).Inc()
}

// SetLastSuccessfulPassTimestamp sets the last successful pass time.
func (m *Metrics) SetLastSuccessfulPassTimestamp(t time.Time) {
	if m == nil {
		return
	}
	m.lastSuccessfulPassGauge.Set(float64(t.Unix()))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
