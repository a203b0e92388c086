// Package status publishes workload status reports: it persists the latest
// record, exports it as a metric and announces level transitions.
package status

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nholik/craft-sentinel/internal/health"
	"github.com/nholik/craft-sentinel/internal/metrics"
	"github.com/nholik/craft-sentinel/internal/notify"
	"github.com/nholik/craft-sentinel/internal/state"
	"github.com/nholik/craft-sentinel/internal/transition"
	"github.com/rs/zerolog"
)

// Sink is the single place status reports are published through.
type Sink struct {
	store    state.Store
	lock     *sync.Mutex
	metrics  *metrics.Metrics
	notifier notify.Notifier
	service  string
	logger   zerolog.Logger
	now      func() time.Time
}

// NewSink builds a Sink. lock must be shared with every other writer of store.
func NewSink(store state.Store, lock *sync.Mutex, metricsCollector *metrics.Metrics, notifier notify.Notifier, service string, logger zerolog.Logger) *Sink {
	return &Sink{
		store:    store,
		lock:     lock,
		metrics:  metricsCollector,
		notifier: notifier,
		service:  service,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ReportStatus persists report and notifies on level transitions. Delivery
// failures are logged, never returned.
func (s *Sink) ReportStatus(ctx context.Context, report health.Report) error {
	if !report.Level.Valid() {
		return fmt.Errorf("invalid status level %q", report.Level)
	}

	var previous state.StatusRecord
	current := state.StatusRecord{Level: report.Level, Message: report.Message, UpdatedAt: s.now()}
	_, err := state.Update(ctx, s.store, s.lock, func(st *state.State) error {
		previous = st.Status
		st.Status = current
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist status: %w", err)
	}

	s.metrics.SetStatusLevel(string(report.Level))
	s.logger.Info().
		Str("level", string(report.Level)).
		Str("message", report.Message).
		Msg("status reported")

	change := transition.Detect(previous, current)
	if change == nil || s.notifier == nil {
		return nil
	}
	notifyErr := s.notifier.Notify(ctx, s.service, *change)
	s.metrics.IncNotification(notifyErr)
	if notifyErr != nil {
		s.logger.Error().Err(notifyErr).
			Str("previous_level", string(change.PreviousLevel)).
			Str("current_level", string(change.CurrentLevel)).
			Msg("status notification failed")
	}
	return nil
}
