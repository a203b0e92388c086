package notify

import (
	"context"

	"github.com/nholik/craft-sentinel/internal/transition"
	"github.com/rs/zerolog"
)

// DryRunNotifier logs transitions without sending notifications.
type DryRunNotifier struct {
	logger zerolog.Logger
	inner  Notifier
}

// NewDryRunNotifier returns a notifier that suppresses delivery and logs instead.
func NewDryRunNotifier(logger zerolog.Logger, inner Notifier) *DryRunNotifier {
	return &DryRunNotifier{logger: logger, inner: inner}
}

// Notify implements Notifier.
func (n *DryRunNotifier) Notify(_ context.Context, service string, change transition.StatusTransition) error {
	targets := 1
	if multi, ok := n.inner.(*MultiNotifier); ok {
		targets = multi.Len()
	}
	n.logger.Info().
		Str("service", service).
		Int("targets", targets).
		Str("previous_level", string(change.PreviousLevel)).
		Str("current_level", string(change.CurrentLevel)).
		Str("message", change.CurrentMessage).
		Msg("[DRY-RUN] Would notify")
	return nil
}
