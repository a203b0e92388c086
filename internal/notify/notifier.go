package notify

import (
	"context"

	"github.com/nholik/craft-sentinel/internal/transition"
)

// Notifier delivers status transition alerts to external systems.
type Notifier interface {
	Notify(ctx context.Context, service string, change transition.StatusTransition) error
}
