package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nholik/craft-sentinel/internal/health"
	"github.com/nholik/craft-sentinel/internal/transition"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

type SlackNotifier struct {
	logger     zerolog.Logger
	webhookURL string
	timing     timingConfig
	poster     *httpPoster
}

// SlackOption customizes SlackNotifier behavior.
type SlackOption func(*SlackNotifier)

// WithSlackTiming overrides timing parameters (primarily for testing).
func WithSlackTiming(rateInterval time.Duration, rateBurst int, backoffInitial, backoffMax, backoffMaxElapsed time.Duration) SlackOption {
	return func(s *SlackNotifier) {
		s.timing.rateInterval = rateInterval
		s.timing.rateBurst = rateBurst
		s.timing.backoffInitial = backoffInitial
		s.timing.backoffMax = backoffMax
		s.timing.backoffMaxElapsed = backoffMaxElapsed
	}
}

// NewSlackNotifier creates a Slack notifier or a noop notifier when the webhook is empty.
func NewSlackNotifier(logger zerolog.Logger, webhookURL string, opts ...SlackOption) Notifier {
	if webhookURL == "" {
		return NewNoop(logger, "slack webhook not configured; notifications disabled")
	}

	notifier := &SlackNotifier{
		logger:     logger,
		webhookURL: webhookURL,
		timing:     defaultTiming,
	}

	for _, opt := range opts {
		opt(notifier)
	}

	notifier.poster = newHTTPPoster(logger, "slack", webhookURL, "application/json", notifier.timing)

	return notifier
}

// Notify implements Notifier.
func (n *SlackNotifier) Notify(ctx context.Context, service string, change transition.StatusTransition) error {
	if service == "" {
		service = "minecraft"
	}
	if err := n.poster.waitForRateLimit(ctx, service); err != nil {
		return err
	}

	payload, err := json.Marshal(buildSlackMessage(service, change))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	if err := n.poster.deliver(ctx, payload); err != nil {
		return err
	}

	n.logger.Debug().
		Str("service", service).
		Str("level", string(change.CurrentLevel)).
		Msg("slack notification sent")

	return nil
}

func (n *SlackNotifier) postOnce(ctx context.Context, payload []byte) error {
	return n.poster.postOnce(ctx, payload)
}

func buildSlackMessage(service string, change transition.StatusTransition) slack.WebhookMessage {
	summary := fmt.Sprintf("%s is %s", service, levelLabel(change.CurrentLevel))
	if change.Recovered() && change.PreviousLevel != "" {
		summary = fmt.Sprintf("%s recovered", service)
	}
	header := slack.NewHeaderBlock(slack.NewTextBlockObject("plain_text", summary, false, false))

	title := fmt.Sprintf("`%s` → `%s`", levelLabel(change.PreviousLevel), levelLabel(change.CurrentLevel))
	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject("mrkdwn", "*Status:*\n"+messageLabel(change.CurrentMessage), false, false),
	}
	if change.PreviousMessage != "" {
		fields = append(fields, slack.NewTextBlockObject("mrkdwn", "*Previously:*\n"+change.PreviousMessage, false, false))
	}
	section := slack.NewSectionBlock(slack.NewTextBlockObject("mrkdwn", title, false, false), fields, nil)

	context := slack.NewContextBlock("",
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("Service: *%s*", service), false, false),
		slack.NewTextBlockObject("mrkdwn", change.At.UTC().Format(time.RFC3339), false, false),
	)

	blockSet := slack.Blocks{BlockSet: []slack.Block{header, section, context}}
	return slack.WebhookMessage{
		Text:   summary,
		Blocks: &blockSet,
	}
}

func levelLabel(level health.Level) string {
	if level == "" {
		return "UNKNOWN"
	}
	return string(level)
}

func messageLabel(message string) string {
	if message == "" {
		return "-"
	}
	return message
}
