package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"github.com/nholik/craft-sentinel/internal/transition"
	"github.com/rs/zerolog"
)

const defaultWebhookTemplate = `{"service":"{{ .Service }}","transition":{{ toJson .Transition }}}`

// WebhookPayload is the template context for webhook notifications. Level,
// Message and Recovered repeat the transition for short templates.
type WebhookPayload struct {
	Service     string
	Level       string
	Message     string
	Recovered   bool
	Transition  transition.StatusTransition
	GeneratedAt time.Time
}

// WebhookNotifier sends transition notifications to a generic webhook.
type WebhookNotifier struct {
	logger   zerolog.Logger
	template *template.Template
	poster   *httpPoster
}

// NewWebhookNotifier creates a webhook notifier with the provided template.
// It returns nil when no URL is configured.
func NewWebhookNotifier(logger zerolog.Logger, webhookURL string, tmpl string) (*WebhookNotifier, error) {
	if webhookURL == "" {
		return nil, nil
	}
	if tmpl == "" {
		tmpl = defaultWebhookTemplate
	}

	parsed, err := template.New("webhook").Funcs(template.FuncMap{
		"toJson": func(v any) (string, error) {
			encoded, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			return string(encoded), nil
		},
	}).Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse webhook template: %w", err)
	}

	return &WebhookNotifier{
		logger:   logger,
		template: parsed,
		poster:   newHTTPPoster(logger, "webhook", webhookURL, "application/json", defaultTiming),
	}, nil
}

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, service string, change transition.StatusTransition) error {
	if n == nil {
		return nil
	}
	if service == "" {
		service = "minecraft"
	}

	if err := n.poster.waitForRateLimit(ctx, service); err != nil {
		return err
	}

	payload := WebhookPayload{
		Service:     service,
		Level:       string(change.CurrentLevel),
		Message:     change.CurrentMessage,
		Recovered:   change.Recovered(),
		Transition:  change,
		GeneratedAt: time.Now().UTC(),
	}

	var buf bytes.Buffer
	if err := n.template.Execute(&buf, payload); err != nil {
		return fmt.Errorf("render webhook template: %w", err)
	}
	if !json.Valid(buf.Bytes()) {
		return fmt.Errorf("webhook template rendered invalid JSON: %.120s", buf.String())
	}

	if err := n.poster.deliver(ctx, buf.Bytes()); err != nil {
		return err
	}

	n.logger.Debug().
		Str("service", service).
		Str("level", string(change.CurrentLevel)).
		Msg("webhook notification sent")

	return nil
}
