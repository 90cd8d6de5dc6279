// Package notify delivers alert notifications to a Slack incoming
// webhook. Failures are always surfaced to the caller as errors and
// never as panics; callers decide whether the originating action
// should proceed.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/slack-go/slack"
)

// ErrDisabled is returned by Send when Slack notification is switched
// off by configuration.
var ErrDisabled = errors.New("slack notifications disabled")

// webhookTimeout bounds every outbound webhook call.
const webhookTimeout = 10 * time.Second

// Slack posts messages to a configured incoming webhook URL.
type Slack struct {
	enabled    bool
	webhookURL string
	client     *http.Client
}

// NewSlack creates the notifier. With enabled false, Send becomes a
// no-op reported via ErrDisabled.
func NewSlack(enabled bool, webhookURL string) *Slack {
	return &Slack{
		enabled:    enabled,
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: webhookTimeout},
	}
}

// Enabled reports whether messages will actually be delivered.
func (s *Slack) Enabled() bool {
	return s.enabled
}

// Send posts a text message to the webhook. Any HTTP status >= 300 is a
// failure.
func (s *Slack) Send(ctx context.Context, text string) error {
	if !s.enabled {
		return ErrDisabled
	}
	if s.webhookURL == "" {
		return errors.New("SLACK_WEBHOOK_URL is not set")
	}

	ctx, cancel := context.WithTimeout(ctx, webhookTimeout)
	defer cancel()

	msg := &slack.WebhookMessage{Text: text}
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.webhookURL, s.client, msg); err != nil {
		return fmt.Errorf("slack webhook failed: %w", err)
	}
	return nil
}
