package alerting

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Notifier delivers a rendered message. Implementations report failure; the
// caller decides what a failed delivery means for its own state.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// WebhookOptions parameterise the outgoing webhook.
type WebhookOptions struct {
	URL        string
	PayloadKey string
	VerifyTLS  bool
	Timeout    time.Duration
}

// WebhookNotifier posts messages to a Logic App style webhook. The payload
// carries the text both under the configured key and as an adaptive-card
// attachment, so endpoints reading either shape work.
type WebhookNotifier struct {
	opts   WebhookOptions
	client *http.Client
	logger zerolog.Logger
}

// NewWebhookNotifier constructs the webhook notifier. The client timeout is a
// hard ceiling so a hung endpoint can never stall the poll loop.
func NewWebhookNotifier(opts WebhookOptions, logger zerolog.Logger) *WebhookNotifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.PayloadKey == "" {
		opts.PayloadKey = "text"
	}

	client := &http.Client{Timeout: opts.Timeout}
	if !opts.VerifyTLS {
		// Clone keeps the default proxy and dial settings.
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		client.Transport = transport
	}

	return &WebhookNotifier{
		opts:   opts,
		client: client,
		logger: logger.With().Str("component", "webhook_notifier").Logger(),
	}
}

// Notify performs one synchronous delivery attempt.
func (n *WebhookNotifier) Notify(ctx context.Context, message string) error {
	if n.opts.URL == "" {
		return fmt.Errorf("webhook url not configured")
	}

	body, err := json.Marshal(buildPayload(message, n.opts.PayloadKey))
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.opts.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	n.logger.Info().Int("status", resp.StatusCode).Msg("notification delivered")
	return nil
}

func buildPayload(message, payloadKey string) map[string]any {
	return map[string]any{
		payloadKey: message,
		"attachments": []map[string]any{{
			"contentType": "application/vnd.microsoft.card.adaptive",
			"content": map[string]any{
				"$schema": "http://adaptivecards.io/schemas/adaptive-card.json",
				"type":    "AdaptiveCard",
				"version": "1.4",
				"body": []map[string]any{
					{"type": "TextBlock", "size": "Large", "weight": "Bolder", "text": "Temperature Monitor"},
					{"type": "TextBlock", "text": message},
				},
			},
		}},
	}
}

var _ Notifier = (*WebhookNotifier)(nil)
