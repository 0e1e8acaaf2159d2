// internal/forwarder/webhook.go - HTTP incident delivery
package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"hellobridge/internal/config"
	"hellobridge/internal/storage"
)

// WebhookForwarder POSTs each incident batch as one JSON array.
type WebhookForwarder struct {
	url      string
	token    string
	client   *http.Client
	attempts int
	delay    time.Duration
}

func newWebhookForwarder(cfg config.ForwarderConfig) *WebhookForwarder {
	return &WebhookForwarder{
		url:   cfg.Webhook.URL,
		token: cfg.Webhook.AuthToken,
		client: &http.Client{
			Timeout: cfg.Webhook.Timeout,
		},
		attempts: cfg.MaxAttempts,
		delay:    cfg.RetryDelay,
	}
}

func (f *WebhookForwarder) Name() string { return "webhook" }

func (f *WebhookForwarder) Forward(ctx context.Context, incidents []*storage.Incident) error {
	if len(incidents) == 0 {
		return nil
	}

	body, err := json.Marshal(incidents)
	if err != nil {
		return fmt.Errorf("failed to encode incident batch: %w", err)
	}

	return withRetry(ctx, f.attempts, f.delay, func() error {
		return f.post(ctx, body)
	})
}

func (f *WebhookForwarder) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

func (f *WebhookForwarder) Close() error { return nil }
