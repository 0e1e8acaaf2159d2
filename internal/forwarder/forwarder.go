// internal/forwarder/forwarder.go - Incident delivery to the orchestration host
package forwarder

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"hellobridge/internal/config"
	"hellobridge/internal/storage"
)

// Forwarder is a generic transport for handing ingested incidents to the
// orchestration host (Kafka, HTTP, etc.)
type Forwarder interface {
	Name() string
	Forward(ctx context.Context, incidents []*storage.Incident) error
	Close() error
}

// New builds the forwarder selected by cfg.Mode.
func New(cfg config.ForwarderConfig) (Forwarder, error) {
	switch cfg.Mode {
	case config.ForwarderKafka:
		return newKafkaForwarder(cfg), nil
	case config.ForwarderWebhook:
		return newWebhookForwarder(cfg), nil
	case config.ForwarderNone, "":
		return &noopForwarder{}, nil
	default:
		return nil, fmt.Errorf("unknown forwarder mode %q", cfg.Mode)
	}
}

// withRetry runs send with bounded exponential backoff. Host-bus delivery is
// the one place retries happen; vendor-API calls are never retried.
func withRetry(ctx context.Context, attempts int, delay time.Duration, send func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	backoff := delay
	for attempt := 1; attempt <= attempts; attempt++ {
		err = send()
		if err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		logrus.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"backoff": backoff,
		}).Warn("Forward failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

// noopForwarder drops batches; used when no host bus is configured.
type noopForwarder struct{}

func (n *noopForwarder) Name() string { return "none" }

func (n *noopForwarder) Forward(ctx context.Context, incidents []*storage.Incident) error {
	return nil
}

func (n *noopForwarder) Close() error { return nil }
