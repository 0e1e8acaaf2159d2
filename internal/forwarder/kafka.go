// internal/forwarder/kafka.go - Kafka incident delivery
package forwarder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"hellobridge/internal/config"
	"hellobridge/internal/storage"
)

// KafkaForwarder publishes one message per incident, keyed by incident ID so
// redelivery lands in the same partition.
type KafkaForwarder struct {
	writer   *kafka.Writer
	attempts int
	delay    time.Duration
}

func newKafkaForwarder(cfg config.ForwarderConfig) *KafkaForwarder {
	return &KafkaForwarder{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Kafka.Brokers...),
			Topic:        cfg.Kafka.Topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		},
		attempts: cfg.MaxAttempts,
		delay:    cfg.RetryDelay,
	}
}

func (f *KafkaForwarder) Name() string { return "kafka" }

func (f *KafkaForwarder) Forward(ctx context.Context, incidents []*storage.Incident) error {
	if len(incidents) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(incidents))
	for _, incident := range incidents {
		data, err := json.Marshal(incident)
		if err != nil {
			return fmt.Errorf("failed to encode incident %s: %w", incident.ID, err)
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(incident.ID),
			Value: data,
			Time:  time.Now(),
		})
	}

	return withRetry(ctx, f.attempts, f.delay, func() error {
		return f.writer.WriteMessages(ctx, messages...)
	})
}

func (f *KafkaForwarder) Close() error {
	return f.writer.Close()
}
