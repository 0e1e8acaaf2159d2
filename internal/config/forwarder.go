// internal/config/forwarder.go - Incident forwarder configuration
package config

import (
	"fmt"
	"time"
)

// Forwarder delivery modes
const (
	ForwarderNone    = "none"
	ForwarderKafka   = "kafka"
	ForwarderWebhook = "webhook"
)

// ForwarderConfig controls how ingested incidents are delivered to the
// orchestration host.
type ForwarderConfig struct {
	Mode        string        `yaml:"mode"` // none, kafka or webhook
	Kafka       KafkaConfig   `yaml:"kafka"`
	Webhook     WebhookConfig `yaml:"webhook"`
	MaxAttempts int           `yaml:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
}

// KafkaConfig holds the settings for the kafka delivery mode.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// WebhookConfig holds the settings for the webhook delivery mode.
type WebhookConfig struct {
	URL       string        `yaml:"url"`
	AuthToken string        `yaml:"auth_token,omitempty"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Enabled reports whether any delivery mode is configured.
func (f *ForwarderConfig) Enabled() bool {
	return f.Mode != "" && f.Mode != ForwarderNone
}

func (f *ForwarderConfig) setDefaults() {
	if f.Mode == "" {
		f.Mode = ForwarderNone
	}
	if f.MaxAttempts == 0 {
		f.MaxAttempts = 3
	}
	if f.RetryDelay == 0 {
		f.RetryDelay = 500 * time.Millisecond
	}
	if f.Kafka.BatchTimeout == 0 {
		f.Kafka.BatchTimeout = time.Second
	}
	if f.Webhook.Timeout == 0 {
		f.Webhook.Timeout = 10 * time.Second
	}
}

// Validate ensures the forwarder configuration is usable.
func (f *ForwarderConfig) Validate() error {
	switch f.Mode {
	case ForwarderNone:
		return nil
	case ForwarderKafka:
		if len(f.Kafka.Brokers) == 0 {
			return fmt.Errorf("forwarder.kafka.brokers is required when mode is kafka")
		}
		if f.Kafka.Topic == "" {
			return fmt.Errorf("forwarder.kafka.topic is required when mode is kafka")
		}
	case ForwarderWebhook:
		if f.Webhook.URL == "" {
			return fmt.Errorf("forwarder.webhook.url is required when mode is webhook")
		}
		if !isValidURL(f.Webhook.URL) {
			return fmt.Errorf("forwarder.webhook.url must be a valid http(s) URL")
		}
	default:
		return fmt.Errorf("forwarder.mode must be one of: none, kafka, webhook")
	}

	if f.MaxAttempts < 1 {
		return fmt.Errorf("forwarder.max_attempts must be at least 1")
	}
	if f.RetryDelay < 0 {
		return fmt.Errorf("forwarder.retry_delay must be non-negative")
	}

	return nil
}
