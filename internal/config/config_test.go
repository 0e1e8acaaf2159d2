// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
api:
  url: https://soar.example.com
  api_key: test-key
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.True(t, cfg.Fetch.IsEnabled())
	assert.Equal(t, time.Minute, cfg.Fetch.Interval)
	assert.Equal(t, 72*time.Hour, cfg.Fetch.FirstFetch)
	assert.Equal(t, 50, cfg.Fetch.MaxAlerts)
	assert.Equal(t, "Low", cfg.Fetch.MinSeverity)
	assert.Equal(t, 65, cfg.Reputation.IPThreshold)
	assert.Equal(t, 65, cfg.Reputation.DomainThreshold)
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "./data/hellobridge.db", cfg.Database.Path)
	assert.Equal(t, ForwarderNone, cfg.Forwarder.Mode)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadCapsMaxAlerts(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
fetch:
  max_alerts: 500
`))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Fetch.MaxAlerts)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errText string
	}{
		{
			name:    "missing url",
			content: "api:\n  api_key: k\n",
			errText: "api.url is required",
		},
		{
			name:    "bad url",
			content: "api:\n  url: soar.example.com\n  api_key: k\n",
			errText: "api.url must be a valid http(s) URL",
		},
		{
			name:    "missing api key",
			content: "api:\n  url: https://soar.example.com\n",
			errText: "api.api_key is required",
		},
		{
			name:    "interval too small",
			content: minimalConfig + "fetch:\n  interval: 1s\n",
			errText: "fetch.interval must be at least 10s",
		},
		{
			name:    "bad min severity",
			content: minimalConfig + "fetch:\n  min_severity: Urgent\n",
			errText: "fetch.min_severity must be one of",
		},
		{
			name:    "bad alert status",
			content: minimalConfig + "fetch:\n  alert_status: OPEN\n",
			errText: "fetch.alert_status must be either ACTIVE or CLOSED",
		},
		{
			name:    "bad threshold",
			content: minimalConfig + "reputation:\n  ip_threshold: 200\n",
			errText: "reputation.ip_threshold must be between 1 and 100",
		},
		{
			name:    "kafka without brokers",
			content: minimalConfig + "forwarder:\n  mode: kafka\n  kafka:\n    topic: incidents\n",
			errText: "forwarder.kafka.brokers is required",
		},
		{
			name:    "kafka without topic",
			content: minimalConfig + "forwarder:\n  mode: kafka\n  kafka:\n    brokers: [localhost:9092]\n",
			errText: "forwarder.kafka.topic is required",
		},
		{
			name:    "webhook without url",
			content: minimalConfig + "forwarder:\n  mode: webhook\n",
			errText: "forwarder.webhook.url is required",
		},
		{
			name:    "unknown forwarder mode",
			content: minimalConfig + "forwarder:\n  mode: carrier-pigeon\n",
			errText: "forwarder.mode must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestLoadFetchDisabled(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
fetch:
  enabled: false
`))
	require.NoError(t, err)
	assert.False(t, cfg.Fetch.IsEnabled())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HELLOBRIDGE_API_KEY", "env-key")
	t.Setenv("HELLOBRIDGE_KAFKA_BROKERS", "b1:9092, b2:9092")

	cfg, err := Load(writeConfig(t, `
api:
  url: https://soar.example.com
  api_key: file-key
forwarder:
  mode: kafka
  kafka:
    topic: incidents
`))
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.API.APIKey)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.Forwarder.Kafka.Brokers)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
