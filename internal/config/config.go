// internal/config/config.go - HelloBridge configuration
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"hellobridge/internal/helloworld"
)

type Config struct {
	API        APIConfig        `yaml:"api"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Reputation ReputationConfig `yaml:"reputation"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Forwarder  ForwarderConfig  `yaml:"forwarder"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// APIConfig holds the HelloWorld service connection settings.
type APIConfig struct {
	URL      string        `yaml:"url"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
	Insecure bool          `yaml:"insecure"`
	Proxy    string        `yaml:"proxy"`
}

// FetchConfig controls the periodic alert poller.
type FetchConfig struct {
	Enabled     *bool         `yaml:"enabled"`
	Interval    time.Duration `yaml:"interval"`
	FirstFetch  time.Duration `yaml:"first_fetch"` // how far back the first cycle looks
	MaxAlerts   int           `yaml:"max_alerts"`
	MinSeverity string        `yaml:"min_severity"`
	AlertStatus string        `yaml:"alert_status"`
	AlertType   string        `yaml:"alert_type"`
}

// IsEnabled reports whether periodic fetching is on (default true).
func (f *FetchConfig) IsEnabled() bool {
	if f.Enabled == nil {
		return true
	}
	return *f.Enabled
}

// ReputationConfig holds the default verdict thresholds. Both can be
// overridden per request.
type ReputationConfig struct {
	IPThreshold     int `yaml:"ip_threshold"`
	DomainThreshold int `yaml:"domain_threshold"`
}

type ServerConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Path            string        `yaml:"path"`
	Retention       time.Duration `yaml:"retention"`
	PurgeInterval   time.Duration `yaml:"purge_interval"`
	CompactInterval time.Duration `yaml:"compact_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML config at filename, applies environment overrides,
// fills in defaults and validates the result. A .env file in the working
// directory is honored when present.
func Load(filename string) (*Config, error) {
	config, err := loadConfigFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Optional .env file; secrets usually arrive this way
	_ = godotenv.Load()
	applyEnv(config)

	setDefaults(config)

	if err := validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func loadConfigFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &config, nil
}

// applyEnv overrides selected settings from the environment so secrets can
// stay out of the config file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("HELLOBRIDGE_API_URL"); v != "" {
		cfg.API.URL = v
	}
	if v := os.Getenv("HELLOBRIDGE_API_KEY"); v != "" {
		cfg.API.APIKey = v
	}
	if v := os.Getenv("HELLOBRIDGE_KAFKA_BROKERS"); v != "" {
		cfg.Forwarder.Kafka.Brokers = splitAndTrim(v)
	}
	if v := os.Getenv("HELLOBRIDGE_WEBHOOK_URL"); v != "" {
		cfg.Forwarder.Webhook.URL = v
	}
	if v := os.Getenv("HELLOBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func setDefaults(cfg *Config) {
	// API defaults
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 30 * time.Second
	}

	// Fetch defaults
	if cfg.Fetch.Interval == 0 {
		cfg.Fetch.Interval = time.Minute
	}
	if cfg.Fetch.FirstFetch == 0 {
		cfg.Fetch.FirstFetch = 72 * time.Hour
	}
	if cfg.Fetch.MaxAlerts == 0 || cfg.Fetch.MaxAlerts > helloworld.MaxAlertsToFetch {
		cfg.Fetch.MaxAlerts = helloworld.MaxAlertsToFetch
	}
	if cfg.Fetch.MinSeverity == "" {
		cfg.Fetch.MinSeverity = "Low"
	}

	// Reputation defaults
	if cfg.Reputation.IPThreshold == 0 {
		cfg.Reputation.IPThreshold = helloworld.DefaultReputationThreshold
	}
	if cfg.Reputation.DomainThreshold == 0 {
		cfg.Reputation.DomainThreshold = helloworld.DefaultReputationThreshold
	}

	// Server defaults
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}

	// Database defaults
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/hellobridge.db"
	}
	if cfg.Database.Retention == 0 {
		cfg.Database.Retention = 30 * 24 * time.Hour
	}
	if cfg.Database.PurgeInterval == 0 {
		cfg.Database.PurgeInterval = 24 * time.Hour
	}

	// Forwarder defaults
	cfg.Forwarder.setDefaults()

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

func validate(cfg *Config) error {
	if cfg.API.URL == "" {
		return fmt.Errorf("api.url is required")
	}
	if !isValidURL(cfg.API.URL) {
		return fmt.Errorf("api.url must be a valid http(s) URL")
	}
	if cfg.API.APIKey == "" {
		return fmt.Errorf("api.api_key is required (set HELLOBRIDGE_API_KEY or api.api_key)")
	}

	if cfg.Fetch.Interval < 10*time.Second {
		return fmt.Errorf("fetch.interval must be at least 10s")
	}
	if cfg.Fetch.FirstFetch <= 0 {
		return fmt.Errorf("fetch.first_fetch must be positive")
	}
	if cfg.Fetch.MaxAlerts < 1 {
		return fmt.Errorf("fetch.max_alerts must be at least 1")
	}
	if !helloworld.ValidSeverity(cfg.Fetch.MinSeverity) {
		return fmt.Errorf("fetch.min_severity must be one of: %s", strings.Join(helloworld.Severities, ", "))
	}
	if cfg.Fetch.AlertStatus != "" && !helloworld.ValidStatus(cfg.Fetch.AlertStatus) {
		return fmt.Errorf("fetch.alert_status must be either ACTIVE or CLOSED")
	}

	if cfg.Reputation.IPThreshold < 1 || cfg.Reputation.IPThreshold > 100 {
		return fmt.Errorf("reputation.ip_threshold must be between 1 and 100")
	}
	if cfg.Reputation.DomainThreshold < 1 || cfg.Reputation.DomainThreshold > 100 {
		return fmt.Errorf("reputation.domain_threshold must be between 1 and 100")
	}

	if cfg.Database.Path == "" {
		return fmt.Errorf("database.path cannot be empty")
	}
	if cfg.Database.Retention < time.Hour {
		return fmt.Errorf("database.retention must be at least 1h")
	}

	if err := cfg.Forwarder.Validate(); err != nil {
		return err
	}

	return nil
}

// isValidURL checks if a string looks like an http(s) URL
func isValidURL(str string) bool {
	return strings.HasPrefix(str, "http://") || strings.HasPrefix(str, "https://")
}

func splitAndTrim(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
