// Package config centralises configuration parsing for the activity directory.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures runtime configuration values for the directory binaries.
type Config struct {
	HTTPAddress     string        `env:"HTTP_ADDRESS"      envDefault:":8080"`
	MetricsAddress  string        `env:"METRICS_ADDRESS"   envDefault:":9195"`
	StaticDir       string        `env:"STATIC_DIR"        envDefault:"static"`
	CatalogFile     string        `env:"CATALOG_FILE"`
	AllowedOrigin   string        `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:5173"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"  envDefault:"15s"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// PostgresURL enables the enrollment outbox when set.
	PostgresURL        string        `env:"POSTGRES_URL"`
	KafkaBrokers       []string      `env:"KAFKA_BROKERS"        envDefault:"kafka:9092" envSeparator:","`
	SchemaRegistryURL  string        `env:"SCHEMA_REGISTRY_URL"  envDefault:"http://schema-registry:8081"`
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE"    envDefault:"25"`

	ConsumerGroupID string   `env:"CONSUMER_GROUP_ID" envDefault:"activity-directory-audit"`
	ConsumerTopics  []string `env:"CONSUMER_TOPICS"   envDefault:"activity_enrollments" envSeparator:","`

	DLQPollInterval time.Duration `env:"DLQ_POLL_INTERVAL" envDefault:"30s"` // Interval between DLQ polling iterations.
	DLQMaxRetries   int           `env:"DLQ_MAX_RETRIES"   envDefault:"5"`   // Retries before an entry is quarantined.
	DLQBaseDelay    time.Duration `env:"DLQ_BASE_DELAY"    envDefault:"1m"`  // Base delay for exponential backoff.
}

// Load reads environment variables into Config, applying defaults for local dev.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// OutboxEnabled reports whether roster changes should be written to Postgres.
func (c Config) OutboxEnabled() bool {
	return c.PostgresURL != ""
}
