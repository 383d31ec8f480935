package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, "static", cfg.StaticDir)
	require.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	require.Equal(t, 25, cfg.OutboxBatchSize)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.False(t, cfg.OutboxEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDRESS", ":9000")
	t.Setenv("POSTGRES_URL", "postgres://u:p@localhost:5432/activities")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("DLQ_BASE_DELAY", "10s")
	t.Setenv("CATALOG_FILE", "/etc/activities.yaml")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.HTTPAddress)
	require.True(t, cfg.OutboxEnabled())
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 10*time.Second, cfg.DLQBaseDelay)
	require.Equal(t, "/etc/activities.yaml", cfg.CatalogFile)
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	t.Setenv("OUTBOX_POLL_INTERVAL", "soon")

	_, err := Load()
	require.Error(t, err)
}
