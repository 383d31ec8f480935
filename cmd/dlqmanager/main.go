package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/activitydirectory/internal/config"
	"example.com/activitydirectory/internal/logging"
	"example.com/activitydirectory/internal/outbox"
	httptransport "example.com/activitydirectory/internal/transport/http"
)

const defaultDLQBatchSize = 50

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("dlq-manager", "info", "json")
		boot.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New("dlq-manager", cfg.LogLevel, cfg.LogFormat)

	if !cfg.OutboxEnabled() {
		logger.Fatal().Msg("POSTGRES_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to postgres")
	}
	defer pool.Close()

	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay)

	metricsSrv := httptransport.NewMetricsServer(cfg.MetricsAddress)
	httptransport.Serve(metricsSrv, logger, "dlq manager metrics")

	ticker := time.NewTicker(cfg.DLQPollInterval)
	defer ticker.Stop()

	logger.Info().Dur("interval", cfg.DLQPollInterval).Int("max_retries", cfg.DLQMaxRetries).Msg("dlq manager started")

	run(ctx, ticker.C, func() {
		processed, err := manager.RunOnce(ctx, defaultDLQBatchSize)
		switch {
		case err != nil:
			logger.Error().Err(err).Msg("dlq pass failed")
		case processed > 0:
			logger.Info().Int("processed", processed).Msg("dlq pass complete")
		}
	})

	logger.Info().Msg("dlq manager received shutdown signal")
	if err := httptransport.Shutdown(metricsSrv, 10*time.Second); err != nil {
		logger.Error().Err(err).Msg("metrics server shutdown")
	}
}

func run(ctx context.Context, tick <-chan time.Time, pass func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			pass()
		}
	}
}
