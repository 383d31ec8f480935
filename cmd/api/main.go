package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"example.com/activitydirectory/internal/api"
	"example.com/activitydirectory/internal/catalog"
	"example.com/activitydirectory/internal/config"
	"example.com/activitydirectory/internal/domain"
	"example.com/activitydirectory/internal/logging"
	"example.com/activitydirectory/internal/outbox"
	"example.com/activitydirectory/internal/roster"
	httptransport "example.com/activitydirectory/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("activity-directory", "info", "json")
		boot.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New("activity-directory", cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := buildRoster(cfg.CatalogFile)
	if err != nil {
		logger.Fatal().Err(err).Str("catalog", cfg.CatalogFile).Msg("build roster")
	}

	opts := []domain.Option{domain.WithLogger(logger)}

	var dispatcher *outbox.Dispatcher
	if cfg.OutboxEnabled() {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect to postgres")
		}
		defer pool.Close()

		writer := outbox.NewKafkaWriter(cfg.KafkaBrokers)
		defer writer.Close()

		dispatcher = outbox.NewDispatcher(pool, writer, outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL),
			outbox.WithDispatchLogger(logger),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithRetryBaseDelay(cfg.DLQBaseDelay),
		)
		go dispatcher.Run(ctx)

		opts = append(opts, domain.WithRecorder(outbox.NewRecorder(pool)))
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Msg("enrollment outbox enabled")
	}

	router := newRouter(cfg, domain.NewService(repo, opts...), logger)

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), router)
	httptransport.Serve(server, logger, "activity-directory")

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownCh
	cancel()

	if err := httptransport.Shutdown(server, cfg.ShutdownTimeout); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if dispatcher != nil {
		<-dispatcher.Done()
	}
}

func buildRoster(catalogFile string) (*roster.MemoryRepository, error) {
	seed, err := catalog.Load(catalogFile)
	if err != nil {
		return nil, err
	}
	return roster.NewMemoryRepository(seed)
}

func newRouter(cfg config.Config, service *domain.Service, logger zerolog.Logger) http.Handler {
	return api.NewRouter(api.NewHandler(service, logger), api.RouterConfig{
		StaticDir:     cfg.StaticDir,
		AllowedOrigin: cfg.AllowedOrigin,
		Metrics:       true,
	}, logger)
}
