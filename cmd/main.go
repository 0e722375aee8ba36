package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RishiKendai/veritas/internal/api"
	"github.com/RishiKendai/veritas/internal/config"
	"github.com/RishiKendai/veritas/internal/configs/env"
	"github.com/RishiKendai/veritas/internal/infra/mongo"
	redisInfra "github.com/RishiKendai/veritas/internal/infra/redis"
	"github.com/RishiKendai/veritas/internal/ingest"
	"github.com/RishiKendai/veritas/internal/logger"
	"github.com/RishiKendai/veritas/internal/metrics"
	"github.com/RishiKendai/veritas/internal/plagiarism"
	"github.com/RishiKendai/veritas/internal/repository"
	"github.com/RishiKendai/veritas/internal/stream"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := env.LoadEnv(); err != nil {
		log.Warn().Err(err).Msg("Failed to load .env file, continuing with system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid configuration: %v", err))
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log.Info().Msg("Starting Veritas server")

	metrics.InitPrometheus()
	metricsServer := api.StartMetricsServer(cfg.MetricsPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect MongoDB
	mongoClient, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create MongoDB client")
	}
	defer mongoClient.Close(context.Background())

	// Connect Redis
	redisClient, err := redisInfra.NewClient(ctx, cfg.RedisHost, cfg.RedisPassword, 0)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Redis client")
	}
	defer redisClient.Close()

	// Initialize repositories
	mongoRepo := repository.NewMongoRepository(mongoClient)
	documentsRepo := repository.NewDocumentsRepository(mongoRepo)
	reportsRepo := repository.NewReportsRepository(mongoRepo)
	adminsRepo := repository.NewAdminsRepository(mongoRepo)

	thresholds := cfg.Thresholds()
	if err := documentsRepo.EnsureIndexes(ctx, thresholds.DuplicatePolicy); err != nil {
		log.Fatal().Err(err).Msg("Failed to create document indexes")
	}
	if err := reportsRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to create report indexes")
	}

	if cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		if err := adminsRepo.UpsertAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			log.Fatal().Err(err).Msg("Failed to bootstrap admin account")
		}
		log.Info().Str("username", cfg.AdminUsername).Msg("Admin account ready")
	}

	// Initialize worker pool
	workerPool := plagiarism.NewWorkerPool(ctx)
	defer workerPool.Close()

	statusTracker := plagiarism.NewStatusTracker(redisClient.Client)
	engine := plagiarism.NewEngine(documentsRepo, thresholds,
		plagiarism.WithWorkerPool(workerPool),
		plagiarism.WithStageObserver(statusTracker),
	)
	ingestSvc := ingest.NewService(engine, reportsRepo)

	// Initialize Redis stream consumer
	retryHandler := stream.NewRetryHandler(redisClient.Client, cfg.RedisDeadLetterKey)
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	consumerName := fmt.Sprintf("consumer-%s-%d-%s", hostname, os.Getpid(), uuid.New().String()[:8])
	consumer := stream.NewConsumer(
		redisClient.Client,
		cfg.RedisIngestStreamKey,
		cfg.RedisConsumerGroup,
		consumerName,
		ingestSvc,
		retryHandler,
		cfg.StreamRetention(),
	)

	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Redis consumer error")
		}
	}()
	log.Info().Str("consumer_name", consumerName).Msg("Redis consumer started")

	if cfg.IngestWatchDir != "" {
		watcher := ingest.NewWatcher(cfg.IngestWatchDir, ingestSvc)
		go func() {
			count, err := watcher.IngestExisting(ctx)
			if err != nil {
				log.Error().Err(err).Msg("Failed to ingest existing files")
			} else {
				log.Info().Int("count", count).Str("dir", cfg.IngestWatchDir).Msg("Ingested existing files")
			}
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Directory watcher error")
			}
		}()
	}

	handler := api.NewHandler(cfg, ingestSvc, documentsRepo, reportsRepo, statusTracker, adminsRepo)
	router := api.SetupRoutes(cfg, handler)
	srv := api.StartServer(router, cfg.ServerPort)

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down gracefully...")

	if err := api.ShutdownServer(srv, 30*time.Second); err != nil {
		log.Error().Err(err).Msg("Error shutting down HTTP server")
	}

	// Stops the consumer, the watcher and the worker pool
	cancel()

	if err := api.ShutdownServer(metricsServer, 5*time.Second); err != nil {
		log.Error().Err(err).Msg("Error shutting down metrics server")
	}

	log.Info().Msg("Shutdown complete")
}
