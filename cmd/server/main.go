package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/economy-guard/internal/cache"
	"github.com/economy-guard/internal/catalog"
	"github.com/economy-guard/internal/config"
	"github.com/economy-guard/internal/handler"
	"github.com/economy-guard/internal/kafka"
	"github.com/economy-guard/internal/postgres"
	"github.com/economy-guard/internal/ratelimit"
	"github.com/economy-guard/internal/redis"
	"github.com/economy-guard/internal/store"
	"github.com/economy-guard/internal/validator"
	"github.com/economy-guard/internal/violation"
	"github.com/economy-guard/internal/websocket"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Select the persistent store; fall back to in-memory when Postgres
	// is not configured
	var st store.Store
	var postgresRepo *postgres.Repository
	if cfg.Postgres.Enabled {
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		postgresRepo, err = postgres.NewRepository(&cfg.Postgres, logger)
		if err != nil {
			logger.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer postgresRepo.Close()
		logger.Info("connected to PostgreSQL")

		// Run database migrations
		if err := postgresRepo.RunMigrations(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		st = postgresRepo
	} else {
		logger.Warn("PostgreSQL disabled, using in-memory store")
		st = store.NewMemoryStore()
	}

	// Initialize violation pipeline
	pipeline := violation.NewPipeline(st, cfg.Violations.BufferSize, cfg.Violations.FlushInterval, logger)

	// Optional Redis hot counters for critical violations
	var redisCounters *redis.CounterService
	if cfg.Redis.Enabled {
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		redisCounters, err = redis.NewCounterService(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("failed to connect to Redis, continuing without hot counters", "error", err)
		} else {
			defer redisCounters.Close()
			pipeline.SetHotCounters(redisCounters)
			logger.Info("connected to Redis")
		}
	}

	// Initialize WebSocket hub and wire it as the live violation feed
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	pipeline.SetNotifier(wsHub)
	logger.Info("WebSocket hub initialized")

	pipeline.Start()

	// Initialize validator service
	stateCache := cache.New(st, cfg.Cache.TTL, logger)
	limiter := ratelimit.NewFromConfig(&cfg.RateLimit)
	validatorService := validator.NewService(
		limiter,
		stateCache,
		st,
		catalog.NewDefaultProvider(),
		pipeline,
		logger,
	)

	// Live ops wiring: forced corrections fan out through the hub, watch
	// subscriptions get their snapshots from the validator, and summary
	// reads prefer the Redis mirror when it is up
	validatorService.SetCorrectionSink(wsHub)
	wsHub.SetStateSource(validatorService)
	if redisCounters != nil {
		validatorService.SetHotSummary(redisCounters)
	}

	// Initialize Kafka consumer for high-load event ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, validatorService, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler with WebSocket hub
	httpHandler := handler.NewHandler(validatorService, wsHub, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket endpoint available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server first so no new claims arrive
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Flush remaining analytics batches
	pipeline.Stop(shutdownCtx)

	// Stop WebSocket hub
	wsHub.Stop()

	logger.Info("server stopped")
}
