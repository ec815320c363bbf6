package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/quang1403/ecommerce-backend/internal/api"
	"github.com/quang1403/ecommerce-backend/internal/cache"
	"github.com/quang1403/ecommerce-backend/internal/catalog"
	"github.com/quang1403/ecommerce-backend/internal/clickhouse"
	"github.com/quang1403/ecommerce-backend/internal/config"
	"github.com/quang1403/ecommerce-backend/internal/elasticsearch"
	"github.com/quang1403/ecommerce-backend/internal/firestore"
	"github.com/quang1403/ecommerce-backend/internal/indexing"
	"github.com/quang1403/ecommerce-backend/internal/kafka"
	"github.com/quang1403/ecommerce-backend/internal/observability"
	"github.com/quang1403/ecommerce-backend/internal/search"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting product search service",
		zap.String("service", cfg.Observability.ServiceName),
	)

	tracerShutdown, err := observability.InitTracer(cfg.Observability.ServiceName)
	if err != nil {
		logger.Warn("tracing initialization failed, continuing without tracing", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres is the one hard dependency: without the catalog there is
	// nothing to search. Everything else degrades gracefully.
	store, err := catalog.NewPostgresStore(cfg.Postgres, cfg.Search, logger)
	if err != nil {
		return fmt.Errorf("initializing postgres catalog: %w", err)
	}
	defer store.Close()

	var redisCache *cache.RedisCache
	redisCache, err = cache.NewRedisCache(cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis initialization failed, caching will be unavailable", zap.Error(err))
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	var chClient *clickhouse.Client
	chClient, err = clickhouse.NewClient(cfg.ClickHouse, logger)
	if err != nil {
		logger.Warn("clickhouse initialization failed, analytics will be unavailable", zap.Error(err))
		chClient = nil
	} else {
		defer chClient.Close()
		if err := chClient.EnsureTables(ctx); err != nil {
			logger.Warn("clickhouse table creation failed", zap.Error(err))
		}
	}

	var fsClient *firestore.Client
	if cfg.Firestore.ProjectID != "" {
		fsClient, err = firestore.NewClient(ctx, cfg.Firestore, logger)
		if err != nil {
			logger.Warn("firestore initialization failed, hydration will be unavailable", zap.Error(err))
			fsClient = nil
		} else {
			defer fsClient.Close()
		}
	}

	var analyticsWriter observability.AnalyticsWriter
	if chClient != nil {
		analyticsWriter = chClient
	}
	slowQueryDetector := observability.NewSlowQueryDetector(
		cfg.Search.SlowQuery.WarningThreshold,
		cfg.Search.SlowQuery.CriticalThreshold,
		logger,
		analyticsWriter,
	)

	engine := search.New(store, cfg.Search, logger, slowQueryDetector)

	producer := kafka.NewProducer(cfg.Kafka, logger)
	defer producer.Close()

	// The indexing pipeline needs the ES mirror; without it only the Kafka
	// consumer stays off, the search path is unaffected.
	var consumer *kafka.Consumer
	esClient, err := elasticsearch.NewClient(cfg.Elasticsearch, logger)
	if err != nil {
		logger.Warn("elasticsearch initialization failed, indexing pipeline disabled", zap.Error(err))
	} else {
		defer esClient.Close()

		streamProcessor := indexing.NewStreamProcessor(
			esClient, chClient, redisCache, cfg.Elasticsearch, cfg.Search.Retry, logger,
		)
		defer streamProcessor.Stop()

		consumer = kafka.NewConsumer(cfg.Kafka, streamProcessor.HandleEvent, logger)
		if err := consumer.Start(ctx); err != nil {
			logger.Warn("kafka consumer start failed, indexing pipeline disabled", zap.Error(err))
			consumer = nil
		} else {
			defer consumer.Stop()
		}
	}

	handler := api.NewHandler(engine, store, redisCache, producer, fsClient, chClient, logger)

	healthHandler := api.NewHealthHandler(logger)
	healthHandler.Register("postgres", store)
	if redisCache != nil {
		healthHandler.Register("redis", redisCache)
	}
	if chClient != nil {
		healthHandler.Register("clickhouse", chClient)
	}
	if fsClient != nil {
		healthHandler.Register("firestore", fsClient)
	}
	if esClient != nil {
		healthHandler.RegisterES(esClient)
	}
	if consumer != nil {
		healthHandler.Register("kafka", consumer)
	}

	router := api.NewRouter(handler, healthHandler, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		return err
	}

	logger.Info("starting graceful shutdown", zap.Duration("timeout", cfg.Server.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	cancel()

	if tracerShutdown != nil {
		if err := tracerShutdown(shutdownCtx); err != nil {
			logger.Error("tracer shutdown error", zap.Error(err))
		}
	}

	logger.Info("shutdown complete")
	return nil
}
