package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	redisAdapter "github.com/hobby-app/marketplace/internal/adapter/cache/redis"
	mongoAdapter "github.com/hobby-app/marketplace/internal/adapter/mongo"
	natsAdapter "github.com/hobby-app/marketplace/internal/adapter/nats"
	s3Adapter "github.com/hobby-app/marketplace/internal/adapter/storage/s3"
	"github.com/hobby-app/marketplace/internal/config"
	"github.com/hobby-app/marketplace/internal/platform/metrics"
	"github.com/hobby-app/marketplace/internal/port/rest"
	"github.com/hobby-app/marketplace/internal/usecase"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	configPath := "config.yaml"
	if cp := os.Getenv("CONFIG_PATH"); cp != "" {
		configPath = cp
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapConfig := zap.NewProductionConfig()
	logger, err := zapConfig.Build()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		zap.String("http_port", cfg.HTTP.Port),
		zap.String("mongo_database", cfg.Mongo.Database),
	)

	mongoClient, err := mongoAdapter.NewMongoDBConnection(&cfg.Mongo)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Error("Failed to disconnect MongoDB", zap.Error(err))
		}
	}()
	logger.Info("Successfully connected to MongoDB")

	if err := mongoAdapter.EnsureIndexes(context.Background(), mongoClient, cfg.Mongo.Database); err != nil {
		logger.Fatal("Failed to ensure listing indexes", zap.Error(err))
	}

	listingRepo := mongoAdapter.NewListingMongoRepository(mongoClient, cfg.Mongo.Database)
	sellerRepo := mongoAdapter.NewSellerMongoRepository(mongoClient, cfg.Mongo.Database)

	redisClient, err := redisAdapter.NewRedisClient(&cfg.Redis, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	cacheRepo := redisAdapter.NewRedisCacheRepository(redisClient, logger)

	natsPublisher, err := natsAdapter.NewNATSPublisher(&cfg.NATS, logger)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsPublisher.Close()

	imageStorage, err := s3Adapter.NewS3Storage(&cfg.MinIO, logger)
	if err != nil {
		logger.Fatal("Failed to initialize image storage", zap.Error(err))
	}

	mm := metrics.NewMetricsManager("hobby_marketplace")
	go func() {
		if err := metrics.StartMetricsServer(cfg.Metrics.Port, logger, mm.Registry); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()

	feedUC := usecase.NewFeedUseCase(listingRepo, mm, logger, cfg.Feed.MaxSampleCount)
	listingUC := usecase.NewListingUseCase(listingRepo, sellerRepo, cacheRepo, natsPublisher, imageStorage, mm, logger)
	sellerUC := usecase.NewSellerUseCase(sellerRepo, cacheRepo, logger)

	listingHandler := rest.NewListingHandler(feedUC, listingUC, logger)
	sellerHandler := rest.NewSellerHandler(sellerUC, logger)

	server := rest.NewServer(cfg, listingHandler, sellerHandler, mm, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	case sig := <-quit:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", zap.Error(err))
		}
	}
}
