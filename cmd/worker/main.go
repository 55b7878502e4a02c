// Package main runs the background job worker (bulk asset imports).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/studiokit/imagekit-backend/config"
	"github.com/studiokit/imagekit-backend/internal/assets"
	"github.com/studiokit/imagekit-backend/internal/imagekit"
	"github.com/studiokit/imagekit-backend/internal/importer"
	"github.com/studiokit/imagekit-backend/internal/models"
	"github.com/studiokit/imagekit-backend/internal/secrets"
	"github.com/studiokit/imagekit-backend/internal/worker"
	"github.com/studiokit/imagekit-backend/pkg/database"
	"github.com/studiokit/imagekit-backend/pkg/queue"
	"github.com/studiokit/imagekit-backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	vendorClient := imagekit.NewClient(cfg.ImageKit.APIBaseURL, cfg.ImageKit.UploadBaseURL, logger)

	envSecrets := models.Secrets{
		PublicKey:   cfg.ImageKit.PublicKey,
		PrivateKey:  cfg.ImageKit.PrivateKey,
		URLEndpoint: cfg.ImageKit.URLEndpoint,
	}
	secretsSvc := secrets.NewService(secrets.NewRepository(pool), envSecrets, logger)

	assetRepo := assets.NewRepository(pool)
	importRepo := importer.NewRepository(pool)
	importSvc := importer.NewImporter(vendorClient, assetRepo, cfg.Upload.ImportLimit, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewImportProcessor(importRepo, importSvc, secretsSvc, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
