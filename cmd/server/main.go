// Package main runs the video asset studio HTTP server with WebSocket event
// streaming and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/studiokit/imagekit-backend/config"
	"github.com/studiokit/imagekit-backend/internal/assets"
	"github.com/studiokit/imagekit-backend/internal/auth"
	"github.com/studiokit/imagekit-backend/internal/imagekit"
	"github.com/studiokit/imagekit-backend/internal/importer"
	"github.com/studiokit/imagekit-backend/internal/middleware"
	"github.com/studiokit/imagekit-backend/internal/models"
	"github.com/studiokit/imagekit-backend/internal/secrets"
	"github.com/studiokit/imagekit-backend/internal/uploads"
	"github.com/studiokit/imagekit-backend/internal/worker"
	"github.com/studiokit/imagekit-backend/pkg/database"
	"github.com/studiokit/imagekit-backend/pkg/queue"
	"github.com/studiokit/imagekit-backend/pkg/redis"
	"github.com/studiokit/imagekit-backend/pkg/response"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	vendorClient := imagekit.NewClient(cfg.ImageKit.APIBaseURL, cfg.ImageKit.UploadBaseURL, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Secrets (stored credentials with env fallbacks)
	envSecrets := models.Secrets{
		PublicKey:   cfg.ImageKit.PublicKey,
		PrivateKey:  cfg.ImageKit.PrivateKey,
		URLEndpoint: cfg.ImageKit.URLEndpoint,
	}
	secretsRepo := secrets.NewRepository(pool)
	secretsSvc := secrets.NewService(secretsRepo, envSecrets, logger)
	secretsHandler := secrets.NewHandler(secretsSvc, vendorClient, logger)

	// Upload auth parameters
	authParamsHandler := imagekit.NewHandler(secretsSvc, cfg.ImageKit.AuthExpirySec, logger)

	// Assets
	assetRepo := assets.NewRepository(pool)
	assetWriter := assets.NewWriter(assetRepo, logger)
	assetHandler := assets.NewHandler(assetRepo, secretsSvc, vendorClient, logger)

	// Upload orchestration
	transport := uploads.NewChain(logger,
		uploads.NewSignedTransport(vendorClient, uploads.LocalAuthSource{TTL: time.Duration(cfg.ImageKit.AuthExpirySec) * time.Second}),
		uploads.NewPrivateKeyTransport(vendorClient),
	)
	fetcher := uploads.NewURLFetcher(
		time.Duration(cfg.Upload.FetchTimeout)*time.Second,
		int64(cfg.Upload.MaxFileSizeMB)*1024*1024,
	)
	events := uploads.NewBroadcaster()
	orchestrator := uploads.NewOrchestrator(transport, secretsSvc, assetWriter, vendorClient, fetcher, events, logger)
	uploadHandler := uploads.NewHandler(orchestrator, cfg.Upload.MaxFileSizeMB, logger)

	// Importer (remote library browsing + bulk import jobs)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	importRepo := importer.NewRepository(pool)
	importSvc := importer.NewImporter(vendorClient, assetRepo, cfg.Upload.ImportLimit, logger)
	importHandler := importer.NewHandler(importSvc, importRepo, secretsSvc, jobQueue, logger)
	importProcessor := worker.NewImportProcessor(importRepo, importSvc, secretsSvc, jobQueue, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Upload auth parameters for client-side signed uploads. Public: the
	// signature is short-lived and single-use, and browser upload widgets
	// call it directly.
	router.GET("/api/imagekit/auth", authParamsHandler.Auth)

	// Protected API (JWT required)
	api := router.Group("/api/imagekit")
	api.Use(middleware.JWT(jwtService))
	{
		// Users (admin only)
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		// Credentials
		api.GET("/secrets", secretsHandler.Get)
		api.PUT("/secrets", middleware.RequireRole("admin"), secretsHandler.Save)
		api.POST("/secrets/test", secretsHandler.Test)

		// Upload orchestration
		api.POST("/uploads/stage", uploadHandler.Stage)
		api.POST("/uploads/commit", uploadHandler.Commit)
		api.POST("/uploads/cancel", uploadHandler.Cancel)
		api.DELETE("/cancel/:id", uploadHandler.CancelSession)
		api.POST("/uploads/reset", uploadHandler.Reset)
		api.GET("/uploads/status", uploadHandler.Status)
		api.GET("/uploads/events", uploadHandler.Events)

		// Assets
		api.GET("/assets", assetHandler.List)
		api.GET("/assets/:id", assetHandler.Get)
		api.POST("/assets/:id/refresh", assetHandler.Refresh)
		api.PATCH("/assets/:id/thumbnail", assetHandler.PatchThumbnail)
		api.DELETE("/assets/:id", assetHandler.Delete)

		// Document field references
		api.PUT("/documents/:id/fields/:field", assetHandler.Link)
		api.DELETE("/documents/:id/fields/:field", assetHandler.Unlink)
		api.GET("/documents/:id/fields/:field", assetHandler.GetDocumentAsset)

		// Remote media library browsing and bulk import
		api.GET("/browse/files", importHandler.BrowseFiles)
		api.GET("/browse/folders", importHandler.BrowseFolders)
		api.POST("/imports", importHandler.CreateJob)
		api.GET("/imports", importHandler.ListJobs)
		api.GET("/imports/:id", importHandler.GetJob)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (bulk asset imports)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go importProcessor.Run(workerCtx)
	logger.Info("import worker started")

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
