package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/storepulse/backend/config"
	httpDelivery "github.com/storepulse/backend/internal/delivery/http"
	"github.com/storepulse/backend/internal/domain"
	"github.com/storepulse/backend/internal/infrastructure/appstore"
	"github.com/storepulse/backend/internal/infrastructure/cache"
	"github.com/storepulse/backend/internal/infrastructure/logger"
	"github.com/storepulse/backend/internal/infrastructure/play"
	"github.com/storepulse/backend/internal/infrastructure/storage"
	"github.com/storepulse/backend/internal/infrastructure/transform"
	"github.com/storepulse/backend/internal/usecase"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output)
	defer zlog.Sync()

	zlog.Info("starting StorePulse backend",
		zap.String("version", "1.0.0"),
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store clients
	appStoreClient := appstore.NewClient(
		cfg.AppStore.APIBaseURL,
		cfg.AppStore.WebBaseURL,
		cfg.RateLimit.AppStore,
		zlog.Named("appstore"))
	playClient := play.NewClient(
		cfg.Play.BaseURL,
		cfg.RateLimit.Play,
		zlog.Named("play"))

	// Enrichment pipeline
	detailCache := cache.NewMemoryDetailCache()
	enricher := usecase.NewEnricher(detailCache, usecase.EnricherConfig{
		Concurrency: cfg.Pipeline.Concurrency,
		ReviewLimit: cfg.Pipeline.ReviewLimit,
		CacheTTL:    cfg.Pipeline.DetailCacheTTL,
	}, zlog.Named("enrich"))

	// Export pipeline stages
	var transformRunner domain.TransformRunner
	if cfg.Transform.Enabled {
		runner, err := transform.NewScriptRunner(
			cfg.Transform.Interpreter,
			cfg.Transform.Script,
			cfg.Transform.Timeout,
			zlog.Named("transform"))
		if err != nil {
			zlog.Fatal("transform runner init failed", zap.Error(err))
		}
		transformRunner = runner
	}

	var objectStore domain.ObjectStore
	if cfg.Storage.Enabled {
		s3Store, err := storage.NewS3ObjectStore(&cfg.Storage, zlog.Named("storage"))
		if err != nil {
			zlog.Fatal("object store init failed", zap.Error(err))
		}
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := s3Store.Ping(pingCtx); err != nil {
			cancel()
			zlog.Fatal("object store unreachable", zap.Error(err))
		}
		cancel()
		objectStore = s3Store
	}

	serializer := usecase.NewSerializer(cfg.Output.Delimiter, cfg.Output.Quote, cfg.Output.Escape)
	exportWorker := usecase.NewExportWorker(serializer, transformRunner, objectStore, usecase.ExportWorkerConfig{
		OutputDir: cfg.Output.Dir,
		Prefix:    cfg.Storage.Prefix,
		QueueSize: cfg.Output.QueueSize,
	}, zlog.Named("export"))
	if err := exportWorker.Start(ctx); err != nil {
		zlog.Fatal("export worker start failed", zap.Error(err))
	}

	catalogService := usecase.NewCatalogService(
		appStoreClient,
		playClient,
		enricher,
		exportWorker,
		zlog.Named("catalog"))

	// HTTP surface
	handler := httpDelivery.NewHandler(catalogService, exportWorker, cfg.Pipeline.RequestTimeout, zlog.Named("http"))
	router := httpDelivery.SetupRouter(cfg, handler)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		zlog.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server shutdown failed", zap.Error(err))
	}
	if err := exportWorker.Stop(shutdownCtx); err != nil {
		zlog.Error("export worker shutdown failed", zap.Error(err))
	}

	zlog.Info("shutdown complete")
}
