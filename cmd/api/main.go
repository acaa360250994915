package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/briefs"
	"server/internal/genlog"
	"server/internal/http/handlers"
	"server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/pipeline"
	"server/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	store, err := newStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage backend")
	}

	briefSvc := briefs.NewService(store)
	logSvc := genlog.NewService(store)

	orchestrator := pipeline.NewOrchestrator(briefSvc, logSvc, store, cfg, logger)
	dispatcher := pipeline.NewDispatcher(orchestrator, cfg.GenerationWorkers, cfg.GenerationWorkers*4, logger)

	app := handlers.NewApp(briefSvc, store, orchestrator, dispatcher, cfg.AutoGenerateUpload, logger)
	router := httpapi.NewRouter(app, cfg.CORSOrigins, logger)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("storage_backend", cfg.StorageBackend).
			Str("provider", cfg.GenAIProvider).
			Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}

	// Let queued campaign generations finish before exiting.
	dispatcher.Close()
	logger.Info().Msg("server stopped")
}

func newStore(ctx context.Context, cfg *infra.Config) (storage.Store, error) {
	if cfg.StorageBackend == infra.StorageBackendS3 {
		return storage.NewS3Store(ctx, storage.S3Options{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			Endpoint:   cfg.S3Endpoint,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			BasePrefix: cfg.S3BasePrefix,
			LinkTTL:    cfg.TempLinkTTL,
		})
	}
	return storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
}
