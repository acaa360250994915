package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/joho/godotenv"

	"server/internal/briefs"
	"server/internal/genlog"
	"server/internal/infra"
	"server/internal/pipeline"
	"server/internal/storage"
)

// generate runs the creative pipeline once for a single campaign id and
// prints the resulting report as JSON. Useful for cron jobs and local
// debugging without the API server.
func main() {
	_ = godotenv.Load()

	campaignID := flag.String("campaign", "", "campaign id to generate")
	flag.Parse()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if *campaignID == "" {
		logger.Fatal().Msg("usage: generate -campaign <campaign-id>")
	}

	ctx := context.Background()
	store, err := newStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage backend")
	}

	orchestrator := pipeline.NewOrchestrator(
		briefs.NewService(store), genlog.NewService(store), store, cfg, logger)

	report, err := orchestrator.GenerateCampaign(ctx, *campaignID)
	if err != nil {
		logger.Fatal().Err(err).Str("campaign_id", *campaignID).Msg("generation failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
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
