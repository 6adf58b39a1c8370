package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/docpipe/docpipe/internal/analysis"
	"github.com/docpipe/docpipe/internal/batch"
	"github.com/docpipe/docpipe/internal/config"
	"github.com/docpipe/docpipe/internal/report"
	"github.com/docpipe/docpipe/internal/store"
	"github.com/docpipe/docpipe/internal/transfer"
	"github.com/docpipe/docpipe/internal/walker"
	"github.com/docpipe/docpipe/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "docpipe",
		Usage: "Ingest a remote document tree, analyze it in batches and write one consolidated report",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "folder-id",
				Usage:   "Root container to traverse (Drive folder ID or S3 key prefix)",
				EnvVars: []string{"DOCPIPE_FOLDER_ID"},
			},
			&cli.StringFlag{
				Name:    "backend",
				Usage:   "Remote store backend: drive or s3",
				EnvVars: []string{"STORE_BACKEND"},
			},
			&cli.IntFlag{
				Name:    "batch-size",
				Usage:   "Objects per batch (overrides PIPELINE_BATCH_SIZE)",
				EnvVars: []string{"PIPELINE_BATCH_SIZE"},
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("pipeline failed")
	}
}

func run(c *cli.Context) error {
	cfg := config.Load()
	logger.SetLevel(cfg.App.LogLevel)

	if c.IsSet("backend") {
		cfg.Store.Backend = c.String("backend")
	}
	if c.IsSet("batch-size") {
		cfg.Pipeline.BatchSize = c.Int("batch-size")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}

	folderID := c.String("folder-id")
	log := logger.Log
	log.Info().Str("backend", cfg.Store.Backend).Str("folder", folderID).Msg("traversing remote tree")

	objects, err := walker.New(st).Walk(ctx, folderID)
	if err != nil {
		return fmt.Errorf("traversal aborted: %w", err)
	}
	if len(objects) == 0 {
		return fmt.Errorf("remote store returned no objects under %q, nothing to process", folderID)
	}
	log.Info().Int("objects", len(objects)).Msg("traversal complete")

	engine := transfer.NewEngine(st, transferConfig(cfg))
	local := analysis.NewLocal()
	consolidator := report.NewConsolidator(cfg.App.ReportDir)

	orch := batch.NewOrchestrator(engine, local, local, consolidator, batch.Options{
		BatchSize:     cfg.Pipeline.BatchSize,
		JobTimeout:    cfg.Pipeline.JobTimeout,
		StagingDir:    cfg.App.StagingDir,
		MaxCharBudget: cfg.Pipeline.MaxCharBudget,
		ChunkSize:     cfg.Pipeline.ChunkSize,
	})

	result, err := orch.Process(ctx, objects)
	if err != nil {
		return err
	}

	log.Info().Str("report", result.ReportPath).Int("batches", len(result.Batches)).
		Int("failed_jobs", result.TotalFailed()).Int("chunks", result.TotalChunks()).
		Msg("pipeline complete")
	return nil
}

func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "s3":
		return store.NewS3Store(store.S3Config{
			Endpoint:  cfg.Store.S3Endpoint,
			AccessKey: cfg.Store.S3AccessKey,
			SecretKey: cfg.Store.S3SecretKey,
			Bucket:    cfg.Store.S3Bucket,
			UseSSL:    cfg.Store.S3UseSSL,
			PageSize:  int(cfg.Store.PageSize),
		})
	default:
		return store.NewDriveStore(ctx, cfg.Store.CredentialsFile, cfg.Store.PageSize)
	}
}

func transferConfig(cfg *config.Config) transfer.Config {
	return transfer.Config{
		Metadata: transfer.Policy{
			MaxAttempts: cfg.Retry.MetadataAttempts,
			BaseDelay:   cfg.Retry.MetadataBackoff,
			MaxDelay:    cfg.Retry.MetadataMaxDelay,
		},
		Stream: transfer.Policy{
			MaxAttempts: cfg.Retry.StreamAttempts,
			BaseDelay:   cfg.Retry.StreamBackoff,
			MaxDelay:    cfg.Retry.StreamMaxDelay,
		},
		Chunk: transfer.Policy{
			MaxAttempts: cfg.Retry.ChunkAttempts,
			BaseDelay:   cfg.Retry.ChunkBackoff,
			MaxDelay:    cfg.Retry.ChunkMaxDelay,
		},
	}
}
