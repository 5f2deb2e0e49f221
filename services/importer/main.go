package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/blob"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/cache"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/db"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/logger"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/importer/internal/config"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/importer/internal/job"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/importer/internal/source"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("importer failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logg := logger.New(cfg.Env)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := source.NewClient(&http.Client{Timeout: cfg.RequestTimeout}, cfg.SourceURL)

	store, err := blob.New(cfg.MinIO)
	if err != nil {
		return err
	}

	j := &job.Job{
		Source:         client,
		Publisher:      store,
		Log:            logg,
		RequestTimeout: cfg.RequestTimeout,
		DryRun:         cfg.DryRun,
	}

	if !cfg.DryRun {
		if err := store.EnsureBucket(ctx); err != nil {
			return err
		}

		catalog, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer catalog.Close()
		if err := catalog.Ping(ctx); err != nil {
			return err
		}
		j.Catalog = catalog

		if cfg.RedisURL != "" {
			c, err := cache.New(cfg.RedisURL, 0)
			if err != nil {
				return err
			}
			defer c.Close()
			j.Cache = c
		}
	}

	summary, err := j.Run(ctx, cfg.Datasets)
	logg.Info("import finished", "imported", len(summary.Imported), "failed", len(summary.Failed), "dry_run", cfg.DryRun)
	return err
}
