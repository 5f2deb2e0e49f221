package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/blob"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/cache"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/config"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/dataset"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/db"
	httpserver "github.com/02loveslollipop/Shizuku-survey-markers/services/api/http"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logg := logger.New(cfg.Env)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := blob.New(cfg.MinIO)
	if err != nil {
		log.Fatalf("blob store error: %v", err)
	}

	deps := httpserver.Deps{Downloader: store, Logger: logg}

	var rawCache dataset.RawCache
	if cfg.RedisURL != "" {
		c, err := cache.New(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			log.Fatalf("cache error: %v", err)
		}
		defer c.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := c.Ping(pingCtx); err != nil {
			logg.CacheError("ping", "", err)
		}
		pingCancel()
		rawCache = c
	}

	if cfg.DatabaseURL != "" {
		catalog, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connection error: %v", err)
		}
		defer catalog.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err = catalog.Ping(pingCtx)
		pingCancel()
		if err != nil {
			log.Fatalf("db ping error: %v", err)
		}
		deps.Catalog = catalog
	}

	deps.Loader = dataset.NewLoader(store, rawCache, logg)

	srv := httpserver.New(cfg, deps)
	logg.Info("REST API listening", "addr", cfg.ListenAddr(), "bucket", cfg.MinIO.Bucket,
		"cache", rawCache != nil, "catalog", deps.Catalog != nil)

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
