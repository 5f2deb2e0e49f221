package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	apiconfig "github.com/02loveslollipop/Shizuku-survey-markers/services/api/config"
)

const (
	defaultRequestTimeout = 60 * time.Second
	defaultBucket         = "markers"
)

// Config holds runtime configuration for the importer job.
type Config struct {
	Env            string
	DatabaseURL    string `validate:"required"`
	MinIO          apiconfig.MinIO
	RedisURL       string
	SourceURL      string        `validate:"required,url"`
	Datasets       []string      `validate:"min=1,dive,required"`
	RequestTimeout time.Duration `validate:"gt=0"`
	DryRun         bool
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Config{
		Env:            "production",
		RequestTimeout: defaultRequestTimeout,
		MinIO:          apiconfig.MinIO{Bucket: defaultBucket},
	}

	if env := strings.TrimSpace(os.Getenv("APP_ENV")); env != "" {
		cfg.Env = env
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	cfg.MinIO.Endpoint = strings.TrimSpace(os.Getenv("MINIO_ENDPOINT"))
	cfg.MinIO.AccessKey = os.Getenv("MINIO_ACCESS_KEY")
	cfg.MinIO.SecretKey = os.Getenv("MINIO_SECRET_KEY")
	useSSL := strings.TrimSpace(os.Getenv("MINIO_USE_SSL"))
	cfg.MinIO.UseSSL = useSSL == "1" || strings.EqualFold(useSSL, "true")
	if v := strings.TrimSpace(os.Getenv("MINIO_BUCKET")); v != "" {
		cfg.MinIO.Bucket = v
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.SourceURL = strings.TrimRight(strings.TrimSpace(os.Getenv("IMPORT_SOURCE_URL")), "/")

	for _, id := range strings.Split(os.Getenv("IMPORT_DATASETS"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			cfg.Datasets = append(cfg.Datasets, id)
		}
	}

	if v := strings.TrimSpace(os.Getenv("IMPORT_REQUEST_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid IMPORT_REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = d
	}

	dryRun := strings.TrimSpace(os.Getenv("DRY_RUN"))
	cfg.DryRun = dryRun == "1" || strings.EqualFold(dryRun, "true")

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
