package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/query"
)

// MinIO holds blob store connection settings.
type MinIO struct {
	Endpoint  string `validate:"required,hostname|hostname_port"`
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string `validate:"required,min=3,max=63"`
}

// Config holds environment-driven settings for the REST API.
type Config struct {
	Env            string
	Port           int `validate:"gt=0,lt=65536"`
	MinIO          MinIO
	DatabaseURL    string
	RedisURL       string
	CacheTTL       time.Duration `validate:"gt=0"`
	Engine         query.Config
	RequestTimeout time.Duration `validate:"gt=0"`
	DownloadURLTTL time.Duration `validate:"gt=0,lte=168h"`
	AllowedOrigins []string      `validate:"min=1"`
	DefaultLimit   int           `validate:"gte=0"`
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		Env:            "production",
		Port:           8080,
		CacheTTL:       10 * time.Minute,
		Engine:         query.DefaultConfig(),
		RequestTimeout: 30 * time.Second,
		DownloadURLTTL: 15 * time.Minute,
		AllowedOrigins: []string{"*"},
		MinIO:          MinIO{Bucket: "markers"},
	}

	if env := strings.TrimSpace(os.Getenv("APP_ENV")); env != "" {
		cfg.Env = env
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
	} else if portStr := os.Getenv("API_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid API_PORT: %s", portStr)
		}
	}

	cfg.MinIO.Endpoint = strings.TrimSpace(os.Getenv("MINIO_ENDPOINT"))
	if cfg.MinIO.Endpoint == "" {
		return cfg, errors.New("MINIO_ENDPOINT is required")
	}
	cfg.MinIO.AccessKey = os.Getenv("MINIO_ACCESS_KEY")
	cfg.MinIO.SecretKey = os.Getenv("MINIO_SECRET_KEY")
	if bucket := strings.TrimSpace(os.Getenv("MINIO_BUCKET")); bucket != "" {
		cfg.MinIO.Bucket = bucket
	}
	if v := strings.TrimSpace(os.Getenv("MINIO_USE_SSL")); v != "" {
		useSSL, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid MINIO_USE_SSL: %s", v)
		}
		cfg.MinIO.UseSSL = useSSL
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))

	if err := durationEnv("DATASET_CACHE_TTL", &cfg.CacheTTL); err != nil {
		return cfg, err
	}
	if err := durationEnv("REQUEST_TIMEOUT", &cfg.RequestTimeout); err != nil {
		return cfg, err
	}
	if err := durationEnv("DOWNLOAD_URL_TTL", &cfg.DownloadURLTTL); err != nil {
		return cfg, err
	}

	if v := strings.TrimSpace(os.Getenv("RESPONSE_BYTE_BUDGET")); v != "" {
		budget, err := strconv.ParseInt(v, 10, 64)
		if err != nil || budget <= 0 {
			return cfg, fmt.Errorf("invalid RESPONSE_BYTE_BUDGET: %s", v)
		}
		cfg.Engine.ByteBudget = budget
	}
	if v := strings.TrimSpace(os.Getenv("EARTH_RADIUS_KM")); v != "" {
		radius, err := strconv.ParseFloat(v, 64)
		if err != nil || radius <= 0 {
			return cfg, fmt.Errorf("invalid EARTH_RADIUS_KM: %s", v)
		}
		cfg.Engine.EarthRadiusKm = radius
	}

	if limitStr := os.Getenv("API_DEFAULT_LIMIT"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit >= 0 {
			cfg.DefaultLimit = limit
		} else {
			return cfg, fmt.Errorf("invalid API_DEFAULT_LIMIT: %s", limitStr)
		}
	}

	if v := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); v != "" {
		origins := make([]string, 0)
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.AllowedOrigins = origins
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// IsDevelopment reports whether APP_ENV selects development mode.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

func durationEnv(name string, dst *time.Duration) error {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = d
	return nil
}
