package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Store       string // CONFENGINE_STORE (default "postgres"; "memory" for dev)
	DatabaseURL string // CONFENGINE_DATABASE_URL (required for postgres)
	GRPCAddr    string // CONFENGINE_GRPC_ADDR (default ":9090")
	HTTPAddr    string // CONFENGINE_HTTP_ADDR (default "0.0.0.0:8000")
	AuthToken   string // CONFENGINE_AUTH_TOKEN (optional, empty = auth disabled)

	CORSOrigins []string // CONFENGINE_CORS_ORIGINS (comma list)
	Environment string   // CONFENGINE_ENVIRONMENT (default "development")
	LogLevel    slog.Level
	APITitle    string // CONFENGINE_API_TITLE
	APIVersion  string // CONFENGINE_API_VERSION

	NATSURL      string   // CONFENGINE_NATS_URL (optional, empty = no NATS events)
	KafkaBrokers []string // CONFENGINE_KAFKA_BROKERS (optional comma list)

	// Sync settings
	SyncInterval   time.Duration // CONFENGINE_SYNC_INTERVAL (default 3m; 0 = disabled)
	SyncSchedule   string        // CONFENGINE_SYNC_SCHEDULE (cron expression, overrides the interval)
	SyncS3Bucket   string        // CONFENGINE_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // CONFENGINE_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // CONFENGINE_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // CONFENGINE_SYNC_S3_KEY (default "confengine/backup.jsonl")
	SyncGitRepo    string        // CONFENGINE_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile    string        // CONFENGINE_SYNC_GIT_FILE (default "configurations.jsonl")
	SyncGitBranch  string        // CONFENGINE_SYNC_GIT_BRANCH (default "main")
}

// IsDevelopment reports whether the service runs in the development
// environment.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// Load reads .env from the working directory when present, then the
// process environment. Variables already set win over the file.
func Load() (*Config, error) {
	return load(".env")
}

func load(envFile string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	c := &Config{
		Store:          strings.ToLower(envOrDefault("CONFENGINE_STORE", StorePostgres)),
		DatabaseURL:    os.Getenv("CONFENGINE_DATABASE_URL"),
		GRPCAddr:       envOrDefault("CONFENGINE_GRPC_ADDR", ":9090"),
		HTTPAddr:       envOrDefault("CONFENGINE_HTTP_ADDR", "0.0.0.0:8000"),
		AuthToken:      os.Getenv("CONFENGINE_AUTH_TOKEN"),
		CORSOrigins:    splitList(envOrDefault("CONFENGINE_CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		Environment:    envOrDefault("CONFENGINE_ENVIRONMENT", "development"),
		APITitle:       envOrDefault("CONFENGINE_API_TITLE", "Configuration Engine"),
		APIVersion:     envOrDefault("CONFENGINE_API_VERSION", "0.1.0"),
		NATSURL:        os.Getenv("CONFENGINE_NATS_URL"),
		KafkaBrokers:   splitList(os.Getenv("CONFENGINE_KAFKA_BROKERS")),
		SyncSchedule:   os.Getenv("CONFENGINE_SYNC_SCHEDULE"),
		SyncS3Bucket:   os.Getenv("CONFENGINE_SYNC_S3_BUCKET"),
		SyncS3Endpoint: os.Getenv("CONFENGINE_SYNC_S3_ENDPOINT"),
		SyncS3Region:   envOrDefault("CONFENGINE_SYNC_S3_REGION", "us-east-1"),
		SyncS3Key:      envOrDefault("CONFENGINE_SYNC_S3_KEY", "confengine/backup.jsonl"),
		SyncGitRepo:    os.Getenv("CONFENGINE_SYNC_GIT_REPO"),
		SyncGitFile:    envOrDefault("CONFENGINE_SYNC_GIT_FILE", "configurations.jsonl"),
		SyncGitBranch:  envOrDefault("CONFENGINE_SYNC_GIT_BRANCH", "main"),
	}

	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return nil, fmt.Errorf("CONFENGINE_DATABASE_URL is required")
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("CONFENGINE_STORE: unknown store %q", c.Store)
	}

	if err := c.LogLevel.UnmarshalText([]byte(envOrDefault("CONFENGINE_LOG_LEVEL", "INFO"))); err != nil {
		return nil, fmt.Errorf("CONFENGINE_LOG_LEVEL: %w", err)
	}

	intervalStr := envOrDefault("CONFENGINE_SYNC_INTERVAL", "3m")
	if intervalStr != "" {
		d, err := time.ParseDuration(intervalStr)
		if err != nil {
			return nil, fmt.Errorf("CONFENGINE_SYNC_INTERVAL: %w", err)
		}
		c.SyncInterval = d
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
