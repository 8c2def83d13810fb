package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Ingestion.
	HeaderRow      int
	IngestWorkers  int
	MaxUploadBytes int64

	// Master store.
	StoreBackend string
	StorePath    string
	DatabaseURL  string
	StoreTable   string

	// Ingest notifications; disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is loaded first if
// present; variables already set in the environment take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	headerRow, err := parseInt("HEADER_ROW", 8, 0, 1000)
	if err != nil {
		return nil, err
	}
	workers, err := parseInt("INGEST_WORKERS", 4, 1, 64)
	if err != nil {
		return nil, err
	}
	maxUpload, err := parseInt("MAX_UPLOAD_BYTES", 32<<20, 1, 1<<31)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		HeaderRow:      headerRow,
		IngestWorkers:  workers,
		MaxUploadBytes: int64(maxUpload),

		StoreBackend: strings.ToLower(sharedcfg.EnvOrDefault("STORE_BACKEND", BackendFile)),
		StorePath:    sharedcfg.EnvOrDefault("STORE_PATH", "data/tabla_maestra.csv"),
		DatabaseURL:  sharedcfg.EnvOrDefault("DATABASE_URL", ""),
		StoreTable:   sharedcfg.EnvOrDefault("STORE_TABLE", "tabla_maestra"),

		KafkaBrokers: parseBrokers(),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "rni-ingested-files"),
	}

	switch cfg.StoreBackend {
	case BackendFile:
		if cfg.StorePath == "" {
			return nil, errors.New("STORE_PATH is required for the file backend")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres backend")
		}
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q: want %q or %q", cfg.StoreBackend, BackendFile, BackendPostgres)
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// NotificationsEnabled reports whether ingest notifications are published.
func (c *Config) NotificationsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parseInt(key string, def, lo, hi int) (int, error) {
	s := sharedcfg.EnvOrDefault(key, strconv.Itoa(def))
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s %q: must be an integer in [%d, %d]", key, s, lo, hi)
	}
	return n, nil
}

func parseBrokers() []string {
	raw := strings.TrimSpace(sharedcfg.EnvOrDefault("KAFKA_BROKERS", ""))
	if raw == "" {
		return nil
	}
	return sharedcfg.ParseBrokers(raw)
}
