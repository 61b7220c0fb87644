package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	BackendFile     = "file"
	BackendDocument = "document"
)

type Config struct {
	Port        int
	GinMode     string
	TLSCertFile string
	TLSKeyFile  string

	StorageBackend string
	DataDir        string
	DocumentDSN    string

	SweepInterval   time.Duration
	IngestRateLimit int
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadConfig() (Config, error) {
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:            3000,
		GinMode:         "release",
		StorageBackend:  BackendFile,
		DataDir:         "./data",
		SweepInterval:   time.Hour,
		IngestRateLimit: 120,
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")

	if raw := env.Getenv("STORAGE_BACKEND"); raw != "" {
		cfg.StorageBackend = raw
	}
	switch cfg.StorageBackend {
	case BackendFile, BackendDocument:
	default:
		return Config{}, fmt.Errorf("invalid STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	if raw := env.Getenv("DATA_DIR"); raw != "" {
		cfg.DataDir = raw
	}

	cfg.DocumentDSN = env.Getenv("DOCDB_DSN")
	if cfg.StorageBackend == BackendDocument && cfg.DocumentDSN == "" {
		return Config{}, fmt.Errorf("DOCDB_DSN is required when STORAGE_BACKEND=document")
	}

	if raw := env.Getenv("SWEEP_INTERVAL_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid SWEEP_INTERVAL_SECONDS")
		}
		cfg.SweepInterval = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("INGEST_RATE_LIMIT"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return Config{}, fmt.Errorf("invalid INGEST_RATE_LIMIT")
		}
		cfg.IngestRateLimit = limit
	}

	return cfg, nil
}
