package config

import (
	"testing"
	"time"
)

type mapEnv map[string]string

func (m mapEnv) Getenv(key string) string { return m[key] }

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 3000 {
		t.Fatalf("expected default port 3000, got %d", cfg.Port)
	}
	if cfg.StorageBackend != BackendFile {
		t.Fatalf("expected default file backend, got %q", cfg.StorageBackend)
	}
	if cfg.DataDir != "./data" {
		t.Fatalf("expected default data dir, got %q", cfg.DataDir)
	}
	if cfg.SweepInterval != time.Hour {
		t.Fatalf("expected hourly sweep, got %v", cfg.SweepInterval)
	}
}

func TestLoadConfigFromEnv_InvalidBackend(t *testing.T) {
	_, err := LoadConfigFromEnv(mapEnv{"STORAGE_BACKEND": "cosmos"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadConfigFromEnv_DocumentRequiresDSN(t *testing.T) {
	_, err := LoadConfigFromEnv(mapEnv{"STORAGE_BACKEND": "document"})
	if err == nil {
		t.Fatalf("expected error")
	}

	cfg, err := LoadConfigFromEnv(mapEnv{"STORAGE_BACKEND": "document", "DOCDB_DSN": "postgres://db/activity"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.DocumentDSN != "postgres://db/activity" {
		t.Fatalf("unexpected dsn %q", cfg.DocumentDSN)
	}
}

func TestLoadConfigFromEnv_InvalidPort(t *testing.T) {
	_, err := LoadConfigFromEnv(mapEnv{"PORT": "notaport"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadConfigFromEnv_SweepIntervalOverride(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{"SWEEP_INTERVAL_SECONDS": "60"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.SweepInterval != time.Minute {
		t.Fatalf("expected 1m interval, got %v", cfg.SweepInterval)
	}
}
