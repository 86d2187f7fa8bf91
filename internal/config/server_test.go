package config

import (
	"testing"
	"time"
)

func TestLoadServerDefaults(t *testing.T) {
	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.EconomyReload() != time.Second {
		t.Fatalf("EconomyReload = %v, want 1s", cfg.EconomyReload())
	}
	if cfg.JanitorInterval() != 5*time.Second {
		t.Fatalf("JanitorInterval = %v, want 5s", cfg.JanitorInterval())
	}
	if cfg.EarnBatchWorkers != 8 {
		t.Fatalf("EarnBatchWorkers = %d, want 8", cfg.EarnBatchWorkers)
	}
}

func TestLoadServerParseTypes(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/zcoin?sslmode=disable")
	t.Setenv("ECONOMY_RELOAD_MS", "250")
	t.Setenv("RNG_SEED", "42")
	t.Setenv("JANITOR_INTERVAL_MS", "-1")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.PostgresDSN == "" {
		t.Fatal("PostgresDSN not parsed")
	}
	if cfg.EconomyReload() != 250*time.Millisecond {
		t.Fatalf("EconomyReload = %v", cfg.EconomyReload())
	}
	if cfg.RNGSeed != 42 {
		t.Fatalf("RNGSeed = %d, want 42", cfg.RNGSeed)
	}
	if cfg.JanitorInterval() != 5*time.Second {
		t.Fatalf("negative interval should fall back, got %v", cfg.JanitorInterval())
	}
}

func TestLoadServerRejectsBadInt(t *testing.T) {
	t.Setenv("EARN_BATCH_WORKERS", "many")
	if _, err := LoadServer(); err == nil {
		t.Fatal("LoadServer() expected error, got nil")
	}
}
