package config

import (
	"slices"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"API_PORT", "STORAGE_BACKEND", "SESSION_IDLE_MINUTES", "CORS_ORIGINS", "SEED_DEV_DATA"} {
		t.Setenv(key, "")
	}
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.StorageBackend != StorageBackendPostgres {
		t.Errorf("StorageBackend = %q, want %q", cfg.StorageBackend, StorageBackendPostgres)
	}
	if cfg.SessionIdleTTL != 30*time.Minute {
		t.Errorf("SessionIdleTTL = %v, want 30m", cfg.SessionIdleTTL)
	}
	if !cfg.SeedDevData {
		t.Error("SeedDevData = false, want true")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("SESSION_IDLE_MINUTES", "5")
	t.Setenv("EVENT_BUFFER_SIZE", "not-a-number")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("SEED_DEV_DATA", "no")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction = false, want true")
	}
	if cfg.StorageBackend != StorageBackendMemory {
		t.Errorf("StorageBackend = %q", cfg.StorageBackend)
	}
	if cfg.SessionIdleTTL != 5*time.Minute {
		t.Errorf("SessionIdleTTL = %v, want 5m", cfg.SessionIdleTTL)
	}
	if cfg.EventBufferSize != 1024 {
		t.Errorf("EventBufferSize = %d, want fallback 1024", cfg.EventBufferSize)
	}
	want := []string{"https://a.example", "https://b.example"}
	if !slices.Equal(cfg.CORSOrigins, want) {
		t.Errorf("CORSOrigins = %v, want %v", cfg.CORSOrigins, want)
	}
	if cfg.SeedDevData {
		t.Error("SeedDevData = true, want false")
	}
}
