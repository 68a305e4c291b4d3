package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.Server.Addr)
	}
	if cfg.Auth.TokenTTL.Std() != 24*time.Hour {
		t.Fatalf("expected 24h token ttl, got %v", cfg.Auth.TokenTTL.Std())
	}
	if cfg.Uploads.MaxBytes != 32<<20 {
		t.Fatalf("expected 32MiB upload cap, got %d", cfg.Uploads.MaxBytes)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
server:
  addr: ":9999"
  read_timeout: 30s
auth:
  secret: file-secret
  token_ttl: 2h
workers:
  outbox_interval: 1s
  sweep_schedule: "@daily"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Fatalf("expected file addr, got %q", cfg.Server.Addr)
	}
	if cfg.Server.ReadTimeout.Std() != 30*time.Second {
		t.Fatalf("expected parsed duration, got %v", cfg.Server.ReadTimeout.Std())
	}
	if cfg.Auth.Secret != "file-secret" {
		t.Fatalf("expected file secret, got %q", cfg.Auth.Secret)
	}
	if cfg.Workers.SweepSchedule != "@daily" {
		t.Fatalf("expected file schedule, got %q", cfg.Workers.SweepSchedule)
	}
	// Untouched sections keep their defaults.
	if cfg.Uploads.Dir != "data/uploads" {
		t.Fatalf("expected default upload dir, got %q", cfg.Uploads.Dir)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CATALOG_ADDR", ":7070")
	t.Setenv("CATALOG_JWT_SECRET", "env-secret")
	t.Setenv("CATALOG_UPLOAD_MAX_BYTES", "1024")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Fatalf("expected env addr, got %q", cfg.Server.Addr)
	}
	if cfg.Auth.Secret != "env-secret" {
		t.Fatalf("expected env secret, got %q", cfg.Auth.Secret)
	}
	if cfg.Uploads.MaxBytes != 1024 {
		t.Fatalf("expected env upload cap, got %d", cfg.Uploads.MaxBytes)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("expected parsed origins, got %v", cfg.CORS.AllowedOrigins)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Auth.Secret = " "
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for blank secret")
	}

	cfg = Default()
	cfg.Workers.OutboxInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero outbox interval")
	}

	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}
