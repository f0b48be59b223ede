package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_WithDefaults(t *testing.T) {
	// Load config without a config file (use defaults)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}

	// Verify some default values
	if cfg.Server.Port != 8086 {
		t.Errorf("Server.Port = %d, want 8086", cfg.Server.Port)
	}

	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 30s", cfg.Server.ReadTimeout)
	}

	if cfg.Database.URL != "" {
		t.Errorf("Database.URL = %q, want empty (memory stores)", cfg.Database.URL)
	}

	if cfg.Database.OpTimeout != 5*time.Second {
		t.Errorf("Database.OpTimeout = %v, want 5s", cfg.Database.OpTimeout)
	}

	if cfg.Dispatch.Workers != 4 {
		t.Errorf("Dispatch.Workers = %d, want 4", cfg.Dispatch.Workers)
	}

	if cfg.Dispatch.MaxAttempts != 5 {
		t.Errorf("Dispatch.MaxAttempts = %d, want 5", cfg.Dispatch.MaxAttempts)
	}

	if cfg.Redis.Enabled {
		t.Error("Redis.Enabled should be false by default")
	}

	if cfg.Redis.DedupeWindow != 10*time.Minute {
		t.Errorf("Redis.DedupeWindow = %v, want 10m", cfg.Redis.DedupeWindow)
	}

	if !cfg.Reconcile.Enabled {
		t.Error("Reconcile.Enabled should be true by default")
	}

	if cfg.OpenSearch.IndexPrefix != "driftwatch" {
		t.Errorf("OpenSearch.IndexPrefix = %q, want %q", cfg.OpenSearch.IndexPrefix, "driftwatch")
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
server:
  port: 9999
dispatch:
  workers: 8
  max_attempts: 3
redis:
  enabled: true
  url: redis://cache:6379/1
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Dispatch.Workers != 8 {
		t.Errorf("Dispatch.Workers = %d, want 8", cfg.Dispatch.Workers)
	}
	if cfg.Dispatch.MaxAttempts != 3 {
		t.Errorf("Dispatch.MaxAttempts = %d, want 3", cfg.Dispatch.MaxAttempts)
	}
	if !cfg.Redis.Enabled {
		t.Error("Redis.Enabled should be true")
	}
	if cfg.Redis.URL != "redis://cache:6379/1" {
		t.Errorf("Redis.URL = %q", cfg.Redis.URL)
	}

	// Values absent from the file keep their defaults
	if cfg.Dispatch.QueueSize != 1024 {
		t.Errorf("Dispatch.QueueSize = %d, want 1024", cfg.Dispatch.QueueSize)
	}
}

func TestLoad_MissingFileIsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for explicitly specified missing config file")
	}
}
