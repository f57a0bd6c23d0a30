package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Persistence.Driver != "memory" {
		t.Errorf("Persistence.Driver = %q, want memory", cfg.Persistence.Driver)
	}
	if cfg.Persistence.SaveDebounce != 2*time.Second {
		t.Errorf("SaveDebounce = %v, want 2s", cfg.Persistence.SaveDebounce)
	}
	if cfg.Index.MinWordLength != 2 || cfg.Index.MaxWordsPerItem != 100 {
		t.Errorf("Index defaults = %+v", cfg.Index)
	}
	if len(cfg.Index.Stopwords) == 0 {
		t.Error("default stopword list is empty")
	}
	if cfg.Prefetch.MaxPrefetch != 3 || cfg.Prefetch.MinProbability != 0.15 {
		t.Errorf("Prefetch defaults = %+v", cfg.Prefetch)
	}
	if cfg.Memory.SoftLimitMB != 120 || cfg.Memory.HardLimitMB != 200 {
		t.Errorf("Memory defaults = %+v", cfg.Memory)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging defaults = %+v", cfg.Logging)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	data := `
server:
  port: 9001
persistence:
  driver: sqlite
  saveDebounce: 5s
  sqlite:
    path: /tmp/engine-test.db
index:
  minWordLength: 3
memory:
  softLimitMB: 256
  hardLimitMB: 512
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("Server.Port = %d, want 9001", cfg.Server.Port)
	}
	if cfg.Persistence.Driver != "sqlite" || cfg.Persistence.SQLite.Path != "/tmp/engine-test.db" {
		t.Errorf("persistence = %+v", cfg.Persistence)
	}
	if cfg.Persistence.SaveDebounce != 5*time.Second {
		t.Errorf("SaveDebounce = %v, want 5s", cfg.Persistence.SaveDebounce)
	}
	if cfg.Index.MinWordLength != 3 {
		t.Errorf("MinWordLength = %d, want 3", cfg.Index.MinWordLength)
	}
	if cfg.Memory.SoftLimitMB != 256 || cfg.Memory.HardLimitMB != 512 {
		t.Errorf("memory = %+v", cfg.Memory)
	}
	// Fields the file omits keep their defaults.
	if cfg.Prefetch.MaxPrefetch != 3 {
		t.Errorf("MaxPrefetch = %d, want default 3", cfg.Prefetch.MaxPrefetch)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load("/nonexistent/engine.yaml"); err == nil {
		t.Error("Load of a missing file succeeded")
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want default", cfg.Server.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AE_SERVER_PORT", "7070")
	t.Setenv("AE_PERSISTENCE_DRIVER", "redis")
	t.Setenv("AE_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("AE_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Persistence.Driver != "redis" || cfg.Persistence.Redis.Addr != "redis.internal:6379" {
		t.Errorf("persistence = %+v", cfg.Persistence)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestEnvOverrideIgnoresBadNumbers(t *testing.T) {
	t.Setenv("AE_SERVER_PORT", "not-a-port")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want default kept on parse failure", cfg.Server.Port)
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{
		Host: "db.internal", Port: 5433, Database: "engine",
		User: "svc", Password: "secret", SSLMode: "require",
	}
	want := "host=db.internal port=5433 user=svc password=secret dbname=engine sslmode=require"
	if got := p.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
