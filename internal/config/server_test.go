package config

import (
	"errors"
	"testing"
)

func TestLoadServerDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/chips?sslmode=disable")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.StoreDriver != StoreDriverPostgres {
		t.Fatalf("StoreDriver = %q, want postgres", cfg.StoreDriver)
	}
	if cfg.StagePushEnabled || cfg.StagePushWorkers != 2 || cfg.StagePushRetryMax != 3 {
		t.Fatalf("unexpected stage push defaults: %+v", cfg)
	}
	if cfg.CommitMaxRetries != 5 || cfg.FeedBufferSize != 256 || !cfg.MCPEnabled {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadServerRequiresPostgresDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")

	_, err := LoadServer()
	if !errors.Is(err, ErrPostgresDSNRequired) {
		t.Fatalf("LoadServer() error = %v, want postgres_dsn_required", err)
	}
}

func TestLoadServerLevelDBNeedsNoDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("STORE_DRIVER", "leveldb")
	t.Setenv("LEVELDB_PATH", "/tmp/chips")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.LevelDBPath != "/tmp/chips" {
		t.Fatalf("LevelDBPath = %q", cfg.LevelDBPath)
	}
}

func TestLoadServerParseTypes(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("COMMIT_MAX_RETRIES", "9")
	t.Setenv("MCP_ENABLED", "false")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.CommitMaxRetries != 9 {
		t.Fatalf("CommitMaxRetries = %d, want 9", cfg.CommitMaxRetries)
	}
	if cfg.MCPEnabled {
		t.Fatalf("MCPEnabled = true, want false")
	}
}

func TestLoadServerRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	if _, err := LoadServer(); !errors.Is(err, ErrUnknownStoreDriver) {
		t.Fatalf("LoadServer() error = %v, want unknown_store_driver", err)
	}
}
