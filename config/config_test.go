package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.PageSize != 10 {
		t.Errorf("page size = %d, want 10", cfg.App.PageSize)
	}
	if cfg.App.IndexCacheTTL != 20*time.Second {
		t.Errorf("index cache ttl = %v, want 20s", cfg.App.IndexCacheTTL)
	}
	if cfg.App.Addr != ":8080" {
		t.Errorf("addr = %q", cfg.App.Addr)
	}
	if cfg.RabbitMQ.Queue != "notifications" {
		t.Errorf("queue = %q", cfg.RabbitMQ.Queue)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	body := []byte("app:\n  page_size: 5\n  index_cache_ttl: 1m\ndatabase:\n  url: postgres://file\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("POSTBOOK_APP_ADDR", ":9999")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.PageSize != 5 {
		t.Errorf("page size = %d, want 5", cfg.App.PageSize)
	}
	if cfg.App.IndexCacheTTL != time.Minute {
		t.Errorf("ttl = %v, want 1m", cfg.App.IndexCacheTTL)
	}
	if cfg.Database.URL != "postgres://env" {
		t.Errorf("database url = %q, want env override", cfg.Database.URL)
	}
	if cfg.App.Addr != ":9999" {
		t.Errorf("addr = %q, want :9999", cfg.App.Addr)
	}
}

func TestLoadRejectsBadPageSize(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("POSTBOOK_APP_PAGE_SIZE", "0")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for zero page size")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}
