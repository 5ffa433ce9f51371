package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("expected default listen addr ':8080', got %q", cfg.ListenAddr)
	}
	if cfg.DatabasePath != "chatwire.db" {
		t.Errorf("expected default database path 'chatwire.db', got %q", cfg.DatabasePath)
	}
	if cfg.SendBufferSize != 16 {
		t.Errorf("expected default send buffer 16, got %d", cfg.SendBufferSize)
	}
	if cfg.SessionTTL != 0 {
		t.Errorf("expected no session TTL by default, got %v", cfg.SessionTTL)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CHATWIRE_LISTEN_ADDR", ":9999")
	t.Setenv("CHATWIRE_REDIS_ADDR", "localhost:6379")
	t.Setenv("CHATWIRE_SESSION_TTL", "30m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ListenAddr != ":9999" {
		t.Errorf("expected listen addr ':9999', got %q", cfg.ListenAddr)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("expected redis addr 'localhost:6379', got %q", cfg.RedisAddr)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("expected session TTL 30m, got %v", cfg.SessionTTL)
	}
}

func TestLoadFileOverridesEnvironment(t *testing.T) {
	t.Setenv("CHATWIRE_LISTEN_ADDR", ":9999")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "listen_addr: \":7777\"\ndatabase_path: /tmp/test-chat.db\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load file failed: %v", err)
	}
	if cfg.ListenAddr != ":7777" {
		t.Errorf("expected file to override env, got %q", cfg.ListenAddr)
	}
	if cfg.DatabasePath != "/tmp/test-chat.db" {
		t.Errorf("expected database path from file, got %q", cfg.DatabasePath)
	}
	// Fields absent from the file keep their env/default values.
	if cfg.SendBufferSize != 16 {
		t.Errorf("expected default send buffer 16, got %d", cfg.SendBufferSize)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
