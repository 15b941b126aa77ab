package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultSession = "work"
	cfg.API.BaseURL = "https://api.example.com"
	cfg.Cache.TTL = Duration{2 * time.Minute}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
	if loaded.API.BaseURL != "https://api.example.com" {
		t.Errorf("BaseURL = %q", loaded.API.BaseURL)
	}
	if loaded.Cache.TTL.Duration != 2*time.Minute {
		t.Errorf("Cache.TTL = %v, want 2m", loaded.Cache.TTL.Duration)
	}
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[query]\nsearch_debounce = \"150ms\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Query.SearchDebounce.Duration != 150*time.Millisecond {
		t.Errorf("SearchDebounce = %v, want 150ms", cfg.Query.SearchDebounce.Duration)
	}
	if cfg.Query.PageLimit != 20 {
		t.Errorf("PageLimit = %d, want default 20", cfg.Query.PageLimit)
	}
	if cfg.Cache.TTL.Duration != 5*time.Minute {
		t.Errorf("Cache.TTL = %v, want default 5m", cfg.Cache.TTL.Duration)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[cache]\nttl = \"soon\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid duration")
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, &Config{DefaultSession: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
