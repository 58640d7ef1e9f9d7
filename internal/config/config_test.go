package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "intervene.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":8600" {
		t.Errorf("addr: got %q", cfg.Server.Addr)
	}
	if cfg.Gate.HighLoadThreshold != 0.8 || cfg.Gate.DailyCap != 4 {
		t.Errorf("gate defaults wrong: %+v", cfg.Gate)
	}
	if cfg.Selector.PersonaFit != 0.3 {
		t.Errorf("selector defaults wrong: %+v", cfg.Selector)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9999"
gate:
  high_load_threshold: 0.9
  min_spacing_minutes: 45
  daily_cap: 2
database:
  path: /tmp/test.db
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("addr: got %q", cfg.Server.Addr)
	}
	if cfg.Gate.HighLoadThreshold != 0.9 || cfg.Gate.MinSpacingMinutes != 45 || cfg.Gate.DailyCap != 2 {
		t.Errorf("gate: %+v", cfg.Gate)
	}
	// Untouched sections keep defaults.
	if cfg.Log.Level != "info" {
		t.Errorf("log level: got %q", cfg.Log.Level)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9999\"\n")
	t.Setenv("INTERVENE_ADDR", ":7777")
	t.Setenv("INTERVENE_REDIS_ENABLED", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":7777" {
		t.Errorf("env override lost: %q", cfg.Server.Addr)
	}
	if !cfg.Redis.Enabled {
		t.Error("redis enabled override lost")
	}
}

func TestExpandEnvInFile(t *testing.T) {
	t.Setenv("TEST_DB_PATH", "/tmp/expanded.db")
	path := writeConfig(t, "database:\n  path: ${TEST_DB_PATH}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.Path != "/tmp/expanded.db" {
		t.Errorf("expansion failed: %q", cfg.Database.Path)
	}
}

func TestRejectsBadWeights(t *testing.T) {
	path := writeConfig(t, `
selector:
  persona_fit: 0.5
  cost: 0.5
  learned: 0.5
  recency: 0.5
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected weight-sum validation error")
	}
}

func TestMissingFileIsError(t *testing.T) {
	if _, err := Load("/nonexistent/intervene.yaml"); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}
