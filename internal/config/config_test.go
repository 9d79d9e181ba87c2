package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{"max_pages": 5}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MaxPages != 5 {
		t.Errorf("max pages = %d, want 5", cfg.MaxPages)
	}
	if cfg.MaxDepth != 3 {
		t.Errorf("max depth = %d, want default 3", cfg.MaxDepth)
	}
	if cfg.WorkerConcurrency != 8 {
		t.Errorf("workers = %d, want default 8", cfg.WorkerConcurrency)
	}
	if cfg.PerFetchTimeoutMs != 10000 {
		t.Errorf("fetch timeout = %d, want default 10000", cfg.PerFetchTimeoutMs)
	}
	if cfg.AuditBudgetMs != 120000 {
		t.Errorf("budget = %d, want default 120000", cfg.AuditBudgetMs)
	}
	if cfg.RequestsPerSecond != 10 {
		t.Errorf("rps = %v, want default 10", cfg.RequestsPerSecond)
	}
	if cfg.DBPath != "audits.db" {
		t.Errorf("db path = %q, want default audits.db", cfg.DBPath)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q, want default info", cfg.LogLevel)
	}
}

func TestLoadConfigExplicitZeroDepth(t *testing.T) {
	path := writeConfig(t, `{"max_depth": 0}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MaxDepth != 0 {
		t.Errorf("max depth = %d, want explicit 0 preserved", cfg.MaxDepth)
	}
	if cfg.MaxPages != 50 {
		t.Errorf("max pages = %d, absent fields must still default", cfg.MaxPages)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		json string
	}{
		{"negative max pages", `{"max_pages": -1}`},
		{"negative depth", `{"max_depth": -2}`},
		{"tiny fetch timeout", `{"per_fetch_timeout_ms": 50}`},
		{"budget below fetch timeout", `{"per_fetch_timeout_ms": 10000, "audit_budget_ms": 5000}`},
		{"negative rps", `{"requests_per_second": -1}`},
	}
	for _, c := range cases {
		path := writeConfig(t, c.json)
		if _, err := LoadConfig(path); err == nil {
			t.Errorf("%s: expected error", c.name)
		}
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfigBadJSON(t *testing.T) {
	path := writeConfig(t, `{not json`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := validate(cfg); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	if cfg.MaxPages != 50 {
		t.Errorf("max pages = %d, want 50", cfg.MaxPages)
	}
}

func TestLoadConfigCategoryWeights(t *testing.T) {
	path := writeConfig(t, `{"category_weights": {"on-page": 0.5, "performance": 0.25, "coverage": 0.25}}`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got := cfg.CategoryWeights["on-page"]; got != 0.5 {
		t.Errorf("on-page weight = %v, want 0.5", got)
	}
}
