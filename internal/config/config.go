package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds all runtime configuration parameters for the audit engine.
type Config struct {
	MaxPages          int                `json:"max_pages"`
	MaxDepth          int                `json:"max_depth"`
	PerFetchTimeoutMs int                `json:"per_fetch_timeout_ms"`
	AuditBudgetMs     int                `json:"audit_budget_ms"`
	WorkerConcurrency int                `json:"worker_concurrency"`
	RequestsPerSecond float64            `json:"requests_per_second"`
	CategoryWeights   map[string]float64 `json:"category_weights"`
	DBPath            string             `json:"db_path"`
	LogLevel          string             `json:"log_level"`
}

// LoadConfig reads and validates configuration from a JSON file. The decoder
// runs over a defaults-prefilled struct, so only fields absent from the file
// fall back to their defaults and an explicit "max_depth": 0 stays 0.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration populated entirely with defaults.
func Default() *Config {
	return &Config{
		MaxPages:          50,
		MaxDepth:          3,
		PerFetchTimeoutMs: 10000,
		AuditBudgetMs:     120000,
		WorkerConcurrency: 8,
		RequestsPerSecond: 10,
		DBPath:            "audits.db",
		LogLevel:          "info",
	}
}

// validate checks that required fields are present and values are sensible.
func validate(cfg *Config) error {
	if cfg.MaxPages < 1 {
		return fmt.Errorf("max_pages must be >= 1")
	}
	if cfg.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be >= 0")
	}
	if cfg.WorkerConcurrency < 1 {
		return fmt.Errorf("worker_concurrency must be >= 1")
	}
	if cfg.PerFetchTimeoutMs < 100 {
		return fmt.Errorf("per_fetch_timeout_ms must be >= 100")
	}
	if cfg.AuditBudgetMs < cfg.PerFetchTimeoutMs {
		return fmt.Errorf("audit_budget_ms must be >= per_fetch_timeout_ms")
	}
	if cfg.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be > 0")
	}
	return nil
}
