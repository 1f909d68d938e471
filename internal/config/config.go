package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration for the API server and CLI.
// Values come from the environment; a local .env file is loaded first
// when present so development does not require exporting everything.
type Config struct {
	// GCP / BigQuery
	ProjectID string
	Dataset   string

	// Gemini
	GeminiModel string
	LLMTimeout  time.Duration

	// Optional GCS bucket for archiving full report content.
	// Empty disables archiving; reports then keep inline content only.
	ReportBucket string

	// Optional Notion export target.
	NotionToken      string
	NotionDatabaseID string

	// HTTP
	Port string
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// Missing .env is fine; the environment may already be populated.
		_ = err
	}

	cfg := &Config{
		ProjectID:        os.Getenv("GCP_PROJECT_ID"),
		Dataset:          envOr("BQ_DATASET", "finance"),
		GeminiModel:      envOr("GEMINI_MODEL", "gemini-2.0-flash"),
		LLMTimeout:       30 * time.Second,
		ReportBucket:     os.Getenv("REPORT_BUCKET"),
		NotionToken:      os.Getenv("NOTION_TOKEN"),
		NotionDatabaseID: os.Getenv("NOTION_REPORTS_DB_ID"),
		Port:             envOr("PORT", "8080"),
	}

	if v := os.Getenv("LLM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("config: invalid LLM_TIMEOUT %q: %w", v, err)
		}
		cfg.LLMTimeout = d
	}

	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("config: GCP_PROJECT_ID is required")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
