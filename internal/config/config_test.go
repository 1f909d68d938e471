package config

import (
	"testing"
	"time"
)

func TestLoad_RequiresProject(t *testing.T) {
	t.Setenv("GCP_PROJECT_ID", "")

	if _, err := Load(); err == nil {
		t.Error("Expected error when GCP_PROJECT_ID is missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GCP_PROJECT_ID", "test-project")
	t.Setenv("BQ_DATASET", "")
	t.Setenv("GEMINI_MODEL", "")
	t.Setenv("LLM_TIMEOUT", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Dataset != "finance" {
		t.Errorf("Dataset = %q, want finance", cfg.Dataset)
	}
	if cfg.GeminiModel == "" {
		t.Error("Expected a default Gemini model")
	}
	if cfg.LLMTimeout != 30*time.Second {
		t.Errorf("LLMTimeout = %v, want 30s", cfg.LLMTimeout)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
}

func TestLoad_InvalidTimeout(t *testing.T) {
	t.Setenv("GCP_PROJECT_ID", "test-project")
	t.Setenv("LLM_TIMEOUT", "not-a-duration")

	if _, err := Load(); err == nil {
		t.Error("Expected error for invalid LLM_TIMEOUT")
	}
}
