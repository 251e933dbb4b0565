package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"promptscan-backend/internal/shared/telemetry"
)

func resetFileValues(t *testing.T) {
	t.Helper()
	prev := fileValues
	fileValues = nil
	t.Cleanup(func() { fileValues = prev })
}

func TestLoadDefaults(t *testing.T) {
	resetFileValues(t)
	t.Chdir(t.TempDir())

	cfg := Load()
	if cfg.LLMProvider != "gemini" {
		t.Fatalf("expected default provider gemini, got %q", cfg.LLMProvider)
	}
	if cfg.LLMMaxOutputTokens != 1000 {
		t.Fatalf("expected default max output tokens 1000, got %d", cfg.LLMMaxOutputTokens)
	}
	if cfg.PromptDelay != time.Second {
		t.Fatalf("expected default prompt delay 1s, got %s", cfg.PromptDelay)
	}
	if cfg.LLMTemperature <= 0 {
		t.Fatalf("expected positive temperature, got %v", cfg.LLMTemperature)
	}
}

func TestLoadRejectsNonPositiveTemperature(t *testing.T) {
	resetFileValues(t)
	t.Chdir(t.TempDir())
	t.Setenv("LLM_TEMPERATURE", "0")

	cfg := Load()
	if cfg.LLMTemperature != defaultTemperature {
		t.Fatalf("expected fallback temperature %v, got %v", defaultTemperature, cfg.LLMTemperature)
	}
}

func TestConfigFileValuesAreOverriddenByEnv(t *testing.T) {
	resetFileValues(t)
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "promptscan.yaml")
	content := "llm_provider: openai\nprompt_delay_ms: 250\nport: 9090\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7070")

	cfg := Load()
	if cfg.LLMProvider != "openai" {
		t.Fatalf("expected provider from file, got %q", cfg.LLMProvider)
	}
	if cfg.PromptDelay != 250*time.Millisecond {
		t.Fatalf("expected delay from file, got %s", cfg.PromptDelay)
	}
	if cfg.Port != "7070" {
		t.Fatalf("expected env to override file port, got %q", cfg.Port)
	}
}

func TestLoadConfigFileTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promptscan.toml")
	content := "llm_model = \"gemini-2.0-flash\"\ncors_allow_origins = [\"http://a\", \"http://b\"]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	values, err := loadConfigFile(path)
	if err != nil {
		t.Fatalf("loadConfigFile: %v", err)
	}
	if values["llm_model"] != "gemini-2.0-flash" {
		t.Fatalf("unexpected llm_model %q", values["llm_model"])
	}
	if values["cors_allow_origins"] != "http://a,http://b" {
		t.Fatalf("unexpected cors_allow_origins %q", values["cors_allow_origins"])
	}
}

func TestLoadConfigFileUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promptscan.ini")
	if err := os.WriteFile(path, []byte("x=1"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadConfigFile(path); err == nil {
		t.Fatalf("expected error for unsupported extension")
	}
}

func TestLoadLogsInvalidValuesAsJSON(t *testing.T) {
	resetFileValues(t)
	t.Chdir(t.TempDir())
	t.Setenv("LLM_MAX_OUTPUT_TOKENS", "lots")

	var buf bytes.Buffer
	restore := telemetry.SetOutput(&buf)
	defer restore()

	cfg := Load()
	if cfg.LLMMaxOutputTokens != defaultMaxOutputTokens {
		t.Fatalf("expected fallback max tokens, got %d", cfg.LLMMaxOutputTokens)
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.SplitN(buf.Bytes(), []byte("\n"), 2)[0], &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "config.invalid_value" || entry["key"] != "LLM_MAX_OUTPUT_TOKENS" {
		t.Fatalf("unexpected log entry %v", entry)
	}
}
