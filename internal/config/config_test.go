package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.APIPort != "8080" {
		t.Fatalf("APIPort = %q, want 8080", cfg.APIPort)
	}
	if cfg.SessionBackend != "memory" {
		t.Fatalf("SessionBackend = %q, want memory", cfg.SessionBackend)
	}
	if cfg.NATSEnabled {
		t.Fatalf("NATS must be disabled by default")
	}
	if cfg.CompletionTimeoutSeconds != 15 {
		t.Fatalf("CompletionTimeoutSeconds = %d, want 15", cfg.CompletionTimeoutSeconds)
	}
	if cfg.PromptHistoryTurns != 5 {
		t.Fatalf("PromptHistoryTurns = %d, want 5", cfg.PromptHistoryTurns)
	}
	if cfg.SweepIntervalMinutes != 60 {
		t.Fatalf("SweepIntervalMinutes = %d, want 60", cfg.SweepIntervalMinutes)
	}
	if cfg.RateLimitRPS != 0 {
		t.Fatalf("rate limiting must be off by default, rps = %v", cfg.RateLimitRPS)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("SESSION_BACKEND", "postgres")
	t.Setenv("NATS_ENABLED", "true")
	t.Setenv("COMPLETION_TIMEOUT_SECONDS", "30")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg := Load()
	if cfg.APIPort != "9090" {
		t.Fatalf("APIPort = %q, want 9090", cfg.APIPort)
	}
	if cfg.SessionBackend != "postgres" {
		t.Fatalf("SessionBackend = %q, want postgres", cfg.SessionBackend)
	}
	if !cfg.NATSEnabled {
		t.Fatalf("NATSEnabled should be true")
	}
	if cfg.CompletionTimeoutSeconds != 30 {
		t.Fatalf("CompletionTimeoutSeconds = %d, want 30", cfg.CompletionTimeoutSeconds)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("RateLimitRPS = %v, want 2.5", cfg.RateLimitRPS)
	}
}

func TestLoadInvalidEnvValuesKeepDefaults(t *testing.T) {
	t.Setenv("COMPLETION_TIMEOUT_SECONDS", "soon")
	t.Setenv("NATS_ENABLED", "maybe")

	cfg := Load()
	if cfg.CompletionTimeoutSeconds != 15 {
		t.Fatalf("unparseable int must keep the default, got %d", cfg.CompletionTimeoutSeconds)
	}
	if cfg.NATSEnabled {
		t.Fatalf("unparseable bool must keep the default")
	}
}

func TestLoadYAMLFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("api_port: \"9999\"\nsession_backend: postgres\nprompt_history_turns: 3\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg := Load()
	if cfg.APIPort != "9999" {
		t.Fatalf("APIPort = %q, want 9999", cfg.APIPort)
	}
	if cfg.SessionBackend != "postgres" {
		t.Fatalf("SessionBackend = %q, want postgres", cfg.SessionBackend)
	}
	if cfg.PromptHistoryTurns != 3 {
		t.Fatalf("PromptHistoryTurns = %d, want 3", cfg.PromptHistoryTurns)
	}
	// Keys absent from the file keep their defaults.
	if cfg.OllamaGenModel != "llama3.1:8b" {
		t.Fatalf("OllamaGenModel = %q", cfg.OllamaGenModel)
	}
}

func TestEnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("api_port: \"9999\"\n"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("API_PORT", "7070")

	cfg := Load()
	if cfg.APIPort != "7070" {
		t.Fatalf("environment must win over the file, got %q", cfg.APIPort)
	}
}

func TestMissingConfigFileIsIgnored(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg := Load()
	if cfg.APIPort != "8080" {
		t.Fatalf("missing file must leave defaults, got %q", cfg.APIPort)
	}
}
