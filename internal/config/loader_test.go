package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.jsonc")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		// minimal config
		"models": {
			"default": "local",
			"providers": {
				"local": { "driver": "ollama", "model": "llama3.1:8b" }
			}
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Models.Default != "local" {
		t.Errorf("default provider = %q, want %q", cfg.Models.Default, "local")
	}
	if cfg.Tasks.MaxWorkers != 5 {
		t.Errorf("MaxWorkers = %d, want 5", cfg.Tasks.MaxWorkers)
	}
	if cfg.Tasks.MaxOutputs != 100 {
		t.Errorf("MaxOutputs = %d, want 100", cfg.Tasks.MaxOutputs)
	}
	if cfg.Agents.Primary.CycleDelay.Duration() != 30*time.Second {
		t.Errorf("primary cycle delay = %v, want 30s", cfg.Agents.Primary.CycleDelay.Duration())
	}
	if cfg.Agents.Critic.CycleDelay.Duration() != 5*time.Second {
		t.Errorf("critic cycle delay = %v, want 5s", cfg.Agents.Critic.CycleDelay.Duration())
	}
}

func TestLoadExpandsEnvTemplates(t *testing.T) {
	t.Setenv("DROVER_TEST_KEY", "sk-test-123")

	path := writeConfig(t, `{
		"models": {
			"default": "claude",
			"providers": {
				"claude": {
					"driver": "anthropic",
					"model": "claude-sonnet-4",
					"auth": { "api_key": "${{ .Env.DROVER_TEST_KEY }}" }
				}
			}
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	got := cfg.Models.Providers["claude"].Auth.APIKey
	if got != "sk-test-123" {
		t.Errorf("api_key = %q, want %q", got, "sk-test-123")
	}
}

func TestLoadDurationString(t *testing.T) {
	path := writeConfig(t, `{
		"agents": {
			"primary": { "cycle_delay": "45s" },
			"critic": { "cycle_delay": "2s" }
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agents.Primary.CycleDelay.Duration() != 45*time.Second {
		t.Errorf("primary cycle delay = %v, want 45s", cfg.Agents.Primary.CycleDelay.Duration())
	}
	if cfg.Agents.Critic.CycleDelay.Duration() != 2*time.Second {
		t.Errorf("critic cycle delay = %v, want 2s", cfg.Agents.Critic.CycleDelay.Duration())
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.jsonc"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}
