package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/marcozac/go-jsonc"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a JSONC config file, expands ${{ .Env.VAR }} templates, strips
// comments, unmarshals it into Config, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand env templates before stripping comments, since templates live inside strings.
	expanded := expandEnvTemplates(string(data))

	var cfg Config
	if err := jsonc.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// ApplyDefaults fills in zero-value fields with working defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = 1024
	}
	if cfg.Tasks.MaxWorkers == 0 {
		cfg.Tasks.MaxWorkers = 5
	}
	if cfg.Tasks.MaxOutputs == 0 {
		cfg.Tasks.MaxOutputs = 100
	}
	if cfg.Tasks.MaxHistory == 0 {
		cfg.Tasks.MaxHistory = 10
	}
	if cfg.Tasks.SearchResults == 0 {
		cfg.Tasks.SearchResults = 5
	}
	if cfg.Agents.Primary.CycleDelay.Duration() == 0 {
		cfg.Agents.Primary.CycleDelay = Duration(30 * time.Second)
	}
	if cfg.Agents.Primary.HistoryLimit == 0 {
		cfg.Agents.Primary.HistoryLimit = 20
	}
	if cfg.Agents.Critic.CycleDelay.Duration() == 0 {
		cfg.Agents.Critic.CycleDelay = Duration(5 * time.Second)
	}
	if cfg.Agents.Critic.HistoryLimit == 0 {
		cfg.Agents.Critic.HistoryLimit = 20
	}
	if cfg.Heartbeat.Interval.Duration() == 0 {
		cfg.Heartbeat.Interval = Duration(30 * time.Second)
	}
}
