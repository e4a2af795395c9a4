package config

import "time"

// Config is the root configuration for Drover.
type Config struct {
	Models    ModelsConfig    `json:"models"`
	Events    EventsConfig    `json:"events"`
	Tasks     TasksConfig     `json:"tasks"`
	Agents    AgentsConfig    `json:"agents"`
	Heartbeat HeartbeatConfig `json:"heartbeat"`
}

// ModelsConfig holds model provider configuration for the completion service.
type ModelsConfig struct {
	Default   string                    `json:"default"`
	Providers map[string]ProviderConfig `json:"providers"`
}

// ProviderConfig configures a single completion provider.
type ProviderConfig struct {
	Driver    string         `json:"driver"` // "anthropic", "openai", "ollama"
	Model     string         `json:"model"`
	BaseURL   string         `json:"base_url,omitempty"`
	Auth      AuthConfig     `json:"auth"`
	MaxTokens int            `json:"max_tokens,omitempty"`
	Timeout   Duration       `json:"timeout,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

// AuthConfig configures credential resolution for a provider.
// Values may be literal keys, ${{ .Env.VAR }} references, or ENC[age:...] blobs.
type AuthConfig struct {
	APIKey string `json:"api_key,omitempty"`
	Token  string `json:"token,omitempty"`
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int `json:"buffer_size"`
}

// TasksConfig holds task manager settings.
type TasksConfig struct {
	MaxWorkers    int `json:"max_workers"`    // parallel execution slots
	MaxOutputs    int `json:"max_outputs"`    // output files kept per task name
	MaxHistory    int `json:"max_history"`    // default in-memory history per task
	SearchResults int `json:"search_results"` // max web search results per query
}

// AgentsConfig holds settings for the autonomous/critic agent pair.
type AgentsConfig struct {
	Primary AgentConfig `json:"primary"`
	Critic  AgentConfig `json:"critic"`
}

// AgentConfig configures one agent loop.
type AgentConfig struct {
	Instructions string   `json:"instructions,omitempty"` // empty = persisted or built-in default
	CycleDelay   Duration `json:"cycle_delay,omitempty"`
	FeedbackGate bool     `json:"feedback_gate"` // filter peer feedback through a judgment call
	HistoryLimit int      `json:"history_limit,omitempty"`
	Model        string   `json:"model,omitempty"` // provider override, empty = default
}

// HeartbeatConfig holds liveness file settings.
type HeartbeatConfig struct {
	Interval Duration `json:"interval,omitempty"`
}

// Duration wraps time.Duration for JSON unmarshaling from strings like "30s".
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
