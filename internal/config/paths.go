package config

import (
	"os"
	"path/filepath"
)

// DroverPath returns the root directory for Drover data.
// It uses $DROVER_PATH if set, otherwise defaults to ~/.drover.
func DroverPath() string {
	if v := os.Getenv("DROVER_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".drover")
	}
	return filepath.Join(home, ".drover")
}

// ConfigPath returns the path to the Drover config file.
func ConfigPath() string {
	return filepath.Join(DroverPath(), "config.jsonc")
}

// DotenvPath returns the path to the Drover .env file.
func DotenvPath() string {
	return filepath.Join(DroverPath(), ".env")
}

// DataPath returns the key→document store root.
func DataPath() string {
	return filepath.Join(DroverPath(), "data")
}

// TaskDataPath returns the per-task output store root.
func TaskDataPath() string {
	return filepath.Join(DroverPath(), "task_data")
}

// LogsPath returns the event log directory.
func LogsPath() string {
	return filepath.Join(DroverPath(), "logs")
}

// HeartbeatPath returns the liveness file path.
func HeartbeatPath() string {
	return filepath.Join(DroverPath(), "heartbeat.json")
}

// PersonasPath returns the personas file path.
func PersonasPath() string {
	return filepath.Join(DroverPath(), "personas.yaml")
}
