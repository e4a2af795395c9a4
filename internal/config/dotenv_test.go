package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := `# comment line
DROVER_DOTENV_A=hello
DROVER_DOTENV_B="quoted value"
DROVER_DOTENV_C='single'

not a kv line
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	t.Setenv("DROVER_DOTENV_A", "preexisting")
	os.Unsetenv("DROVER_DOTENV_B")
	os.Unsetenv("DROVER_DOTENV_C")
	t.Cleanup(func() {
		os.Unsetenv("DROVER_DOTENV_B")
		os.Unsetenv("DROVER_DOTENV_C")
	})

	if err := LoadDotenv(path); err != nil {
		t.Fatalf("LoadDotenv: %v", err)
	}

	// Existing vars are never overridden.
	if got := os.Getenv("DROVER_DOTENV_A"); got != "preexisting" {
		t.Errorf("A = %q, want %q", got, "preexisting")
	}
	if got := os.Getenv("DROVER_DOTENV_B"); got != "quoted value" {
		t.Errorf("B = %q, want %q", got, "quoted value")
	}
	if got := os.Getenv("DROVER_DOTENV_C"); got != "single" {
		t.Errorf("C = %q, want %q", got, "single")
	}
}

func TestLoadDotenvMissingFile(t *testing.T) {
	if err := LoadDotenv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing .env should be ignored, got %v", err)
	}
}
