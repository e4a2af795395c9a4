package secrets

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateIdentity_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".age-key")

	if err := GenerateIdentity(path); err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("permissions = %o, want 0600", info.Mode().Perm())
	}
}

func TestGenerateIdentity_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".age-key")

	if err := GenerateIdentity(path); err != nil {
		t.Fatalf("first call: %v", err)
	}
	data1, _ := os.ReadFile(path)

	if err := GenerateIdentity(path); err != nil {
		t.Fatalf("second call: %v", err)
	}
	data2, _ := os.ReadFile(path)

	if string(data1) != string(data2) {
		t.Error("idempotency broken: file changed on second call")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".age-key")
	if err := GenerateIdentity(path); err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}

	id, err := LoadIdentity(path)
	if err != nil {
		t.Fatalf("LoadIdentity: %v", err)
	}

	blob, err := Encrypt("sk-super-secret", id.Recipient())
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if !IsEncrypted(blob) {
		t.Fatalf("blob %q should look encrypted", blob)
	}

	plain, err := Decrypt(blob, id)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plain != "sk-super-secret" {
		t.Errorf("Decrypt = %q, want %q", plain, "sk-super-secret")
	}
}

func TestResolvePlainValuePassesThrough(t *testing.T) {
	got, err := Resolve("plain-api-key")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "plain-api-key" {
		t.Errorf("Resolve = %q, want passthrough", got)
	}
}

func TestResolveEncryptedValue(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DROVER_PATH", dir)

	if err := GenerateIdentity(KeyPath()); err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}
	id, err := LoadIdentity(KeyPath())
	if err != nil {
		t.Fatalf("LoadIdentity: %v", err)
	}

	blob, err := Encrypt("hunter2", id.Recipient())
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	got, err := Resolve(blob)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "hunter2" {
		t.Errorf("Resolve = %q, want %q", got, "hunter2")
	}
}
