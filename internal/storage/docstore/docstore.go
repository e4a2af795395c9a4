// Package docstore provides durable key→JSON-document storage.
//
// Keys are slash-separated paths ("agent/last_session", "task_history");
// each maps to one JSON file under the store root. Missing keys load as
// absent, not as errors, so callers can treat every read as "document or
// empty default".
package docstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store is a directory-backed key→document store with atomic writes.
type Store struct {
	mu      sync.RWMutex
	baseDir string
}

// New creates a Store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// BaseDir returns the store root.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// Load reads the document at key into out.
// A missing key returns (false, nil); corrupt or unreadable documents return an error.
func (s *Store) Load(key string, out any) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read document %s: %w", key, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("unmarshal document %s: %w", key, err)
	}
	return true, nil
}

// Save writes v as the document at key using a temp file + rename so readers
// never observe a partial write.
func (s *Store) Save(key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", key, err)
	}

	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create document dir %s: %w", key, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write document tmp %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename document %s: %w", key, err)
	}
	return nil
}

// Delete removes the document at key. Deleting a missing key is a no-op.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete document %s: %w", key, err)
	}
	return nil
}

// Exists reports whether a document is present at key.
func (s *Store) Exists(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.path(key))
	return err == nil
}

// path maps a key to its file location, neutralizing traversal segments.
func (s *Store) path(key string) string {
	clean := filepath.Clean(strings.ReplaceAll(key, "..", "_"))
	return filepath.Join(s.baseDir, clean+".json")
}
