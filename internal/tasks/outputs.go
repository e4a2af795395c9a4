package tasks

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DefaultMaxOutputs bounds the number of output files kept per task name.
const DefaultMaxOutputs = 100

const maxSanitizedNameLen = 50

// OutputStore persists one JSON file per task run under a per-task folder,
// pruning the oldest files beyond a cap. Writes are atomic (tmp + rename) so
// a crash never leaves a truncated record behind.
type OutputStore struct {
	mu         sync.Mutex
	baseDir    string
	maxPerTask int
}

// NewOutputStore creates an output store rooted at baseDir.
func NewOutputStore(baseDir string, maxPerTask int) *OutputStore {
	if maxPerTask <= 0 {
		maxPerTask = DefaultMaxOutputs
	}
	return &OutputStore{baseDir: baseDir, maxPerTask: maxPerTask}
}

// SanitizeName maps a task name to a filesystem-safe folder name: characters
// outside [a-zA-Z0-9 _-] become '_', spaces become '_', capped at 50 chars.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '_', r == '-':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if len(s) > maxSanitizedNameLen {
		s = s[:maxSanitizedNameLen]
	}
	return s
}

// Folder returns the directory that holds the output series for a task name.
func (s *OutputStore) Folder(name string) string {
	return filepath.Join(s.baseDir, SanitizeName(name))
}

// Write persists one run record and prunes files beyond the cap, oldest first.
func (s *OutputStore) Write(rec RunRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.Folder(rec.TaskName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	filename := fmt.Sprintf("run_%04d_%s.json", rec.RunNumber, rec.Timestamp.Format("20060102_150405"))
	path := filepath.Join(dir, filename)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal run record: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write run record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename run record: %w", err)
	}

	s.rotate(dir)
	return path, nil
}

// rotate removes the oldest output files beyond the per-task cap.
// Caller must hold s.mu.
func (s *OutputStore) rotate(dir string) {
	files, err := s.listRunFiles(dir)
	if err != nil {
		slog.Warn("outputs: list for rotation", "dir", dir, "error", err)
		return
	}

	for len(files) > s.maxPerTask {
		oldest := files[0]
		if err := os.Remove(filepath.Join(dir, oldest)); err != nil {
			slog.Warn("outputs: prune", "file", oldest, "error", err)
			return
		}
		files = files[1:]
	}
}

// Load returns up to limit run records for a task name, newest first.
// Corrupt files are skipped. A missing folder yields an empty result.
func (s *OutputStore) Load(name string, limit int) ([]RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.Folder(name)
	files, err := s.listRunFiles(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list outputs: %w", err)
	}

	// listRunFiles sorts ascending; walk from the end for newest-first.
	var records []RunRecord
	for i := len(files) - 1; i >= 0; i-- {
		if limit > 0 && len(records) >= limit {
			break
		}
		path := filepath.Join(dir, files[i])
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("outputs: read", "file", files[i], "error", err)
			continue
		}
		var rec RunRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			slog.Warn("outputs: corrupt record skipped", "file", files[i], "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// listRunFiles returns run_*.json filenames sorted ascending. Run number and
// timestamp are zero-padded in the filename, so lexicographic order is
// chronological order.
func (s *OutputStore) listRunFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "run_") && strings.HasSuffix(name, ".json") {
			files = append(files, name)
		}
	}
	sort.Strings(files)
	return files, nil
}
