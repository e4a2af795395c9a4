package tasks

import (
	"log/slog"
	"sync"

	"github.com/mbellotti/drover/internal/storage/docstore"
)

const historyIndexKey = "task_history"

// HistoryIndex persists the bounded per-task history, keyed by task name so
// it survives process restarts and task id regeneration.
type HistoryIndex struct {
	mu    sync.Mutex
	store *docstore.Store
}

// NewHistoryIndex creates a history index backed by the given store.
func NewHistoryIndex(store *docstore.Store) *HistoryIndex {
	return &HistoryIndex{store: store}
}

// Load returns the persisted history for a task name. Read errors are
// treated as an absent document.
func (h *HistoryIndex) Load(name string) []RunRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	index := h.loadIndex()
	return index[name]
}

// Flush replaces the persisted history for a task name. Write errors are
// logged and swallowed so task execution never fails on persistence.
func (h *HistoryIndex) Flush(name string, entries []RunRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	index := h.loadIndex()
	index[name] = entries

	if err := h.store.Save(historyIndexKey, index); err != nil {
		slog.Warn("tasks: persist history index", "task", name, "error", err)
	}
}

// loadIndex reads the whole index document. Caller must hold h.mu.
func (h *HistoryIndex) loadIndex() map[string][]RunRecord {
	index := make(map[string][]RunRecord)
	found, err := h.store.Load(historyIndexKey, &index)
	if err != nil {
		slog.Warn("tasks: load history index", "error", err)
		return make(map[string][]RunRecord)
	}
	if !found {
		return make(map[string][]RunRecord)
	}
	return index
}
