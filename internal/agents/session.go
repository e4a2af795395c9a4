package agents

import (
	"log/slog"
	"time"

	"github.com/mbellotti/drover/internal/storage/docstore"
)

const (
	instructionsKey = "agent/instructions"
	sessionKey      = "agent/last_session"
)

// sessionHistoryLimit bounds the history persisted in a session snapshot.
const sessionHistoryLimit = 20

// Instructions is the persisted current-instructions document.
type Instructions struct {
	Prompt    string    `json:"prompt"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session is the persisted last-session snapshot.
type Session struct {
	Prompt     string    `json:"prompt"`
	History    []string  `json:"history"`
	CycleCount int       `json:"cycle_count"`
	SavedAt    time.Time `json:"saved_at"`
}

// SessionStore persists agent instructions and session snapshots. All reads
// treat errors as absent documents and all writes log and continue, so the
// agent loops never stall on storage.
type SessionStore struct {
	store *docstore.Store
}

// NewSessionStore creates a session store backed by the given document store.
func NewSessionStore(store *docstore.Store) *SessionStore {
	return &SessionStore{store: store}
}

// LoadInstructions returns the persisted instruction prompt, if any.
func (s *SessionStore) LoadInstructions() (string, bool) {
	var doc Instructions
	found, err := s.store.Load(instructionsKey, &doc)
	if err != nil {
		slog.Warn("agents: load instructions", "error", err)
		return "", false
	}
	return doc.Prompt, found && doc.Prompt != ""
}

// SaveInstructions persists the instruction prompt.
func (s *SessionStore) SaveInstructions(prompt string) {
	doc := Instructions{Prompt: prompt, UpdatedAt: time.Now()}
	if err := s.store.Save(instructionsKey, doc); err != nil {
		slog.Warn("agents: save instructions", "error", err)
	}
}

// LoadSession returns the last persisted session snapshot, if any.
func (s *SessionStore) LoadSession() (Session, bool) {
	var doc Session
	found, err := s.store.Load(sessionKey, &doc)
	if err != nil {
		slog.Warn("agents: load session", "error", err)
		return Session{}, false
	}
	return doc, found
}

// SaveSession persists a session snapshot with bounded history.
func (s *SessionStore) SaveSession(prompt string, history []string, cycleCount int) {
	if len(history) > sessionHistoryLimit {
		history = history[len(history)-sessionHistoryLimit:]
	}
	doc := Session{
		Prompt:     prompt,
		History:    history,
		CycleCount: cycleCount,
		SavedAt:    time.Now(),
	}
	if err := s.store.Save(sessionKey, doc); err != nil {
		slog.Warn("agents: save session", "error", err)
	}
}
