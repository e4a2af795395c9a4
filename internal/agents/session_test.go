package agents

import (
	"fmt"
	"testing"

	"github.com/mbellotti/drover/internal/storage/docstore"
)

func TestSessionStoreInstructions(t *testing.T) {
	s := NewSessionStore(docstore.New(t.TempDir()))

	if _, ok := s.LoadInstructions(); ok {
		t.Error("fresh store reported instructions")
	}

	s.SaveInstructions("be helpful")
	got, ok := s.LoadInstructions()
	if !ok || got != "be helpful" {
		t.Errorf("LoadInstructions = %q/%v", got, ok)
	}
}

func TestSessionStoreSnapshot(t *testing.T) {
	s := NewSessionStore(docstore.New(t.TempDir()))

	if _, ok := s.LoadSession(); ok {
		t.Error("fresh store reported a session")
	}

	s.SaveSession("prompt", []string{"out-1", "out-2"}, 7)
	session, ok := s.LoadSession()
	if !ok {
		t.Fatal("session not found after save")
	}
	if session.Prompt != "prompt" || session.CycleCount != 7 || len(session.History) != 2 {
		t.Errorf("session = %+v", session)
	}
}

func TestSessionStoreBoundsHistory(t *testing.T) {
	s := NewSessionStore(docstore.New(t.TempDir()))

	history := make([]string, 30)
	for i := range history {
		history[i] = fmt.Sprintf("entry-%d", i)
	}
	s.SaveSession("prompt", history, 30)

	session, _ := s.LoadSession()
	if len(session.History) != sessionHistoryLimit {
		t.Fatalf("persisted %d entries, want %d", len(session.History), sessionHistoryLimit)
	}
	if session.History[0] != "entry-10" || session.History[19] != "entry-29" {
		t.Errorf("history window = %s..%s, want the newest 20", session.History[0], session.History[19])
	}
}
