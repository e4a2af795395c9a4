package agents

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mbellotti/drover/internal/completion"
	"github.com/mbellotti/drover/internal/events"
	"github.com/mbellotti/drover/internal/storage/docstore"
)

// scriptedChat returns canned replies in order and records every prompt.
type scriptedChat struct {
	mu      sync.Mutex
	replies []string
	calls   int
	prompts []string
	systems []string
}

func (s *scriptedChat) Chat(_ context.Context, message string, opts ...completion.ChatOption) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var o completion.ChatOptions
	for _, opt := range opts {
		opt(&o)
	}
	s.prompts = append(s.prompts, message)
	s.systems = append(s.systems, o.SystemPrompt)

	reply := "cycle output"
	if s.calls < len(s.replies) {
		reply = s.replies[s.calls]
	}
	s.calls++
	return reply
}

func (s *scriptedChat) recorded() (prompts, systems []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...), append([]string(nil), s.systems...)
}

// outputCollector funnels agent output into a channel for timed assertions.
type outputCollector struct {
	ch chan string
}

func newOutputCollector() *outputCollector {
	return &outputCollector{ch: make(chan string, 64)}
}

func (o *outputCollector) callback() func(string) {
	return func(text string) { o.ch <- text }
}

func (o *outputCollector) waitFor(t *testing.T, substr string, timeout time.Duration) string {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case line := <-o.ch:
			if strings.Contains(line, substr) {
				return line
			}
		case <-deadline:
			t.Fatalf("never saw output containing %q", substr)
			return ""
		}
	}
}

func TestAgentRunsCycleAndPostsToOutbox(t *testing.T) {
	chat := &scriptedChat{replies: []string{"first draft"}}
	outbox := NewMailbox()
	out := newOutputCollector()

	agent := NewAutonomousAgent(Config{
		Prompt:     "work on things",
		CycleDelay: time.Hour,
		OnOutput:   out.callback(),
		Outbox:     outbox,
		Chat:       chat,
	})
	agent.Start()
	defer agent.Stop()

	out.waitFor(t, "first draft", 5*time.Second)

	msg, ok := outbox.Receive(time.Second)
	if !ok || msg != "first draft" {
		t.Errorf("outbox = %q/%v, want the cycle output", msg, ok)
	}
	if agent.CycleCount() != 1 {
		t.Errorf("cycle count = %d, want 1", agent.CycleCount())
	}

	_, systems := chat.recorded()
	if systems[0] != "work on things" {
		t.Errorf("system prompt = %q, want instructions", systems[0])
	}
}

func TestAgentStartIdempotentAndStateMachine(t *testing.T) {
	agent := NewAutonomousAgent(Config{
		Prompt:     "p",
		CycleDelay: time.Hour,
		Chat:       &scriptedChat{},
	})

	if agent.State() != StateStopped {
		t.Errorf("initial state = %v", agent.State())
	}

	agent.Start()
	agent.Start() // no-op
	if agent.State() != StateRunning {
		t.Errorf("state after start = %v", agent.State())
	}

	agent.Pause()
	if agent.State() != StatePaused {
		t.Errorf("state after pause = %v", agent.State())
	}
	agent.Resume()
	if agent.State() != StateRunning {
		t.Errorf("state after resume = %v", agent.State())
	}

	agent.Stop()
	agent.Stop() // no-op
	if agent.State() != StateStopped {
		t.Errorf("state after stop = %v", agent.State())
	}
}

func TestPausedAgentDoesNotAdvanceCycles(t *testing.T) {
	chat := &scriptedChat{}
	out := newOutputCollector()
	agent := NewAutonomousAgent(Config{
		Prompt:     "p",
		CycleDelay: 50 * time.Millisecond,
		OnOutput:   out.callback(),
		Chat:       chat,
	})
	agent.Start()
	defer agent.Stop()

	out.waitFor(t, "Cycle #1", 5*time.Second)
	agent.Pause()

	// Let the pause settle past the in-flight sleep, then watch for movement.
	time.Sleep(1500 * time.Millisecond)
	counted := agent.CycleCount()
	time.Sleep(1500 * time.Millisecond)

	if got := agent.CycleCount(); got != counted {
		t.Errorf("cycle count advanced from %d to %d while paused", counted, got)
	}
}

func TestFeedbackGateNegative(t *testing.T) {
	// First reply answers the gate question, second is the cycle output.
	chat := &scriptedChat{replies: []string{"No, this is noise.", "cycle output"}}
	inbox := NewMailbox()
	inbox.Send("pedantic nitpick")
	out := newOutputCollector()

	agent := NewAutonomousAgent(Config{
		Prompt:       "p",
		CycleDelay:   time.Hour,
		GateFeedback: true,
		OnOutput:     out.callback(),
		Inbox:        inbox,
		Chat:         chat,
	})
	agent.Start()
	defer agent.Stop()

	out.waitFor(t, "set aside", 5*time.Second)
	out.waitFor(t, "cycle output", 5*time.Second)

	prompts, _ := chat.recorded()
	if !strings.Contains(prompts[0], "pedantic nitpick") {
		t.Errorf("gate question missing feedback: %q", prompts[0])
	}
	if strings.Contains(prompts[1], "pedantic nitpick") {
		t.Errorf("rejected feedback leaked into cycle prompt: %q", prompts[1])
	}
}

func TestFeedbackGateAffirmative(t *testing.T) {
	chat := &scriptedChat{replies: []string{"Yes - clearly useful.", "cycle output"}}
	inbox := NewMailbox()
	inbox.Send("cite your sources")
	out := newOutputCollector()

	agent := NewAutonomousAgent(Config{
		Prompt:       "p",
		CycleDelay:   time.Hour,
		GateFeedback: true,
		OnOutput:     out.callback(),
		Inbox:        inbox,
		Chat:         chat,
	})
	agent.Start()
	defer agent.Stop()

	out.waitFor(t, "incorporating", 5*time.Second)

	prompts, _ := chat.recorded()
	if !strings.Contains(prompts[1], "CRITIC FEEDBACK") || !strings.Contains(prompts[1], "cite your sources") {
		t.Errorf("accepted feedback missing from cycle prompt: %q", prompts[1])
	}
}

func TestIsAffirmative(t *testing.T) {
	tests := []struct {
		reply string
		want  bool
	}{
		{"yes", true},
		{"  Yes, definitely.", true},
		{"YES.", true},
		{"no", false},
		{"Not really", false},
		{"maybe yes", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isAffirmative(tt.reply); got != tt.want {
			t.Errorf("isAffirmative(%q) = %v, want %v", tt.reply, got, tt.want)
		}
	}
}

func TestResumeWithMatchingInstructions(t *testing.T) {
	store := NewSessionStore(docstore.New(t.TempDir()))
	store.SaveSession("stable instructions", []string{"old output"}, 12)

	out := newOutputCollector()
	agent := NewAutonomousAgent(Config{
		Prompt:     "stable instructions",
		CycleDelay: time.Hour,
		OnOutput:   out.callback(),
		Chat:       &scriptedChat{},
		Sessions:   store,
	})
	agent.Start()
	defer agent.Stop()

	line := out.waitFor(t, "resuming", 5*time.Second)
	if !strings.Contains(line, "12 cycles") {
		t.Errorf("resume line = %q, want the persisted cycle count", line)
	}

	// The adopted history shows up in the first cycle's context.
	out.waitFor(t, "Cycle #1", 5*time.Second)
	agent.Stop()
	chat := agent.chat.(*scriptedChat)
	prompts, _ := chat.recorded()
	if !strings.Contains(prompts[0], "old output") {
		t.Errorf("first cycle prompt missing resumed history: %q", prompts[0])
	}
}

func TestStartCallbackMayReenterAgent(t *testing.T) {
	store := NewSessionStore(docstore.New(t.TempDir()))
	store.SaveSession("stable instructions", []string{"old output"}, 12)

	out := newOutputCollector()
	var agent *AutonomousAgent
	agent = NewAutonomousAgent(Config{
		Prompt:     "stable instructions",
		CycleDelay: time.Hour,
		OnOutput: func(text string) {
			// Callbacks may query the agent they observe; the resume
			// message must not be emitted while the agent lock is held.
			agent.CycleCount()
			out.ch <- text
		},
		Chat:     &scriptedChat{},
		Sessions: store,
	})
	agent.Start()
	defer agent.Stop()

	out.waitFor(t, "resuming", 5*time.Second)
}

func TestCompletionFailurePublishesAgentError(t *testing.T) {
	bus := events.NewBus(64)
	defer bus.Close()
	errEvents, unsub := bus.SubscribeChan(8, events.EventAgentError)
	defer unsub()

	failure := "Completion failed after 3 attempts: backend down"
	agent := NewAutonomousAgent(Config{
		Prompt:     "p",
		CycleDelay: time.Hour,
		Chat:       &scriptedChat{replies: []string{failure}},
		Bus:        bus,
	})
	agent.Start()
	defer agent.Stop()

	select {
	case e := <-errEvents:
		payload, ok := events.ExtractPayload[events.AgentErrorPayload](e)
		if !ok {
			t.Fatalf("event %v does not decode as AgentErrorPayload", e.Type)
		}
		if payload.Agent != "primary" || payload.Cycle != 1 || payload.Error != failure {
			t.Errorf("payload = %+v", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no agent error event for a failed completion")
	}
}

func TestResetWhenInstructionsChanged(t *testing.T) {
	store := NewSessionStore(docstore.New(t.TempDir()))
	store.SaveSession("old instructions", []string{"old output"}, 12)

	out := newOutputCollector()
	chat := &scriptedChat{}
	agent := NewAutonomousAgent(Config{
		Prompt:     "new instructions",
		CycleDelay: time.Hour,
		OnOutput:   out.callback(),
		Chat:       chat,
		Sessions:   store,
	})
	agent.Start()

	out.waitFor(t, "starting fresh", 5*time.Second)
	out.waitFor(t, "Cycle #1", 5*time.Second)
	agent.Stop()

	prompts, _ := chat.recorded()
	if strings.Contains(prompts[0], "old output") {
		t.Errorf("stale history leaked after instruction change: %q", prompts[0])
	}
}

func TestStopPersistsSession(t *testing.T) {
	store := NewSessionStore(docstore.New(t.TempDir()))
	out := newOutputCollector()

	agent := NewAutonomousAgent(Config{
		Prompt:     "persist me",
		CycleDelay: time.Hour,
		OnOutput:   out.callback(),
		Chat:       &scriptedChat{replies: []string{"the one output"}},
		Sessions:   store,
	})
	agent.Start()
	out.waitFor(t, "the one output", 5*time.Second)
	agent.Stop()

	session, ok := store.LoadSession()
	if !ok {
		t.Fatal("no session persisted on stop")
	}
	if session.Prompt != "persist me" || session.CycleCount != 1 || len(session.History) != 1 {
		t.Errorf("session = %+v", session)
	}
}

func TestUpdateInstructionsPersistsImmediately(t *testing.T) {
	store := NewSessionStore(docstore.New(t.TempDir()))
	agent := NewAutonomousAgent(Config{
		Prompt:   "original",
		Chat:     &scriptedChat{},
		Sessions: store,
	})

	agent.UpdateInstructions("revised")

	if agent.Instructions() != "revised" {
		t.Errorf("Instructions = %q", agent.Instructions())
	}
	saved, ok := store.LoadInstructions()
	if !ok || saved != "revised" {
		t.Errorf("persisted instructions = %q/%v", saved, ok)
	}
}
