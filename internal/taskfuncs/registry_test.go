package taskfuncs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mbellotti/drover/internal/completion"
	"github.com/mbellotti/drover/internal/tasks"
)

// fakeChat records prompts and returns a canned reply.
type fakeChat struct {
	reply   string
	prompts []string
	opts    []completion.ChatOptions
}

func (f *fakeChat) Chat(_ context.Context, message string, opts ...completion.ChatOption) string {
	f.prompts = append(f.prompts, message)
	var o completion.ChatOptions
	for _, opt := range opts {
		opt(&o)
	}
	f.opts = append(f.opts, o)
	return f.reply
}

func TestResolveBuiltin(t *testing.T) {
	r := NewRegistry(&fakeChat{reply: "insight"})

	for _, name := range []string{"heartbeat", "self_reflection", "knowledge_check"} {
		if _, err := r.Resolve(tasks.Spec{Builtin: name}); err != nil {
			t.Errorf("Resolve(%s): %v", name, err)
		}
	}

	if _, err := r.Resolve(tasks.Spec{Builtin: "no_such"}); err == nil {
		t.Error("unknown builtin accepted")
	}
	if _, err := r.Resolve(tasks.Spec{}); err == nil {
		t.Error("empty spec accepted")
	}
}

func TestHeartbeatCountsHistory(t *testing.T) {
	got, err := heartbeatWork(context.Background(), []tasks.RunRecord{{}, {}})
	if err != nil {
		t.Fatalf("heartbeatWork: %v", err)
	}
	if !strings.HasPrefix(got, "Heartbeat #3:") {
		t.Errorf("got %q, want heartbeat #3", got)
	}
}

func TestSelfReflectionBuildsOnHistory(t *testing.T) {
	chat := &fakeChat{reply: "I should listen more."}
	r := NewRegistry(chat)

	previous := []tasks.RunRecord{
		{Result: "Reflection: one"},
		{Result: "Reflection: two"},
		{Result: "Reflection: three"},
		{Result: "Reflection: four"},
	}
	got, err := r.selfReflectionWork(context.Background(), previous)
	if err != nil {
		t.Fatalf("selfReflectionWork: %v", err)
	}
	if !strings.HasPrefix(got, "Reflection: ") {
		t.Errorf("got %q, want Reflection prefix", got)
	}

	prompt := chat.prompts[0]
	if !strings.Contains(prompt, "Previous reflections:") {
		t.Errorf("prompt missing history context: %q", prompt)
	}
	// Only the last three reflections are carried.
	if strings.Contains(prompt, "Reflection: one") {
		t.Errorf("prompt carries more than 3 reflections: %q", prompt)
	}
	if chat.opts[0].SystemPrompt != reflectionSystemPrompt {
		t.Errorf("system prompt = %q", chat.opts[0].SystemPrompt)
	}
}

func TestKnowledgeCheck(t *testing.T) {
	chat := &fakeChat{reply: "Go ships a race detector."}
	r := NewRegistry(chat)

	got, err := r.knowledgeCheckWork(context.Background(), nil)
	if err != nil {
		t.Fatalf("knowledgeCheckWork: %v", err)
	}
	if !strings.HasPrefix(got, "Knowledge (") || !strings.Contains(got, chat.reply) {
		t.Errorf("got %q", got)
	}
}

func TestPromptWorkWithHistory(t *testing.T) {
	chat := &fakeChat{reply: "report written"}
	r := NewRegistry(chat)

	fn, err := r.Resolve(tasks.Spec{Prompt: "write a status report"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	previous := make([]tasks.RunRecord, 7)
	for i := range previous {
		previous[i] = tasks.RunRecord{
			RunNumber: i + 1,
			Timestamp: time.Date(2026, 3, 1, 10, i, 0, 0, time.UTC),
			Result:    strings.Repeat("x", 300),
		}
	}

	got, err := fn(context.Background(), previous)
	if err != nil {
		t.Fatalf("work func: %v", err)
	}
	if got != "report written" {
		t.Errorf("got %q", got)
	}

	prompt := chat.prompts[0]
	if !strings.Contains(prompt, "Current task: write a status report") {
		t.Errorf("prompt missing task text: %q", prompt)
	}
	// Last 5 runs, numbered, results truncated to 200 chars.
	if !strings.Contains(prompt, "1. [") || !strings.Contains(prompt, "5. [") || strings.Contains(prompt, "6. [") {
		t.Errorf("prompt history numbering wrong: %q", prompt)
	}
	if strings.Contains(prompt, strings.Repeat("x", 201)) {
		t.Error("history results not truncated to 200 chars")
	}
	if !chat.opts[0].UseTools {
		t.Error("prompt tasks should run with tools enabled")
	}
}

func TestPromptWorkWithoutHistory(t *testing.T) {
	chat := &fakeChat{reply: "done"}
	r := NewRegistry(chat)

	fn, _ := r.Resolve(tasks.Spec{Prompt: "check the weather"})
	if _, err := fn(context.Background(), nil); err != nil {
		t.Fatalf("work func: %v", err)
	}
	if chat.prompts[0] != "check the weather" {
		t.Errorf("prompt = %q, want bare task text", chat.prompts[0])
	}
}
