package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mbellotti/drover/internal/completion"
	"github.com/mbellotti/drover/internal/events"
)

// State is the lifecycle state of an agent loop.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
	StatePaused  State = "paused"
)

// Chatter is the completion surface the agent loops call.
type Chatter interface {
	Chat(ctx context.Context, message string, opts ...completion.ChatOption) string
}

// DefaultCycleDelay is the primary agent's pause between cycles.
const DefaultCycleDelay = 30 * time.Second

// DefaultHistoryLimit bounds each agent's in-memory output history.
const DefaultHistoryLimit = 20

// Config holds dependencies and settings for an autonomous agent.
type Config struct {
	Prompt       string        // "" = persisted instructions, then default
	CycleDelay   time.Duration // 0 = 30s
	HistoryLimit int           // 0 = 20
	GateFeedback bool          // filter critic feedback through a relevance judgment
	OnOutput     func(string)  // nil-safe output callback
	Inbox        *Mailbox      // critic feedback arrives here
	Outbox       *Mailbox      // cycle output is posted here
	Chat         Chatter
	Sessions     *SessionStore // nil = no persistence
	Bus          *events.Bus   // nil = no events
}

// AutonomousAgent runs perpetual work cycles in a background goroutine:
// build context from recent history, fold in critic feedback, ask the
// completion service for the next cycle's output, record and forward it.
type AutonomousAgent struct {
	cycleDelay   time.Duration
	historyLimit int
	gateFeedback bool
	onOutput     func(string)
	inbox        *Mailbox
	outbox       *Mailbox
	chat         Chatter
	sessions     *SessionStore
	bus          *events.Bus

	mu         sync.Mutex
	state      State
	prompt     string
	history    []string
	cycleCount int

	stop   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
}

// NewAutonomousAgent creates a primary agent. Instructions resolve in order:
// explicit config, persisted document, built-in default.
func NewAutonomousAgent(cfg Config) *AutonomousAgent {
	prompt := cfg.Prompt
	if prompt == "" && cfg.Sessions != nil {
		if saved, ok := cfg.Sessions.LoadInstructions(); ok {
			prompt = saved
		}
	}
	if prompt == "" {
		prompt = DefaultAutonomousPrompt
	}

	delay := cfg.CycleDelay
	if delay <= 0 {
		delay = DefaultCycleDelay
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	onOutput := cfg.OnOutput
	if onOutput == nil {
		onOutput = func(string) {}
	}

	return &AutonomousAgent{
		cycleDelay:   delay,
		historyLimit: limit,
		gateFeedback: cfg.GateFeedback,
		onOutput:     onOutput,
		inbox:        cfg.Inbox,
		outbox:       cfg.Outbox,
		chat:         cfg.Chat,
		sessions:     cfg.Sessions,
		bus:          cfg.Bus,
		state:        StateStopped,
		prompt:       prompt,
	}
}

// Start launches the agent loop. Starting a running agent is a no-op.
func (a *AutonomousAgent) Start() {
	a.mu.Lock()
	if a.state != StateStopped {
		a.mu.Unlock()
		return
	}
	a.state = StateRunning
	a.cycleCount = 0
	a.stop = make(chan struct{})
	a.done = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	resumedCycles, resumed, restoreMsg := a.restoreSessionLocked()
	a.mu.Unlock()

	// Emitted after unlock so the callback may call back into the agent.
	if restoreMsg != "" {
		a.onOutput(restoreMsg)
	}

	publish(a.bus, events.SourceAgent, events.AgentStartedPayload{
		Agent:         "primary",
		ResumedCycles: resumedCycles,
		Resumed:       resumed,
	})

	go a.run(ctx)
}

// restoreSessionLocked applies the resume-or-reset policy: the persisted
// history is adopted only when the persisted instructions match the current
// ones exactly. Caller must hold a.mu and emit the returned message.
func (a *AutonomousAgent) restoreSessionLocked() (resumedCycles int, resumed bool, msg string) {
	a.history = nil
	if a.sessions == nil {
		return 0, false, ""
	}

	session, found := a.sessions.LoadSession()
	if !found {
		return 0, false, ""
	}

	if session.Prompt == a.prompt && len(session.History) > 0 {
		a.history = session.History
		return session.CycleCount, true, fmt.Sprintf("[agent] resuming with context from last session (%d cycles, %d history entries)",
			session.CycleCount, len(session.History))
	}

	if session.Prompt != a.prompt {
		return 0, false, "[agent] instructions changed since last session, starting fresh"
	}
	return 0, false, ""
}

// Stop signals the loop, waits for it to exit, and persists the session
// snapshot. Stopping a stopped agent is a no-op.
func (a *AutonomousAgent) Stop() {
	a.mu.Lock()
	if a.state == StateStopped {
		a.mu.Unlock()
		return
	}
	a.state = StateStopped
	stop, done, cancel := a.stop, a.done, a.cancel
	a.mu.Unlock()

	close(stop)
	cancel()
	<-done

	a.mu.Lock()
	prompt, history, cycles := a.prompt, a.history, a.cycleCount
	a.mu.Unlock()

	if a.sessions != nil {
		a.sessions.SaveSession(prompt, history, cycles)
	}

	publish(a.bus, events.SourceAgent, events.AgentStoppedPayload{Agent: "primary", CycleCount: cycles})
	slog.Info("agents: primary stopped", "cycles", cycles)
}

// Pause idles the loop without advancing cycles.
func (a *AutonomousAgent) Pause() {
	a.mu.Lock()
	changed := a.state == StateRunning
	if changed {
		a.state = StatePaused
	}
	a.mu.Unlock()

	if changed {
		publish(a.bus, events.SourceAgent, events.AgentPausedPayload{Agent: "primary"})
	}
}

// Resume continues a paused loop.
func (a *AutonomousAgent) Resume() {
	a.mu.Lock()
	changed := a.state == StatePaused
	if changed {
		a.state = StateRunning
	}
	a.mu.Unlock()

	if changed {
		publish(a.bus, events.SourceAgent, events.AgentResumedPayload{Agent: "primary"})
	}
}

// UpdateInstructions replaces the instruction prompt, effective next cycle,
// and persists it immediately.
func (a *AutonomousAgent) UpdateInstructions(prompt string) {
	a.mu.Lock()
	a.prompt = prompt
	a.mu.Unlock()

	if a.sessions != nil {
		a.sessions.SaveInstructions(prompt)
	}
}

// Instructions returns the current instruction prompt.
func (a *AutonomousAgent) Instructions() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.prompt
}

// State returns the current lifecycle state.
func (a *AutonomousAgent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// CycleCount returns the number of cycles completed this run.
func (a *AutonomousAgent) CycleCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cycleCount
}

func (a *AutonomousAgent) run(ctx context.Context) {
	defer close(a.done)

	a.onOutput("[agent] autonomous agent started")
	slog.Info("agents: primary started", "cycle_delay", a.cycleDelay)

	for {
		select {
		case <-a.stop:
			a.onOutput("[agent] autonomous agent stopped")
			return
		default:
		}

		if a.State() == StatePaused {
			if !sleepUnlessStopped(a.stop, time.Second) {
				a.onOutput("[agent] autonomous agent stopped")
				return
			}
			continue
		}

		a.cycle(ctx)

		if !sleepUnlessStopped(a.stop, a.cycleDelay) {
			a.onOutput("[agent] autonomous agent stopped")
			return
		}
	}
}

// cycle performs one full working cycle.
func (a *AutonomousAgent) cycle(ctx context.Context) {
	a.mu.Lock()
	a.cycleCount++
	cycle := a.cycleCount
	prompt := a.prompt
	recent := lastN(a.history, 3)
	a.mu.Unlock()

	a.onOutput(fmt.Sprintf("--- Cycle #%d [%s] ---", cycle, time.Now().Format("15:04:05")))
	publish(a.bus, events.SourceAgent, events.AgentCyclePayload{Agent: "primary", Cycle: cycle})

	var b strings.Builder
	if len(recent) > 0 {
		b.WriteString("Your recent outputs:\n")
		for _, h := range recent {
			fmt.Fprintf(&b, "- %s...\n", truncate(h, 150))
		}
		b.WriteString("\n")
	}

	if a.inbox != nil {
		if feedback := a.inbox.Drain(); len(feedback) > 0 {
			if a.acceptFeedback(ctx, feedback) {
				b.WriteString("CRITIC FEEDBACK (address this):\n")
				for _, m := range feedback {
					fmt.Fprintf(&b, ">> %s\n", m)
				}
				b.WriteString("\n")
				a.onOutput("[agent] received critic feedback, incorporating")
			} else {
				a.onOutput("[agent] critic feedback judged not worth incorporating, set aside")
			}
		}
	}

	b.WriteString("Execute your next autonomous cycle.")

	response := a.chat.Chat(ctx, b.String(), completion.WithSystemPrompt(prompt))
	if completion.IsFailure(response) {
		publish(a.bus, events.SourceAgent, events.AgentErrorPayload{
			Agent: "primary", Cycle: cycle, Error: response,
		})
	}

	a.mu.Lock()
	a.history = append(a.history, response)
	if len(a.history) > a.historyLimit {
		a.history = a.history[len(a.history)-a.historyLimit:]
	}
	a.mu.Unlock()

	a.onOutput(response)
	publish(a.bus, events.SourceAgent, events.AgentOutputPayload{
		Agent: "primary", Cycle: cycle, Content: response,
	})

	if a.outbox != nil {
		a.outbox.Send(response)
	}
}

// acceptFeedback decides whether drained critic feedback enters the prompt.
// With the gate disabled feedback is always incorporated; with it enabled a
// yes/no judgment call filters it.
func (a *AutonomousAgent) acceptFeedback(ctx context.Context, feedback []string) bool {
	if !a.gateFeedback {
		return true
	}
	question := fmt.Sprintf(feedbackGatePrompt, strings.Join(feedback, "\n"))
	reply := a.chat.Chat(ctx, question)
	return isAffirmative(reply)
}

// isAffirmative reports whether a judgment reply starts with yes.
func isAffirmative(reply string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(reply)), "yes")
}

// sleepUnlessStopped waits for d, checking the stop signal every second.
// Returns false when stopped.
func sleepUnlessStopped(stop <-chan struct{}, d time.Duration) bool {
	remaining := d
	for remaining > 0 {
		step := time.Second
		if remaining < step {
			step = remaining
		}
		select {
		case <-stop:
			return false
		case <-time.After(step):
		}
		remaining -= step
	}
	return true
}

func lastN(items []string, n int) []string {
	if len(items) <= n {
		out := make([]string, len(items))
		copy(out, items)
		return out
	}
	out := make([]string, n)
	copy(out, items[len(items)-n:])
	return out
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

func publish(bus *events.Bus, source events.EventSource, payload events.EventPayload) {
	if bus == nil {
		return
	}
	bus.Publish(events.NewTypedEvent(source, payload))
}
