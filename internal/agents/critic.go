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

// DefaultCriticDelay is how often the critic polls for output to review.
const DefaultCriticDelay = 5 * time.Second

// reviewedMessageLimit caps how much of a reviewed message goes into the
// review prompt.
const reviewedMessageLimit = 1500

// CriticConfig holds dependencies and settings for a critic agent.
type CriticConfig struct {
	Prompt       string        // "" = default critic prompt
	CycleDelay   time.Duration // poll interval, 0 = 5s
	HistoryLimit int           // 0 = 20
	OnOutput     func(string)
	Inbox        *Mailbox // primary output arrives here
	Outbox       *Mailbox // reviews are posted here
	Chat         Chatter
	Bus          *events.Bus
}

// CriticAgent is the reactive half of the pair: it polls its inbox and
// reviews every message the primary posted, one judgment per message.
type CriticAgent struct {
	cycleDelay   time.Duration
	historyLimit int
	onOutput     func(string)
	inbox        *Mailbox
	outbox       *Mailbox
	chat         Chatter
	bus          *events.Bus

	mu         sync.Mutex
	state      State
	prompt     string
	reviews    []string
	cycleCount int

	stop   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
}

// NewCriticAgent creates a critic agent.
func NewCriticAgent(cfg CriticConfig) *CriticAgent {
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = DefaultCriticPrompt
	}
	delay := cfg.CycleDelay
	if delay <= 0 {
		delay = DefaultCriticDelay
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	onOutput := cfg.OnOutput
	if onOutput == nil {
		onOutput = func(string) {}
	}

	return &CriticAgent{
		cycleDelay:   delay,
		historyLimit: limit,
		onOutput:     onOutput,
		inbox:        cfg.Inbox,
		outbox:       cfg.Outbox,
		chat:         cfg.Chat,
		bus:          cfg.Bus,
		state:        StateStopped,
		prompt:       prompt,
	}
}

// Start launches the critic loop. Starting a running critic is a no-op.
func (c *CriticAgent) Start() {
	c.mu.Lock()
	if c.state != StateStopped {
		c.mu.Unlock()
		return
	}
	c.state = StateRunning
	c.cycleCount = 0
	c.reviews = nil
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	publish(c.bus, events.SourceCritic, events.AgentStartedPayload{Agent: "critic"})

	go c.run(ctx)
}

// Stop signals the loop and waits for it to exit.
func (c *CriticAgent) Stop() {
	c.mu.Lock()
	if c.state == StateStopped {
		c.mu.Unlock()
		return
	}
	c.state = StateStopped
	stop, done, cancel := c.stop, c.done, c.cancel
	c.mu.Unlock()

	close(stop)
	cancel()
	<-done

	cycles := c.CycleCount()
	publish(c.bus, events.SourceCritic, events.AgentStoppedPayload{Agent: "critic", CycleCount: cycles})
	slog.Info("agents: critic stopped", "reviews", cycles)
}

// Pause idles the loop; queued messages wait until Resume.
func (c *CriticAgent) Pause() {
	c.mu.Lock()
	changed := c.state == StateRunning
	if changed {
		c.state = StatePaused
	}
	c.mu.Unlock()

	if changed {
		publish(c.bus, events.SourceCritic, events.AgentPausedPayload{Agent: "critic"})
	}
}

// Resume continues a paused loop.
func (c *CriticAgent) Resume() {
	c.mu.Lock()
	changed := c.state == StatePaused
	if changed {
		c.state = StateRunning
	}
	c.mu.Unlock()

	if changed {
		publish(c.bus, events.SourceCritic, events.AgentResumedPayload{Agent: "critic"})
	}
}

// UpdateInstructions replaces the critic prompt, effective on the next review.
func (c *CriticAgent) UpdateInstructions(prompt string) {
	c.mu.Lock()
	c.prompt = prompt
	c.mu.Unlock()
}

// Instructions returns the current critic prompt.
func (c *CriticAgent) Instructions() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prompt
}

// State returns the current lifecycle state.
func (c *CriticAgent) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CycleCount returns the number of reviews produced this run.
func (c *CriticAgent) CycleCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycleCount
}

func (c *CriticAgent) run(ctx context.Context) {
	defer close(c.done)

	c.onOutput("[critic] critic agent started, waiting for agent output")
	slog.Info("agents: critic started", "poll_interval", c.cycleDelay)

	for {
		select {
		case <-c.stop:
			c.onOutput("[critic] critic agent stopped")
			return
		default:
		}

		if c.State() == StatePaused || c.inbox == nil {
			if !sleepUnlessStopped(c.stop, time.Second) {
				c.onOutput("[critic] critic agent stopped")
				return
			}
			continue
		}

		messages := c.inbox.Drain()
		for _, msg := range messages {
			select {
			case <-c.stop:
				c.onOutput("[critic] critic agent stopped")
				return
			default:
			}
			c.review(ctx, msg)
		}

		if !sleepUnlessStopped(c.stop, c.cycleDelay) {
			c.onOutput("[critic] critic agent stopped")
			return
		}
	}
}

// review produces one critique for one message from the primary agent.
func (c *CriticAgent) review(ctx context.Context, msg string) {
	c.mu.Lock()
	c.cycleCount++
	cycle := c.cycleCount
	prompt := c.prompt
	recent := lastN(c.reviews, 2)
	c.mu.Unlock()

	c.onOutput(fmt.Sprintf("--- Review #%d [%s] ---", cycle, time.Now().Format("15:04:05")))
	publish(c.bus, events.SourceCritic, events.AgentCyclePayload{Agent: "critic", Cycle: cycle})

	var b strings.Builder
	if len(recent) > 0 {
		b.WriteString("Your recent reviews:\n")
		for _, r := range recent {
			fmt.Fprintf(&b, "- %s...\n", truncate(r, 100))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Review this agent output and provide constructive feedback:\n\n--- AGENT OUTPUT ---\n%s\n--- END ---\n\nProvide your critique.",
		truncate(msg, reviewedMessageLimit))

	response := c.chat.Chat(ctx, b.String(), completion.WithSystemPrompt(prompt))
	if completion.IsFailure(response) {
		publish(c.bus, events.SourceCritic, events.AgentErrorPayload{
			Agent: "critic", Cycle: cycle, Error: response,
		})
	}

	c.mu.Lock()
	c.reviews = append(c.reviews, response)
	if len(c.reviews) > c.historyLimit {
		c.reviews = c.reviews[len(c.reviews)-c.historyLimit:]
	}
	c.mu.Unlock()

	c.onOutput(response)
	publish(c.bus, events.SourceCritic, events.AgentOutputPayload{
		Agent: "critic", Cycle: cycle, Content: response,
	})

	if c.outbox != nil {
		c.outbox.Send(response)
	}
}
