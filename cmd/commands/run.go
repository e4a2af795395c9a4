package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/mbellotti/drover/internal/agents"
	"github.com/mbellotti/drover/internal/completion"
	"github.com/mbellotti/drover/internal/config"
	"github.com/mbellotti/drover/internal/events"
	"github.com/mbellotti/drover/internal/heartbeat"
	"github.com/mbellotti/drover/internal/storage"
	"github.com/mbellotti/drover/internal/storage/docstore"
	"github.com/mbellotti/drover/internal/taskfuncs"
	"github.com/mbellotti/drover/internal/tasks"
)

// NewRunCommand returns the long-running host subcommand.
func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Start the Drover host: task scheduler plus the agent pair",
		Action: runHost,
	}
}

func runHost(ctx context.Context, cmd *cli.Command) error {
	// Setup debug logging
	if cmd.Bool("debug") {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	// Load config
	configPath := cmd.String("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Warn("config not found, using defaults", "path", configPath, "error", err)
		cfg = &config.Config{}
		config.ApplyDefaults(cfg)
	}

	// Event bus plus durable JSONL event log
	bus := events.NewBus(cfg.Events.BufferSize)
	defer bus.Close()

	eventLog := storage.NewEventLogger(config.LogsPath(), bus)
	defer eventLog.Close()

	// Durable document store backing history, definitions, and sessions
	store := docstore.New(config.DataPath())

	// Completion service
	registry := completion.NewRegistry(cfg.Models)
	client := completion.NewClient(completion.ClientConfig{
		Registry:      registry,
		SearchResults: cfg.Tasks.SearchResults,
	})
	slog.Info("completion providers configured", "count", len(registry.Names()), "default", registry.DefaultName())

	// Task manager
	funcs := taskfuncs.NewRegistry(client)
	manager := tasks.NewManager(tasks.ManagerConfig{
		Bus:        bus,
		Outputs:    tasks.NewOutputStore(config.TaskDataPath(), cfg.Tasks.MaxOutputs),
		History:    tasks.NewHistoryIndex(store),
		Resolver:   funcs,
		MaxWorkers: cfg.Tasks.MaxWorkers,
		MaxHistory: cfg.Tasks.MaxHistory,
	})
	manager.Start()

	// Register the configured schedule
	defs := taskfuncs.NewDefinitions(store)
	for _, def := range defs.Enabled() {
		if err := manager.Add(def.Task()); err != nil {
			slog.Warn("failed to register task", "name", def.Name, "error", err)
			continue
		}
		slog.Info("task registered", "name", def.Name, "interval", def.IntervalSeconds)
	}

	// Agent pair, mailboxes cross-wired: primary output feeds the critic,
	// critic reviews feed back to the primary.
	toCritic := agents.NewMailbox()
	toPrimary := agents.NewMailbox()

	primary := agents.NewAutonomousAgent(agents.Config{
		Prompt:       cfg.Agents.Primary.Instructions,
		CycleDelay:   cfg.Agents.Primary.CycleDelay.Duration(),
		HistoryLimit: cfg.Agents.Primary.HistoryLimit,
		GateFeedback: cfg.Agents.Primary.FeedbackGate,
		OnOutput:     func(s string) { fmt.Println(s) },
		Inbox:        toPrimary,
		Outbox:       toCritic,
		Chat:         chatterFor(client, cfg.Agents.Primary.Model),
		Sessions:     agents.NewSessionStore(store),
		Bus:          bus,
	})

	critic := agents.NewCriticAgent(agents.CriticConfig{
		Prompt:       cfg.Agents.Critic.Instructions,
		CycleDelay:   cfg.Agents.Critic.CycleDelay.Duration(),
		HistoryLimit: cfg.Agents.Critic.HistoryLimit,
		OnOutput:     func(s string) { fmt.Println(s) },
		Inbox:        toCritic,
		Outbox:       toPrimary,
		Chat:         chatterFor(client, cfg.Agents.Critic.Model),
		Bus:          bus,
	})

	primary.Start()
	critic.Start()

	// Liveness file for `drover status`
	hb := heartbeat.NewWriter(config.HeartbeatPath(), cfg.Heartbeat.Interval.Duration())
	hb.Start()

	slog.Info("drover running", "home", config.DroverPath())
	<-ctx.Done()

	slog.Info("shutting down...")
	critic.Stop()
	primary.Stop() // persists the session snapshot
	manager.Stop()
	hb.Stop()
	return nil
}

// modelChatter routes an agent's completions through a named provider.
type modelChatter struct {
	client *completion.Client
	model  string
}

func (m modelChatter) Chat(ctx context.Context, message string, opts ...completion.ChatOption) string {
	opts = append([]completion.ChatOption{completion.WithModel(m.model)}, opts...)
	return m.client.Chat(ctx, message, opts...)
}

func chatterFor(client *completion.Client, model string) agents.Chatter {
	if model == "" {
		return client
	}
	return modelChatter{client: client, model: model}
}
