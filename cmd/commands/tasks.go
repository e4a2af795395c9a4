package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/mbellotti/drover/internal/config"
	"github.com/mbellotti/drover/internal/storage/docstore"
	"github.com/mbellotti/drover/internal/taskfuncs"
)

// NewTasksCommand returns the task definition management subcommand.
func NewTasksCommand() *cli.Command {
	return &cli.Command{
		Name:  "tasks",
		Usage: "Manage the durable task schedule",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List all task definitions",
				Action: runTasksList,
			},
			{
				Name:      "add",
				Usage:     "Add a prompt-driven task",
				ArgsUsage: "<name> <prompt>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "interval",
						Usage: "Seconds between runs (0 = one-shot)",
					},
					&cli.BoolFlag{
						Name:  "use-history",
						Usage: "Feed previous run results into each execution",
					},
					&cli.IntFlag{
						Name:  "max-history",
						Usage: "Run records kept in memory (0 = default)",
					},
				},
				Action: runTasksAdd,
			},
			{
				Name:      "remove",
				Usage:     "Remove a task (built-ins are disabled instead)",
				ArgsUsage: "<name>",
				Action:    runTasksRemove,
			},
			{
				Name:      "set-interval",
				Usage:     "Change how often a task runs",
				ArgsUsage: "<name> <seconds>",
				Action:    runTasksSetInterval,
			},
		},
	}
}

func openDefinitions() *taskfuncs.Definitions {
	return taskfuncs.NewDefinitions(docstore.New(config.DataPath()))
}

func runTasksList(_ context.Context, _ *cli.Command) error {
	defs := openDefinitions().List()
	if len(defs) == 0 {
		fmt.Println("No tasks defined. Run: drover wake")
		return nil
	}

	for _, d := range defs {
		state := "enabled"
		if !d.Enabled {
			state = "disabled"
		}
		kind := "prompt"
		if d.IsBuiltin() {
			kind = "builtin"
		}
		fmt.Printf("  %-20s %-8s %-9s every %ds", d.Name, kind, state, d.IntervalSeconds)
		if d.UseHistory {
			fmt.Print("  [history]")
		}
		fmt.Println()
	}
	return nil
}

func runTasksAdd(_ context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) < 2 {
		return fmt.Errorf("usage: drover tasks add <name> <prompt>")
	}

	def := taskfuncs.Definition{
		Name:            args[0],
		Prompt:          strings.Join(args[1:], " "),
		IntervalSeconds: cmd.Int("interval"),
		UseHistory:      cmd.Bool("use-history"),
		MaxHistory:      cmd.Int("max-history"),
	}
	if err := openDefinitions().Add(def); err != nil {
		return fmt.Errorf("add task: %w", err)
	}

	fmt.Printf("Added task %q. It will be picked up on the next `drover run`.\n", def.Name)
	return nil
}

func runTasksRemove(_ context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("usage: drover tasks remove <name>")
	}
	if err := openDefinitions().Remove(name); err != nil {
		return fmt.Errorf("remove task: %w", err)
	}
	fmt.Printf("Removed task %q.\n", name)
	return nil
}

func runTasksSetInterval(_ context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) != 2 {
		return fmt.Errorf("usage: drover tasks set-interval <name> <seconds>")
	}

	seconds, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("parse interval %q: %w", args[1], err)
	}
	if err := openDefinitions().UpdateInterval(args[0], seconds); err != nil {
		return fmt.Errorf("set interval: %w", err)
	}
	fmt.Printf("Task %q now runs every %ds.\n", args[0], seconds)
	return nil
}
