package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/mbellotti/drover/internal/agents"
	"github.com/mbellotti/drover/internal/config"
	"github.com/mbellotti/drover/internal/personas"
	"github.com/mbellotti/drover/internal/storage/docstore"
)

// NewAgentCommand returns the agent instruction management subcommand.
func NewAgentCommand() *cli.Command {
	return &cli.Command{
		Name:  "agent",
		Usage: "Manage the autonomous agent's instructions and personas",
		Commands: []*cli.Command{
			{
				Name:   "instructions",
				Usage:  "Show the persisted instructions",
				Action: runAgentInstructions,
			},
			{
				Name:      "set",
				Usage:     "Set the instructions (the next run starts a fresh session)",
				ArgsUsage: "<prompt>",
				Action:    runAgentSet,
			},
			{
				Name:  "persona",
				Usage: "Manage named instruction presets",
				Commands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List personas",
						Action: runPersonaList,
					},
					{
						Name:      "show",
						Usage:     "Show a persona's prompt",
						ArgsUsage: "<name>",
						Action:    runPersonaShow,
					},
					{
						Name:      "create",
						Usage:     "Create a persona",
						ArgsUsage: "<name> <prompt>",
						Action:    runPersonaCreate,
					},
					{
						Name:      "update",
						Usage:     "Update a persona's prompt",
						ArgsUsage: "<name> <prompt>",
						Action:    runPersonaUpdate,
					},
					{
						Name:      "delete",
						Usage:     "Delete a custom persona",
						ArgsUsage: "<name>",
						Action:    runPersonaDelete,
					},
					{
						Name:      "use",
						Usage:     "Make a persona the agent's instructions",
						ArgsUsage: "<name>",
						Action:    runPersonaUse,
					},
				},
			},
		},
	}
}

func openSessions() *agents.SessionStore {
	return agents.NewSessionStore(docstore.New(config.DataPath()))
}

func openPersonas() (*personas.Registry, error) {
	return personas.NewRegistry(config.PersonasPath())
}

func runAgentInstructions(_ context.Context, _ *cli.Command) error {
	prompt, ok := openSessions().LoadInstructions()
	if !ok {
		fmt.Println("No persisted instructions. The agent uses its built-in default.")
		return nil
	}
	fmt.Println(prompt)
	return nil
}

func runAgentSet(_ context.Context, cmd *cli.Command) error {
	prompt := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("usage: drover agent set <prompt>")
	}
	openSessions().SaveInstructions(prompt)
	fmt.Println("Instructions saved. The next run starts a fresh session.")
	return nil
}

func runPersonaList(_ context.Context, _ *cli.Command) error {
	reg, err := openPersonas()
	if err != nil {
		return err
	}
	for _, p := range reg.List() {
		kind := "custom"
		if p.Builtin {
			kind = "builtin"
		}
		fmt.Printf("  %-16s %s\n", p.Name, kind)
	}
	return nil
}

func runPersonaShow(_ context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("usage: drover agent persona show <name>")
	}
	reg, err := openPersonas()
	if err != nil {
		return err
	}
	p, err := reg.Get(name)
	if err != nil {
		return err
	}
	fmt.Println(p.Prompt)
	return nil
}

func runPersonaCreate(_ context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) < 2 {
		return fmt.Errorf("usage: drover agent persona create <name> <prompt>")
	}
	reg, err := openPersonas()
	if err != nil {
		return err
	}
	if err := reg.Create(args[0], strings.Join(args[1:], " ")); err != nil {
		return err
	}
	fmt.Printf("Created persona %q.\n", args[0])
	return nil
}

func runPersonaUpdate(_ context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) < 2 {
		return fmt.Errorf("usage: drover agent persona update <name> <prompt>")
	}
	reg, err := openPersonas()
	if err != nil {
		return err
	}
	if err := reg.Update(args[0], strings.Join(args[1:], " ")); err != nil {
		return err
	}
	fmt.Printf("Updated persona %q.\n", args[0])
	return nil
}

func runPersonaDelete(_ context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("usage: drover agent persona delete <name>")
	}
	reg, err := openPersonas()
	if err != nil {
		return err
	}
	if err := reg.Delete(name); err != nil {
		return err
	}
	fmt.Printf("Deleted persona %q.\n", name)
	return nil
}

func runPersonaUse(_ context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("usage: drover agent persona use <name>")
	}
	reg, err := openPersonas()
	if err != nil {
		return err
	}
	p, err := reg.Get(name)
	if err != nil {
		return err
	}
	openSessions().SaveInstructions(p.Prompt)
	fmt.Printf("Agent now runs as %q. The next run starts a fresh session.\n", name)
	return nil
}
