package commands

import (
	"github.com/urfave/cli/v3"

	"github.com/mbellotti/drover/internal/config"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "drover",
		Usage: "Autonomous background execution for AI agents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			NewWakeCommand(),
			NewRunCommand(),
			NewTasksCommand(),
			NewAgentCommand(),
			NewStatusCommand(),
			NewSecretCommand(),
		},
	}
}
