package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/mbellotti/drover/internal/secrets"
)

// NewSecretCommand returns the secret management subcommand.
func NewSecretCommand() *cli.Command {
	return &cli.Command{
		Name:  "secret",
		Usage: "Encrypt credentials for use in config.jsonc",
		Commands: []*cli.Command{
			{
				Name:      "encrypt",
				Usage:     "Encrypt a value into an ENC[age:...] blob",
				ArgsUsage: "<value>",
				Action:    runSecretEncrypt,
			},
		},
	}
}

func runSecretEncrypt(_ context.Context, cmd *cli.Command) error {
	value := cmd.Args().First()
	if value == "" {
		return fmt.Errorf("usage: drover secret encrypt <value>")
	}

	keyPath := secrets.KeyPath()
	if err := secrets.GenerateIdentity(keyPath); err != nil {
		return fmt.Errorf("ensure age key: %w", err)
	}
	identity, err := secrets.LoadIdentity(keyPath)
	if err != nil {
		return fmt.Errorf("load age key: %w", err)
	}

	blob, err := secrets.Encrypt(value, identity.Recipient())
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}

	fmt.Println(blob)
	return nil
}
