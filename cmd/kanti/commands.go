package main

import (
	"context"
	"io"

	"github.com/mitchellh/cli"

	"github.com/kanti-proxy/kanti/internal/commands"
)

// Commands builds the mitchellh/cli command table, named after the
// subcommand the user types on the command line.
func Commands(ctx context.Context, ui cli.Ui, logOutput io.Writer) map[string]cli.CommandFactory {
	return map[string]cli.CommandFactory{
		"run": func() (cli.Command, error) {
			return commands.NewRunCommand(ctx, ui, logOutput), nil
		},
		"version": func() (cli.Command, error) {
			return commands.NewVersionCommand(ctx, ui, logOutput), nil
		},
	}
}
