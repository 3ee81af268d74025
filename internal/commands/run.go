// Package commands implements kanti's CLI subcommands, table-driven via
// mitchellh/cli.
package commands

import (
	"context"
	"io"
	"sync"

	"github.com/mitchellh/cli"

	"github.com/kanti-proxy/kanti/internal/app"
	climod "github.com/kanti-proxy/kanti/internal/cli"
	"github.com/kanti-proxy/kanti/internal/config"
)

const runHelp = `
Usage: kanti run [options]

  Starts the kanti intercepting proxy and its loopback control API.
`

// RunCommand is the default subcommand: it starts the proxy and control
// plane and blocks until the process receives a shutdown signal.
type RunCommand struct {
	*climod.CommonCLI

	once sync.Once

	flagDataDir   string
	flagIPCPort   int
	flagProxyPort int
}

func NewRunCommand(ctx context.Context, ui cli.Ui, logOutput io.Writer) *RunCommand {
	c := &RunCommand{}
	c.once.Do(func() { c.init(ctx, ui, logOutput) })
	return c
}

func (c *RunCommand) init(ctx context.Context, ui cli.Ui, logOutput io.Writer) {
	c.CommonCLI = climod.NewCommonCLIWithoutHelp(ctx, "Starts the kanti intercepting proxy", ui, logOutput, "run")

	c.Flags.StringVar(&c.flagDataDir, "data", "./data",
		"Directory kanti stores its CA certificate and key in.")
	c.Flags.IntVar(&c.flagIPCPort, "ipc-port", config.DefaultIPCPort,
		"Port the loopback control API listens on.")
	c.Flags.IntVar(&c.flagProxyPort, "proxy-port", config.DefaultProxyPort,
		"Port the intercepting proxy listens on.")

	c.Finalize(runHelp)
}

func (c *RunCommand) Run(args []string) int {
	if err := c.Parse(args); err != nil {
		return 1
	}

	logger := c.Logger("kanti")

	a, err := app.New(logger, c.flagDataDir, c.flagProxyPort, c.flagIPCPort)
	if err != nil {
		return climod.LogAndDie(logger, "initializing kanti", err)
	}

	logger.Info("starting kanti", "proxy_port", c.flagProxyPort, "ipc_port", c.flagIPCPort, "data_dir", c.flagDataDir)

	if err := a.Run(c.Context()); err != nil {
		return climod.LogAndDie(logger, "running kanti", err)
	}

	return climod.LogSuccess(logger, "kanti shut down cleanly")
}
