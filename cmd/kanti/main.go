package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mitchellh/cli"

	"github.com/kanti-proxy/kanti/internal/common"
	"github.com/kanti-proxy/kanti/version"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ui := &cli.BasicUi{
		Reader:      os.Stdin,
		Writer:      os.Stdout,
		ErrorWriter: os.Stderr,
	}

	args = withDefaultCommand(args, "run")

	// Proxy, control-plane, and event-bus goroutines all log concurrently,
	// so the shared stderr writer needs the same synchronization the
	// teacher applies around its own combined command output.
	logOutput := common.SynchronizeWriter(os.Stderr)

	c := &cli.CLI{
		Name:     "kanti",
		Args:     args,
		Commands: Commands(ctx, ui, logOutput),
		Version:  version.GetHumanVersion(),
	}

	exitStatus, err := c.Run()
	if err != nil {
		ui.Error(err.Error())
		return 1
	}
	return exitStatus
}

// withDefaultCommand inserts "run" as the subcommand when args starts with
// a bare flag (or is empty), so `kanti -proxy-port 9000` behaves like
// `kanti run -proxy-port 9000`.
func withDefaultCommand(args []string, def string) []string {
	if len(args) == 0 {
		return []string{def}
	}
	if strings.HasPrefix(args[0], "-") {
		return append([]string{def}, args...)
	}
	return args
}
