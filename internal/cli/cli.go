// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/kr/text"
	"github.com/mitchellh/cli"

	"github.com/kanti-proxy/kanti/internal/common"
)

// CommonCLI holds the flags and plumbing shared by every subcommand: a
// flag.FlagSet, the mitchellh/cli UI, and the ambient logging flags.
type CommonCLI struct {
	UI       cli.Ui
	output   io.Writer
	ctx      context.Context
	help     string
	synopsis string

	flagLogLevel string
	flagLogJSON  bool

	Flags *flag.FlagSet
}

func NewCommonCLI(ctx context.Context, help, synopsis string, ui cli.Ui, logOutput io.Writer, name string) *CommonCLI {
	c := NewCommonCLIWithoutHelp(ctx, synopsis, ui, logOutput, name)
	c.Finalize(help)
	return c
}

// NewCommonCLIWithoutHelp builds a CommonCLI without rendering its help
// text, for subcommands that need to register their own flags before the
// combined usage text is generated. Callers must call Finalize once all
// flags are registered.
func NewCommonCLIWithoutHelp(ctx context.Context, synopsis string, ui cli.Ui, logOutput io.Writer, name string) *CommonCLI {
	c := &CommonCLI{UI: ui, synopsis: synopsis, output: logOutput, ctx: ctx, Flags: flag.NewFlagSet(name, flag.ContinueOnError)}
	c.init()
	return c
}

// Finalize renders the combined help text once every flag has been
// registered on c.Flags.
func (c *CommonCLI) Finalize(help string) {
	c.help = FlagUsage(help, c.Flags)
}

func (c *CommonCLI) init() {
	c.Flags.StringVar(&c.flagLogLevel, "log-level", "info",
		`Log verbosity level. Supported values (in order of detail) are "trace", "debug", "info", "warn", and "error".`)
	c.Flags.BoolVar(&c.flagLogJSON, "log-json", false,
		"Enable or disable JSON output format for logging.")

	c.Flags.SetOutput(c.output)
}

func (c *CommonCLI) Context() context.Context { return c.ctx }
func (c *CommonCLI) LogLevel() string         { return c.flagLogLevel }
func (c *CommonCLI) Output() io.Writer         { return c.output }

func (c *CommonCLI) Logger(name string) hclog.Logger {
	return common.CreateLogger(c.output, c.flagLogLevel, c.flagLogJSON, name)
}

func (c *CommonCLI) Parse(args []string) error {
	return c.Flags.Parse(args)
}

func (c *CommonCLI) Error(message string, err error) int {
	c.UI.Error("There was an error " + message + ":\n\t" + err.Error())
	return 1
}

func (c *CommonCLI) Success(message string) int {
	c.UI.Output(message)
	return 0
}

func (c *CommonCLI) Synopsis() string { return c.synopsis }
func (c *CommonCLI) Help() string     { return c.help }

func LogAndDie(logger hclog.Logger, message string, err error) int {
	logger.Error("error "+message, "error", err)
	return 1
}

func LogSuccess(logger hclog.Logger, message string) int {
	logger.Info(message)
	return 0
}

func FlagUsage(usage string, flags *flag.FlagSet) string {
	out := new(bytes.Buffer)
	out.WriteString(strings.TrimSpace(usage))
	out.WriteString("\n\n")

	printTitle(out, "Command Options")
	flags.VisitAll(func(f *flag.Flag) {
		printFlag(out, f)
	})

	return strings.TrimRight(out.String(), "\n")
}

func printTitle(w io.Writer, s string) {
	fmt.Fprintf(w, "%s\n\n", s)
}

func printFlag(w io.Writer, f *flag.Flag) {
	example, _ := flag.UnquoteUsage(f)
	if example != "" {
		fmt.Fprintf(w, "  -%s=<%s>\n", f.Name, example)
	} else {
		fmt.Fprintf(w, "  -%s\n", f.Name)
	}

	indented := wrapAtLength(f.Usage, 5)
	fmt.Fprintf(w, "%s\n\n", indented)
}

const maxLineLength int = 72

func wrapAtLength(s string, pad int) string {
	wrapped := text.Wrap(s, maxLineLength-pad)
	lines := strings.Split(wrapped, "\n")
	for i, line := range lines {
		lines[i] = strings.Repeat(" ", pad) + line
	}
	return strings.Join(lines, "\n")
}
