package commands

import (
	"context"
	"io"
	"sync"

	"github.com/mitchellh/cli"

	climod "github.com/kanti-proxy/kanti/internal/cli"
	"github.com/kanti-proxy/kanti/version"
)

const versionHelp = `
Usage: kanti version

  Prints kanti's version.
`

// VersionCommand prints the build's semantic version.
type VersionCommand struct {
	*climod.CommonCLI
	once sync.Once
}

func NewVersionCommand(ctx context.Context, ui cli.Ui, logOutput io.Writer) *VersionCommand {
	c := &VersionCommand{}
	c.once.Do(func() {
		c.CommonCLI = climod.NewCommonCLI(ctx, versionHelp, "Prints kanti's version", ui, logOutput, "version")
	})
	return c
}

func (c *VersionCommand) Run(args []string) int {
	if err := c.Parse(args); err != nil {
		return 1
	}
	return c.Success(version.GetHumanVersion())
}
