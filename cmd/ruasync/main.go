// Package main is the entry point for ruasync, a dedicated CLI for mirroring
// OCI/Docker repositories between registries and local directory trees.
package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/ruasync/ocisync/pkg/cmdhelper"
	"github.com/ruasync/ocisync/pkg/commands"
	"github.com/ruasync/ocisync/pkg/commands/sync"
)

func main() {
	app := cli.Command{
		Name:                  "ruasync",
		Usage:                 "ruasync mirrors OCI/Docker repositories between registries and directories",
		Suggest:               true,
		EnableShellCompletion: true,
		HideVersion:           true,
		HideHelpCommand:       true,
		Commands: []*cli.Command{
			commands.NewVersionCommand().ToCLI(),
			sync.New().ToCLI(),
		},
		ExitErrHandler: func(ctx context.Context, c *cli.Command, err error) {
			cli.HandleExitCoder(err)
			cmdhelper.Fprintf(c.ErrWriter, "Error: %+v\n", err)
			os.Exit(1)
		},
	}
	//nolint:errcheck // already checked in root command ExitErrHandler
	_ = app.Run(context.Background(), os.Args)
}
