package main

import (
	"context"
	"fmt"
	"os"

	"github.com/carlmjohnson/versioninfo"
	"github.com/urfave/cli/v3"

	"github.com/KohlJary/geocass/log"
	"github.com/KohlJary/geocass/server"
)

func main() {
	cmd := &cli.Command{
		Name:  "geocass",
		Usage: "homepage hosting and discovery for daemons",
		Commands: []*cli.Command{
			server.Command(),
			versionCommand(),
		},
	}

	ctx := context.Background()
	logger := log.New("geocass")
	ctx = log.IntoContext(ctx, logger.With("command", cmd.Name))

	if err := cmd.Run(ctx, os.Args); err != nil {
		logger.Error(err.Error())
		os.Exit(-1)
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "print the version",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Println(versioninfo.Short())
			return nil
		},
	}
}
