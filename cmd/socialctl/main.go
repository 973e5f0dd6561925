package main

import (
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/anonto42/nano-social/backend/pkg/client/api"
	"github.com/anonto42/nano-social/backend/pkg/logger"
)

func main() {
	cliApp := &cli.App{
		Name:  "socialctl",
		Usage: "command line client for the nano-social API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Usage:   "API base url",
				EnvVars: []string{"SOCIALCTL_SERVER"},
			},
			&cli.StringFlag{
				Name:    "session",
				Usage:   "session file written by login",
				Value:   defaultSessionPath(),
				EnvVars: []string{"SOCIALCTL_SESSION"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "per request timeout",
				Value: api.DefaultTimeout,
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "log client activity to stdout",
			},
		},
		Commands: []*cli.Command{
			loginCommand,
			feedCommand,
			likeCommand,
			followCommand,
			storiesCommand,
			viewStoryCommand,
			notificationsCommand,
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		logger.L.Fatal("socialctl failed", zap.Error(err))
	}
}
