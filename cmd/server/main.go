package main

import (
	"os"

	"github.com/anonto42/nano-social/backend/pkg/logger"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Usage:   "optional YAML file overlaid on the environment",
		EnvVars: []string{"CONFIG_FILE"},
	}

	cliApp := &cli.App{
		Name:  "nano-social",
		Usage: "social networking API server",
		Flags: []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "start the http server, the metrics server and the story sweeper",
				Action: func(ctx *cli.Context) error {
					app, err := newApp(ctx.Context, ctx.String("config"))
					if err != nil {
						return err
					}
					defer app.Close()
					return app.Serve(ctx.Context)
				},
			},
			{
				Name:  "purge-stories",
				Usage: "delete expired stories once and exit",
				Action: func(ctx *cli.Context) error {
					app, err := newApp(ctx.Context, ctx.String("config"))
					if err != nil {
						return err
					}
					defer app.Close()
					deleted, err := app.sweeper.SweepOnce(ctx.Context)
					if err != nil {
						return err
					}
					app.log.Info("purge finished", zap.Int64("deleted", deleted))
					return nil
				},
			},
			{
				Name:  "migrate",
				Usage: "apply the relational schema and mongo indexes, then exit",
				Action: func(ctx *cli.Context) error {
					app, err := newApp(ctx.Context, ctx.String("config"))
					if err != nil {
						return err
					}
					defer app.Close()
					app.log.Info("migrations applied")
					return nil
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		logger.L.Fatal("server exited", zap.Error(err))
	}
}
