package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/ankit-chaubey/media-metadata-embed/core"
	"github.com/ankit-chaubey/media-metadata-embed/core/config"
	"github.com/ankit-chaubey/media-metadata-embed/core/logger"
)

var (
	configFile string
	logLevel   string
	logFormat  string

	// cfg is loaded in Before and read by every subcommand.
	cfg = config.Default()
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "metaembed",
		Usage:   "Write title, description and keywords into PNG, JPEG, MP4/MOV and MP3 files",
		Version: core.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "path to config.yaml",
				Value:       config.DefaultPath(),
				Destination: &configFile,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "debug, info, warn or error",
				Destination: &logLevel,
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "pretty, text or json",
				Destination: &logFormat,
			},
		},
		Before: setup,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			embedCmd(),
			showCmd(),
			formatsCmd(),
			serveCmd(),
			versionCmd(),
		},
	}
}

// setup loads the config file and installs the logger in the context.
// Flags win over config values.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	loaded, err := config.Load(configFile)
	if err != nil {
		return ctx, err
	}
	cfg = loaded
	if !cmd.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if !cmd.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
	log := logger.ForFormat(cmd.Root().ErrWriter, logFormat, logger.ParseLevel(logLevel))
	return logger.WithContext(ctx, log), nil
}

func main() {
	app := newApp()
	app.ErrWriter = os.Stderr
	if err := app.Run(context.Background(), os.Args); err != nil {
		core.PrintError(err.Error())
		os.Exit(1)
	}
}
