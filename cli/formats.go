package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/ankit-chaubey/media-metadata-embed/core"
	"github.com/ankit-chaubey/media-metadata-embed/core/engine"
)

func formatsCmd() *cli.Command {
	var asJSON bool
	return &cli.Command{
		Name:  "formats",
		Usage: "List supported formats and the structures written to each",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print JSON", Destination: &asJSON},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return core.NewPrinter(cmd.Root().Writer, asJSON).PrintFormats(engine.Formats())
		},
	}
}

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, err := cmd.Root().Writer.Write([]byte("metaembed " + core.Version + "\n"))
			return err
		},
	}
}
