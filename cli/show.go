package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/ankit-chaubey/media-metadata-embed/core"
	"github.com/ankit-chaubey/media-metadata-embed/core/engine"
	"github.com/ankit-chaubey/media-metadata-embed/core/jpg"
	"github.com/ankit-chaubey/media-metadata-embed/core/logger"
)

func showCmd() *cli.Command {
	var (
		asJSON   bool
		withEXIF bool
		mimeType string
	)
	return &cli.Command{
		Name:      "show",
		Usage:     "Print the metadata record embedded in a file",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print JSON", Destination: &asJSON},
			&cli.BoolFlag{Name: "exif", Usage: "also list decoded EXIF tags (JPEG only)", Destination: &withEXIF},
			&cli.StringFlag{Name: "mime", Usage: "MIME type (default: detect from content)", Destination: &mimeType},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("usage: metaembed show <file>")
			}
			file := cmd.Args().First()
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			if mimeType == "" {
				mimeType = engine.Detect(data, file)
			}
			rec, err := engine.Extract(data, mimeType)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			logger.FromContext(ctx).Debug("extracted", "file", file, "mime", mimeType, "bytes", len(data))

			p := core.NewPrinter(cmd.Root().Writer, asJSON)
			if err := p.PrintRecord(file, mimeType, rec); err != nil {
				return err
			}
			if !withEXIF || core.FormatForMIME(mimeType) != core.FmtJPEG {
				return nil
			}
			fields, err := jpg.Describe(data)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			keys := make([]string, 0, len(fields))
			for k := range fields {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			return p.PrintFields("EXIF", fields, keys)
		},
	}
}
