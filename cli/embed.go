package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/ankit-chaubey/media-metadata-embed/core"
	"github.com/ankit-chaubey/media-metadata-embed/core/engine"
	"github.com/ankit-chaubey/media-metadata-embed/core/logger"
)

func embedCmd() *cli.Command {
	var (
		input, output, metaPath, mimeType string
		title, description                string
		keywords                          []string
	)
	return &cli.Command{
		Name:      "embed",
		Usage:     "Write a metadata record into a file",
		ArgsUsage: "[-i in] [-o out]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "file to read", Required: true, Destination: &input},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "file to write (default: overwrite input)", Destination: &output},
			&cli.StringFlag{Name: "meta", Usage: `JSON file with {"title", "description", "keywords"}`, Destination: &metaPath},
			&cli.StringFlag{Name: "title", Usage: "title", Destination: &title},
			&cli.StringFlag{Name: "description", Usage: "description", Destination: &description},
			&cli.StringSliceFlag{Name: "keyword", Aliases: []string{"k"}, Usage: "keyword, repeatable or comma-separated", Destination: &keywords},
			&cli.StringFlag{Name: "mime", Usage: "MIME type (default: detect from content)", Destination: &mimeType},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			start := time.Now()

			var rec core.Record
			if metaPath != "" {
				r, err := readRecord(metaPath)
				if err != nil {
					return fmt.Errorf("read %s: %w", metaPath, err)
				}
				rec = r
			}
			if cmd.IsSet("title") {
				rec.Title = title
			}
			if cmd.IsSet("description") {
				rec.Description = description
			}
			if cmd.IsSet("keyword") {
				rec.Keywords = core.SplitKeywords(keywords)
			}

			p := core.NewPrinter(cmd.Root().Writer, false)
			if problems := cfg.Policy.Check(rec); len(problems) > 0 {
				if cfg.Policy.Enforce {
					return fmt.Errorf("record rejected by policy: %s", strings.Join(problems, "; "))
				}
				for _, msg := range problems {
					p.PrintWarning(msg)
				}
			}

			st, err := os.Stat(input)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(input)
			if err != nil {
				return err
			}
			if mimeType == "" {
				mimeType = engine.Detect(data, input)
			}
			out, err := engine.Embed(data, mimeType, rec)
			if err != nil {
				return fmt.Errorf("%s: %w", input, err)
			}
			dst := core.ResolveOutPath(input, output)
			if err := os.WriteFile(dst, out, st.Mode().Perm()); err != nil {
				return err
			}
			log.Info("embedded",
				"file", dst,
				"mime", mimeType,
				"in_bytes", len(data),
				"out_bytes", len(out),
				"duration", time.Since(start),
			)
			p.PrintSuccess(fmt.Sprintf("%s (%s, %d keywords)", dst, mimeType, len(rec.CleanKeywords())))
			return nil
		},
	}
}

// readRecord loads a record in the JSON shape the captioning step emits.
func readRecord(path string) (core.Record, error) {
	var rec core.Record
	b, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(b, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}
