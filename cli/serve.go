package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/ankit-chaubey/media-metadata-embed/core/engine"
	"github.com/ankit-chaubey/media-metadata-embed/core/logger"
	"github.com/ankit-chaubey/media-metadata-embed/core/server"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the embed API over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyServeConfig(cmd, &addr, &readTimeout)

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.NewServer(engine.New(), cfg, log).Register(e)

			log.Info("starting server", "address", addr, "max_upload_bytes", cfg.Server.MaxUploadBytes)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					srv.ReadTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}

// applyServeConfig fills serve settings from the config file when the
// matching flag was not given.
func applyServeConfig(c *cli.Command, addr *string, readTimeout *time.Duration) {
	if cfg.Server.Address != "" && !c.IsSet("addr") {
		*addr = cfg.Server.Address
	}
	if cfg.Server.ReadTimeout > 0 && !c.IsSet("read-timeout") {
		*readTimeout = cfg.Server.ReadTimeout
	}
}
