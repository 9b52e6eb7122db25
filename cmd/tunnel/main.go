// Command tunnel runs either side of a relaytun reverse tunnel, depending
// on whether the loaded configuration has a server or a client block.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/relaytun/relaytun/config"
	"github.com/relaytun/relaytun/logger"
	"github.com/relaytun/relaytun/metrics"
	"github.com/relaytun/relaytun/route"
	"github.com/relaytun/relaytun/tlsconfig"
	"github.com/relaytun/relaytun/tunnelclient"
	"github.com/relaytun/relaytun/tunnelserver"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

const nextProto = "relaytun/1"

func main() {
	app := &cli.App{
		Name:  "tunnel",
		Usage: "run a relaytun reverse tunnel server or client",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "path to the YAML configuration file",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "metrics",
				Usage: "address to serve /metrics on, empty to disable",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "tunnel:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	root, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level, file := root.LogConfig()
	log := logger.New(logger.Config{Level: level, File: file})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if metricsAddr := c.String("metrics"); metricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, metricsAddr); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	switch {
	case root.Server != nil:
		return runServer(ctx, root.Server, *log)
	case root.Client != nil:
		return runClient(ctx, root.Client, *log)
	default:
		return fmt.Errorf("config has neither server nor client configured")
	}
}

func runServer(ctx context.Context, cfg *config.Server, log zerolog.Logger) error {
	tlsCfg, err := tlsconfig.LoadServerConfig(cfg.Cert, cfg.PrivateKey, []string{nextProto})
	if err != nil {
		return fmt.Errorf("loading server TLS config: %w", err)
	}

	serverRoutes, err := cfg.ServerRoutes()
	if err != nil {
		return fmt.Errorf("parsing server routes: %w", err)
	}
	routeSet, err := route.NewServerSet(serverRoutes)
	if err != nil {
		return fmt.Errorf("building server route set: %w", err)
	}

	srv := tunnelserver.New(tunnelserver.Config{
		Bind:                 cfg.Bind,
		Token:                cfg.Token,
		TLSConfig:            tlsCfg,
		Routes:               routeSet,
		MaxConcurrentStreams: cfg.MaxConcurrentStreamsOrDefault(),
	}, log)

	log.Info().Str("bind", cfg.Bind).Int("routes", len(serverRoutes)).Msg("starting relaytun server")
	return srv.ListenAndServe(ctx)
}

func runClient(ctx context.Context, cfg *config.Client, log zerolog.Logger) error {
	tlsCfg, err := tlsconfig.LoadClientConfig(cfg.Cert, []string{nextProto})
	if err != nil {
		return fmt.Errorf("loading client TLS config: %w", err)
	}

	clientRoutes, err := cfg.ClientRoutes()
	if err != nil {
		return fmt.Errorf("parsing client routes: %w", err)
	}
	routeSet, err := route.NewClientSet(clientRoutes)
	if err != nil {
		return fmt.Errorf("building client route set: %w", err)
	}

	retryInterval, maxRetry := cfg.RetryPolicy()

	sup := tunnelclient.NewSupervisor(tunnelclient.Config{
		Remote:               cfg.Remote,
		Token:                cfg.Token,
		TLSConfig:            tlsCfg,
		Routes:               routeSet,
		MaxConcurrentStreams: cfg.MaxConcurrentStreamsOrDefault(),
	}, retryInterval, maxRetry, log)

	log.Info().Str("remote", cfg.Remote).Int("routes", len(clientRoutes)).Msg("starting relaytun client")
	return sup.Run(ctx)
}
