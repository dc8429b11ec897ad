package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/httplog"
	"github.com/rs/zerolog"

	"github.com/marcelsud/assistant-gateway/config"
	"github.com/marcelsud/assistant-gateway/gateway"
)

/* main only wires: config, logger, gateway
 * Packages import downwards; nothing below cmd knows about the process
 */

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parsing LOG_LEVEL: %w", err)
	}
	logger := httplog.NewLogger("assistant-gateway", httplog.Options{
		JSON: true,
	}).Level(level)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	g, err := gateway.New(cfg, logger)
	if err != nil {
		return err
	}
	return g.Run(ctx)
}
