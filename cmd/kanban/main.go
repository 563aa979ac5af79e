// Package main is the entry point for the kanban CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BuzzLyutic/kanban-board/internal/app"
	"github.com/BuzzLyutic/kanban-board/internal/cli"
	"github.com/BuzzLyutic/kanban-board/internal/config"
	"github.com/BuzzLyutic/kanban-board/internal/logging"
)

// version is set at build time using -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadClient(os.Getenv("KANBAN_CONFIG"))
	if err != nil {
		return err
	}
	logger, err := logging.NewCLI(cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container := app.New(ctx, cfg, logger)
	defer container.Close()

	return cli.NewRootCommand(container, version).ExecuteContext(ctx)
}
