// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/orderflow/internal/config"
)

var version = "dev"

func main() {
	cmd := &cli.Command{
		Name:     "orderflow",
		Usage:    "Transactional outbox and saga orchestration for orders",
		Version:  version,
		Commands: getCommands(version),
		Before: func(ctx context.Context, _ *cli.Command) (context.Context, error) {
			return ctx, config.Load().Validate()
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}
