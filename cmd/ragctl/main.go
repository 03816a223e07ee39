package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/tenant-rag/internal/adapters/cli"
	"github.com/kirillkom/tenant-rag/internal/bootstrap"
	"github.com/kirillkom/tenant-rag/internal/config"
	"github.com/kirillkom/tenant-rag/internal/observability/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(func(ctx context.Context) (cli.Services, func(), error) {
		cfg, err := config.Load()
		if err != nil {
			return cli.Services{}, nil, err
		}
		slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "ragctl", cfg.LogLevel))

		app, err := bootstrap.New(ctx, cfg, nil)
		if err != nil {
			return cli.Services{}, nil, err
		}
		return cli.Services{Docs: app.Docs, Query: app.Query, Cleaner: app.Cleaner}, app.Close, nil
	})
	root.SetOut(os.Stdout)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
