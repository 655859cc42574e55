package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"go-marketplace/internal/adapter/storage"
	"go-marketplace/internal/config"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	_ = godotenv.Load()

	r := &runner{
		logger: logger,
		out:    os.Stdout,
		open: func(ctx context.Context) (*storage.Backend, error) {
			cfg, err := config.Load()
			if err != nil {
				return nil, err
			}
			return storage.Open(ctx, cfg, logger)
		},
	}

	if err := newApp(r).Run(context.Background(), os.Args); err != nil {
		logger.Error("favctl failed", "error", err)
		os.Exit(1)
	}
}
