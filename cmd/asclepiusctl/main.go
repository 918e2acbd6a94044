package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/UnknownOlympus/asclepius/internal/cli"
	"github.com/UnknownOlympus/asclepius/internal/facilities"
	"github.com/UnknownOlympus/asclepius/internal/routing"
	"github.com/joho/godotenv"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	deps := cli.Dependencies{
		NewProvider: routing.NewProvider,
		NewSource: func(path string, log *slog.Logger) facilities.Source {
			return facilities.NewCSVSource(path, log)
		},
		OpenSeeder: func(ctx context.Context) (cli.Seeder, func(), error) {
			pool, err := facilities.NewDatabase(ctx,
				os.Getenv("DB_HOST"), envOr("DB_PORT", "5432"),
				os.Getenv("DB_USERNAME"), os.Getenv("DB_PASSWORD"), os.Getenv("DB_NAME"))
			if err != nil {
				return nil, nil, err
			}
			return facilities.NewRepository(pool, logger), pool.Close, nil
		},
		Getenv:  os.Getenv,
		Logger:  logger,
		Version: version,
	}

	exitCode := cli.Execute(ctx, os.Args[1:], deps, os.Stdout, os.Stderr)
	stop()
	os.Exit(exitCode)
}

func envOr(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
