package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"post-purge/internal/app"
	"post-purge/internal/cli"
	"post-purge/internal/models/ports"
	"post-purge/internal/pkg/config"
	"post-purge/internal/pkg/logger"
)

func main() {
	// Ctrl+C отменяет запуск, журнал при этом все равно записывается
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd(newPurger).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newPurger(ctx context.Context) (ports.PurgeUseCase, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	l, err := logger.NewLogger(os.Getenv("APP_ENV") != "production", cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	application, err := app.New(ctx, cfg, l)
	if err != nil {
		_ = l.Sync()
		return nil, nil, err
	}

	initCtx, cancel := context.WithTimeout(ctx, cfg.APITimeout)
	defer cancel()

	if _, err := application.Purger.Initialize(initCtx); err != nil {
		application.Close()
		_ = l.Sync()
		return nil, nil, err
	}

	return application.Purger, func() {
		application.Close()
		_ = l.Sync()
	}, nil
}
