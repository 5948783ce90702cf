// Package main is the entry point for the miqaat admin server. It loads
// configuration, connects to MariaDB and Redis, applies migrations, wires
// the plugins and serves HTTP until interrupted.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/misri-labs/miqaat-admin/internal/app"
	"github.com/misri-labs/miqaat-admin/internal/config"
	"github.com/misri-labs/miqaat-admin/internal/database"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

// run holds the startup sequence so deferred closes run before os.Exit.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	// ctx is cancelled on SIGINT/SIGTERM and stops jobs and the server.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewMariaDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("connected to MariaDB")

	// Migrate before anything queries the schema.
	if err := database.RunMigrations(db, cfg.MigrationsPath); err != nil {
		return err
	}

	rdb, err := database.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()
	slog.Info("connected to Redis")

	application := app.New(cfg, db, rdb)
	if err := application.RegisterRoutes(ctx); err != nil {
		return err
	}
	// Rate limiter sweeps and cron jobs.
	application.Run(ctx)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- application.Start()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	// Give in-flight requests and running jobs 10 seconds to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", slog.Any("error", err))
	}
	return nil
}

// setupLogging uses text logs in development and JSON logs elsewhere.
func setupLogging(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler
	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler).With(slog.String("service", "miqaat-admin")))
}
