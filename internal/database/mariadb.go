// Package database opens the MariaDB pool and the Redis client shared by every
// plugin, and applies schema migrations at startup.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/misri-labs/miqaat-admin/internal/config"
)

// pingAttempts bounds how long startup waits for MariaDB to accept connections.
const pingAttempts = 10

// NewMariaDB opens a connection pool and waits for the server to answer a
// ping, backing off exponentially between attempts.
func NewMariaDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening mariadb connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := waitForPing(ctx, db.PingContext, pingAttempts, time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging mariadb: %w", err)
	}
	return db, nil
}

// waitForPing calls ping until it succeeds, attempts run out, or ctx ends.
func waitForPing(ctx context.Context, ping func(context.Context) error, attempts int, backoff time.Duration) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		slog.Warn("mariadb not ready, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Duration("backoff", backoff),
			slog.Any("error", err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 30*time.Second)
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
}
