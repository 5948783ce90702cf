// Package jobs runs background maintenance on cron schedules: keeping the
// miqaat cache warm and pruning old activity-log entries.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/misri-labs/miqaat-admin/internal/config"
)

// jobTimeout bounds a single run.
const jobTimeout = 4 * time.Minute

// Warmer reloads a cache.
type Warmer interface {
	Warm(ctx context.Context) error
}

// Pruner deletes entries older than a retention period.
type Pruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron *cron.Cron
}

// New registers the warm and prune jobs. An empty schedule disables a job.
func New(cfg config.JobsConfig, warmer Warmer, pruner Pruner) (*Scheduler, error) {
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger{}),
		cron.SkipIfStillRunning(cronLogger{}),
	))

	if cfg.WarmSchedule != "" {
		if _, err := c.AddFunc(cfg.WarmSchedule, WarmJob(warmer)); err != nil {
			return nil, fmt.Errorf("scheduling cache warm %q: %w", cfg.WarmSchedule, err)
		}
	}
	if cfg.PruneSchedule != "" && cfg.AuditRetention > 0 {
		if _, err := c.AddFunc(cfg.PruneSchedule, PruneJob(pruner, cfg.AuditRetention)); err != nil {
			return nil, fmt.Errorf("scheduling activity prune %q: %w", cfg.PruneSchedule, err)
		}
	}
	return &Scheduler{cron: c}, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("background jobs started", slog.Int("jobs", len(s.cron.Entries())))
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		slog.Warn("background jobs still running at shutdown")
	}
}

// WarmJob returns a cron func that reloads warmer.
func WarmJob(warmer Warmer) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		start := time.Now()
		if err := warmer.Warm(ctx); err != nil {
			slog.Error("cache warm failed", slog.Any("error", err))
			return
		}
		slog.Debug("cache warmed", slog.Duration("took", time.Since(start)))
	}
}

// PruneJob returns a cron func that prunes entries older than retention.
func PruneJob(pruner Pruner, retention time.Duration) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		n, err := pruner.Prune(ctx, retention)
		if err != nil {
			slog.Error("activity prune failed", slog.Any("error", err))
			return
		}
		slog.Info("activity log pruned", slog.Int64("deleted", n), slog.Duration("retention", retention))
	}
}

// cronLogger adapts cron's logger to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, slog.Any("error", err))...)
}
