package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/misri-labs/miqaat-admin/internal/apperror"
)

// PerPage is the activity page size.
const PerPage = 50

// maxHistoryEntries caps one record's history.
const maxHistoryEntries = 100

// Service records and reads the activity log.
type Service interface {
	// Record logs an action. Failures are logged, never returned: the
	// activity log must not block the change it describes.
	Record(ctx context.Context, actor, action, kind, id, name string, details map[string]any)

	// Activity returns one page of entries (1-indexed) and the total count.
	Activity(ctx context.Context, kind string, page int) ([]Entry, int, error)

	// History returns the latest entries for one record.
	History(ctx context.Context, kind, id string) ([]Entry, error)

	// Prune deletes entries older than retention.
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates the activity log service.
func NewService(repo Repository) Service {
	return &service{repo: repo, now: time.Now}
}

func (s *service) Record(ctx context.Context, actor, action, kind, id, name string, details map[string]any) {
	entry := &Entry{
		UserEmail:  actor,
		Action:     action,
		EntityType: kind,
		EntityID:   id,
		EntityName: truncate(name, 255),
		Details:    details,
		CreatedAt:  s.now().UTC(),
	}
	if entry.UserEmail == "" {
		entry.UserEmail = "system"
	}
	// The request may already be finished; keep the write alive on its own.
	ctx = context.WithoutCancel(ctx)
	if err := s.repo.Log(ctx, entry); err != nil {
		slog.Error("failed to write audit entry",
			slog.String("action", action),
			slog.String("entity_id", id),
			slog.Any("error", err),
		)
	}
}

func (s *service) Activity(ctx context.Context, kind string, page int) ([]Entry, int, error) {
	if page < 1 {
		page = 1
	}
	entries, total, err := s.repo.List(ctx, kind, PerPage, (page-1)*PerPage)
	if err != nil {
		return nil, 0, apperror.NewInternal(fmt.Errorf("listing activity: %w", err))
	}
	return entries, total, nil
}

func (s *service) History(ctx context.Context, kind, id string) ([]Entry, error) {
	if kind == "" || id == "" {
		return nil, apperror.NewBadRequest("kind and id are required")
	}
	entries, err := s.repo.ListByEntity(ctx, kind, id, maxHistoryEntries)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing history: %w", err))
	}
	return entries, nil
}

func (s *service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, apperror.NewBadRequest("retention must be positive")
	}
	cutoff := s.now().UTC().Add(-retention)
	n, err := s.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, apperror.NewInternal(err)
	}
	if n > 0 {
		slog.Info("pruned activity log", slog.Int64("deleted", n), slog.Time("before", cutoff))
	}
	return n, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
