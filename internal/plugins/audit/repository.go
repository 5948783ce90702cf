package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Repository persists activity entries.
type Repository interface {
	Log(ctx context.Context, entry *Entry) error

	// List returns entries newest first, optionally limited to one entity
	// type, with the total for pagination.
	List(ctx context.Context, entityType string, limit, offset int) ([]Entry, int, error)

	// ListByEntity returns the latest entries for one record.
	ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]Entry, error)

	// DeleteBefore removes entries older than cutoff and reports how many.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *sql.DB
}

// NewRepository creates a MariaDB-backed repository.
func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// Log inserts entry and sets its auto-increment ID.
func (r *repository) Log(ctx context.Context, entry *Entry) error {
	// Details are free-form JSON; nil stays NULL.
	var details []byte
	if entry.Details != nil {
		var err error
		if details, err = json.Marshal(entry.Details); err != nil {
			return fmt.Errorf("marshaling audit details: %w", err)
		}
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (user_email, action, entity_type, entity_id, entity_name, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.UserEmail, entry.Action, entry.EntityType, entry.EntityID, entry.EntityName,
		details, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	if entry.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("getting audit entry id: %w", err)
	}
	return nil
}

const selectColumns = `SELECT id, user_email, action, entity_type, entity_id, entity_name, details, created_at FROM audit_log`

// List pages through the feed. id breaks ties within one second so paging
// never skips or repeats entries.
func (r *repository) List(ctx context.Context, entityType string, limit, offset int) ([]Entry, int, error) {
	where, args := "", []any{}
	if entityType != "" {
		where = " WHERE entity_type = ?"
		args = append(args, entityType)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting audit entries: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		selectColumns+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	return entries, total, err
}

func (r *repository) ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		selectColumns+` WHERE entity_type = ? AND entity_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing entity history: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// DeleteBefore is used by the retention job.
func (r *repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM audit_log WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning audit log: %w", err)
	}
	return result.RowsAffected()
}

// scanEntries reads rows selected with selectColumns. The caller closes rows.
func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var details []byte
		if err := rows.Scan(&e.ID, &e.UserEmail, &e.Action, &e.EntityType,
			&e.EntityID, &e.EntityName, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshaling audit details: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
