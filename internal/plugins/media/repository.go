package media

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/misri-labs/miqaat-admin/internal/apperror"
)

// Repository persists media metadata.
type Repository interface {
	Create(ctx context.Context, f *File) error
	Get(ctx context.Context, id string) (*File, error)
	GetByName(ctx context.Context, name string) (*File, error)

	// List returns files newest first, optionally filtered by a name
	// substring, with the total for pagination.
	List(ctx context.Context, search string, limit, offset int) ([]File, int, error)
	Delete(ctx context.Context, id string) error
}

type repository struct {
	db *sql.DB
}

// NewRepository creates a MariaDB-backed repository.
func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// mysqlDuplicateEntry is MariaDB's error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// Create inserts f. A duplicate name (unique key) becomes a 409.
func (r *repository) Create(ctx context.Context, f *File) error {
	// Thumbnails are stored as a JSON object of size -> object key; NULL
	// when the file has none.
	var thumbs []byte
	if len(f.Thumbnails) > 0 {
		var err error
		if thumbs, err = json.Marshal(f.Thumbnails); err != nil {
			return fmt.Errorf("marshaling thumbnails: %w", err)
		}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO media_files (id, name, object_key, mime_type, size_bytes, thumbnails, uploaded_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.ObjectKey, f.MimeType, f.SizeBytes, thumbs, f.UploadedBy, f.CreatedAt,
	)
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return apperror.NewConflict("a file with this name already exists")
	}
	if err != nil {
		return fmt.Errorf("inserting media file: %w", err)
	}
	return nil
}

// selectColumns must stay in step with scanFile.
const selectColumns = `SELECT id, name, object_key, mime_type, size_bytes, thumbnails, uploaded_by, created_at FROM media_files`

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*File, error) {
	f := &File{}
	var thumbs []byte
	if err := s.Scan(&f.ID, &f.Name, &f.ObjectKey, &f.MimeType, &f.SizeBytes, &thumbs, &f.UploadedBy, &f.CreatedAt); err != nil {
		return nil, err
	}
	if len(thumbs) > 0 {
		if err := json.Unmarshal(thumbs, &f.Thumbnails); err != nil {
			return nil, fmt.Errorf("unmarshaling thumbnails: %w", err)
		}
	}
	return f, nil
}

// getBy loads one file by a unique column. column is always a constant from
// this file, never user input.
func (r *repository) getBy(ctx context.Context, column, value string) (*File, error) {
	f, err := scanFile(r.db.QueryRowContext(ctx, selectColumns+` WHERE `+column+` = ?`, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("media file not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying media file: %w", err)
	}
	return f, nil
}

func (r *repository) Get(ctx context.Context, id string) (*File, error) {
	return r.getBy(ctx, "id", id)
}

func (r *repository) GetByName(ctx context.Context, name string) (*File, error) {
	return r.getBy(ctx, "name", name)
}

func (r *repository) List(ctx context.Context, search string, limit, offset int) ([]File, int, error) {
	where, args := "", []any{}
	if search = strings.TrimSpace(search); search != "" {
		where = ` WHERE name LIKE ?`
		args = append(args, "%"+escapeLike(search)+"%")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media_files`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting media files: %w", err)
	}

	// name breaks ties between files uploaded in the same second.
	rows, err := r.db.QueryContext(ctx,
		selectColumns+where+` ORDER BY created_at DESC, name LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing media files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning media file: %w", err)
		}
		files = append(files, *f)
	}
	return files, total, rows.Err()
}

func (r *repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM media_files WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting media file: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperror.NewNotFound("media file not found")
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
