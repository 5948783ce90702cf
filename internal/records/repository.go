package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Pagination bounds for List.
const (
	DefaultPerPage = 25
	MaxPerPage     = 100
)

// ListOptions selects a page of records.
type ListOptions struct {
	// Search matches any searchable column with a substring LIKE.
	Search string

	// Filters holds exact-match values keyed by filterable column.
	Filters map[string]string

	// Sort is a sortable column name; unknown names fall back to the default.
	Sort string
	Desc bool

	// Page is 1-based.
	Page    int
	PerPage int
}

// normalize clamps paging into range.
func (o ListOptions) normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PerPage < 1 {
		o.PerPage = DefaultPerPage
	}
	if o.PerPage > MaxPerPage {
		o.PerPage = MaxPerPage
	}
	return o
}

// Offset is the row offset of the page.
func (o ListOptions) Offset() int {
	return (o.Page - 1) * o.PerPage
}

// Page is one page of List results.
type Page[T any] struct {
	Items   []T `json:"items"`
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// TotalPages returns the number of pages needed for Total items.
func (p Page[T]) TotalPages() int {
	if p.PerPage <= 0 || p.Total == 0 {
		return 1
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// Repository is the data access contract for one record kind.
type Repository[T any] interface {
	Get(ctx context.Context, id string) (*T, error)
	List(ctx context.Context, opts ListOptions) (*Page[T], error)
	All(ctx context.Context) ([]T, error)
	Create(ctx context.Context, rec *T) error
	// CreateMany inserts recs in one transaction: all of them or none.
	CreateMany(ctx context.Context, recs []T) error
	Update(ctx context.Context, rec *T) error
	Delete(ctx context.Context, id string) error
}

type repository[T any] struct {
	db     *sql.DB
	schema *Schema[T]
}

// NewRepository returns a MariaDB-backed Repository for schema.
func NewRepository[T any](db *sql.DB, schema *Schema[T]) Repository[T] {
	return &repository[T]{db: db, schema: schema}
}

// selectColumns is the SELECT list: id, schema columns, timestamps.
func (r *repository[T]) selectColumns() string {
	cols := append([]string{"id"}, r.schema.columnNames()...)
	cols = append(cols, "created_at", "updated_at")
	return strings.Join(quoteAll(cols), ", ")
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *repository[T]) scan(s scanner) (*T, error) {
	rec := new(T)
	base := r.schema.Base(rec)
	dest := append([]any{&base.ID}, r.schema.Fields(rec)...)
	dest = append(dest, &base.CreatedAt, &base.UpdatedAt)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	if r.schema.AfterLoad != nil {
		r.schema.AfterLoad(rec)
	}
	return rec, nil
}

// Get returns the record with id, or nil when it does not exist.
func (r *repository[T]) Get(ctx context.Context, id string) (*T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", r.selectColumns(), quote(r.schema.Table))
	rec, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s %s: %w", r.schema.Singular, id, err)
	}
	return rec, nil
}

// List returns one page of records matching opts.
func (r *repository[T]) List(ctx context.Context, opts ListOptions) (*Page[T], error) {
	opts = opts.normalize()
	where, args := buildWhere(r.schema, opts)

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", quote(r.schema.Table), where)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting %s: %w", r.schema.Kind, err)
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s LIMIT ? OFFSET ?",
		r.selectColumns(), quote(r.schema.Table), where, buildOrder(r.schema, opts))
	items, err := r.query(ctx, query, append(args, opts.PerPage, opts.Offset())...)
	if err != nil {
		return nil, err
	}
	return &Page[T]{Items: items, Total: total, Page: opts.Page, PerPage: opts.PerPage}, nil
}

// All returns every record in default order.
func (r *repository[T]) All(ctx context.Context) ([]T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		r.selectColumns(), quote(r.schema.Table), buildOrder(r.schema, ListOptions{}))
	return r.query(ctx, query)
}

func (r *repository[T]) query(ctx context.Context, query string, args ...any) ([]T, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", r.schema.Kind, err)
	}
	defer rows.Close()

	var items []T
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", r.schema.Singular, err)
		}
		items = append(items, *rec)
	}
	return items, rows.Err()
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Create inserts rec. ID and timestamps must already be set.
func (r *repository[T]) Create(ctx context.Context, rec *T) error {
	return r.insert(ctx, r.db, rec)
}

// CreateMany inserts recs inside a single transaction. The first failing
// insert rolls back every row before it.
func (r *repository[T]) CreateMany(ctx context.Context, recs []T) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting %s batch: %w", r.schema.Singular, err)
	}
	defer tx.Rollback()

	for i := range recs {
		if err := r.insert(ctx, tx, &recs[i]); err != nil {
			return fmt.Errorf("row %d of %d: %w", i+1, len(recs), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s batch: %w", r.schema.Singular, err)
	}
	return nil
}

func (r *repository[T]) insert(ctx context.Context, db execer, rec *T) error {
	base := r.schema.Base(rec)
	cols := append([]string{"id"}, r.schema.columnNames()...)
	cols = append(cols, "created_at", "updated_at")
	args := append([]any{base.ID}, r.schema.Fields(rec)...)
	args = append(args, base.CreatedAt, base.UpdatedAt)

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(r.schema.Table), strings.Join(quoteAll(cols), ", "), placeholders(len(cols)))
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting %s: %w", r.schema.Singular, err)
	}
	return nil
}

// Update overwrites every schema column of rec.
func (r *repository[T]) Update(ctx context.Context, rec *T) error {
	base := r.schema.Base(rec)
	sets := make([]string, 0, len(r.schema.Columns)+1)
	for _, name := range r.schema.columnNames() {
		sets = append(sets, quote(name)+" = ?")
	}
	sets = append(sets, "`updated_at` = ?")
	args := append(r.schema.Fields(rec), base.UpdatedAt, base.ID)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", quote(r.schema.Table), strings.Join(sets, ", "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating %s %s: %w", r.schema.Singular, base.ID, err)
	}
	return checkAffected(res, sql.ErrNoRows)
}

// Delete removes the record with id. Deleting a missing record returns
// sql.ErrNoRows.
func (r *repository[T]) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", quote(r.schema.Table))
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", r.schema.Singular, id, err)
	}
	return checkAffected(res, sql.ErrNoRows)
}

// checkAffected returns missing when res touched no rows. MariaDB reports
// matched rows for UPDATE only with CLIENT_FOUND_ROWS, so an unchanged row
// counts as zero; callers load the row first and treat this as success.
func checkAffected(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return missing
	}
	return nil
}

// buildWhere returns the WHERE clause (with a leading space) and its args.
func buildWhere[T any](schema *Schema[T], opts ListOptions) (string, []any) {
	var clauses []string
	var args []any

	if q := strings.TrimSpace(opts.Search); q != "" {
		var ors []string
		pattern := "%" + escapeLike(q) + "%"
		for _, c := range schema.Columns {
			if c.Searchable {
				ors = append(ors, quote(c.Name)+" LIKE ?")
				args = append(args, pattern)
			}
		}
		if len(ors) > 0 {
			clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
		}
	}

	for _, c := range schema.Columns {
		if !c.Filterable {
			continue
		}
		if v, ok := opts.Filters[c.Name]; ok && v != "" {
			clauses = append(clauses, quote(c.Name)+" = ?")
			args = append(args, v)
		}
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// buildOrder returns a whitelisted ORDER BY expression.
func buildOrder[T any](schema *Schema[T], opts ListOptions) string {
	col, desc := schema.DefaultSort, schema.DefaultDesc
	if c, ok := schema.Column(opts.Sort); ok && c.Sortable {
		col, desc = c.Name, opts.Desc
	} else if opts.Sort == "created_at" || opts.Sort == "updated_at" {
		col, desc = opts.Sort, opts.Desc
	}
	if col == "" {
		col = "created_at"
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	// id breaks ties so pagination is stable.
	return quote(col) + " " + dir + ", `id` ASC"
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "") + "`"
}

func quoteAll(idents []string) []string {
	out := make([]string, len(idents))
	for i, id := range idents {
		out[i] = quote(id)
	}
	return out
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
