package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/misri-labs/miqaat-admin/internal/apperror"
)

// Auditor records admin mutations in the activity log.
type Auditor interface {
	Record(ctx context.Context, actor, action, kind, id, name string, details map[string]any)
}

// CellEdit is one inline change from the sheet editor.
type CellEdit struct {
	ID     string `json:"id"`
	Column string `json:"column"`
	Value  string `json:"value"`
}

// CellResult reports the outcome of one CellEdit.
type CellResult struct {
	ID     string `json:"id"`
	Column string `json:"column"`
	OK     bool   `json:"ok"`
	Value  string `json:"value,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Service is the business layer for one record kind.
type Service[T any] interface {
	Schema() *Schema[T]
	Get(ctx context.Context, id string) (*T, error)
	List(ctx context.Context, opts ListOptions) (*Page[T], error)
	All(ctx context.Context) ([]T, error)
	Create(ctx context.Context, actor string, rec *T) (*T, error)
	Update(ctx context.Context, actor, id string, rec *T) (*T, error)
	Delete(ctx context.Context, actor, id string) error
	UpdateCells(ctx context.Context, actor string, edits []CellEdit) []CellResult

	// Validate runs struct-tag and cross-field rules without persisting.
	Validate(rec *T) error

	// OnChange registers fn to run after every successful mutation.
	OnChange(fn func(ctx context.Context))
}

// Options wires optional collaborators into a Service.
type Options struct {
	Auditor Auditor
	Now     func() time.Time
	NewID   func() string
}

type service[T any] struct {
	repo     Repository[T]
	schema   *Schema[T]
	validate *validator.Validate
	auditor  Auditor
	now      func() time.Time
	newID    func() string
	onChange []func(ctx context.Context)
}

// NewService returns a Service over repo.
func NewService[T any](repo Repository[T], schema *Schema[T], opts Options) Service[T] {
	s := &service[T]{
		repo:     repo,
		schema:   schema,
		validate: NewValidator(),
		auditor:  opts.Auditor,
		now:      opts.Now,
		newID:    opts.NewID,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

func (s *service[T]) Schema() *Schema[T] { return s.schema }

// OnChange hooks run in registration order after the mutation is persisted
// and audited. The miqaat cache invalidation is registered here.
func (s *service[T]) OnChange(fn func(ctx context.Context)) {
	s.onChange = append(s.onChange, fn)
}

func (s *service[T]) changed(ctx context.Context) {
	for _, fn := range s.onChange {
		fn(ctx)
	}
}

// audit writes one activity entry. Action is "<kind>.<verb>", e.g.
// "shrines.updated".
func (s *service[T]) audit(ctx context.Context, actor, verb string, rec *T, details map[string]any) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(ctx, actor, s.schema.Kind+"."+verb, s.schema.Kind,
		s.schema.Base(rec).ID, s.schema.Name(rec), details)
}

// Get retrieves one record. The repository reports a missing row as nil,
// which becomes a 404 here.
func (s *service[T]) Get(ctx context.Context, id string) (*T, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	if rec == nil {
		return nil, apperror.NewNotFound(s.schema.Singular + " not found")
	}
	return rec, nil
}

func (s *service[T]) List(ctx context.Context, opts ListOptions) (*Page[T], error) {
	page, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return page, nil
}

func (s *service[T]) All(ctx context.Context) ([]T, error) {
	items, err := s.repo.All(ctx)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return items, nil
}

// Validate normalizes rec, then applies the struct tags and finally the
// schema's cross-field check.
func (s *service[T]) Validate(rec *T) error {
	if s.schema.Normalize != nil {
		s.schema.Normalize(rec)
	}
	if err := s.validate.Struct(rec); err != nil {
		return apperror.FromValidator(err)
	}
	if s.schema.Check != nil {
		if err := s.schema.Check(rec); err != nil {
			// Checks may return a ready AppError (e.g. with Fields set).
			var appErr *apperror.AppError
			if errors.As(err, &appErr) {
				return appErr
			}
			return apperror.NewValidation(err.Error())
		}
	}
	return nil
}

func (s *service[T]) Create(ctx context.Context, actor string, rec *T) (*T, error) {
	if err := s.Validate(rec); err != nil {
		return nil, err
	}
	// DATETIME columns have second precision; truncating keeps the returned
	// record identical to what a later Get reads back.
	now := s.now().UTC().Truncate(time.Second)
	base := s.schema.Base(rec)
	base.ID = s.newID()
	base.CreatedAt = now
	base.UpdatedAt = now

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, apperror.NewInternal(err)
	}
	if s.schema.AfterLoad != nil {
		s.schema.AfterLoad(rec)
	}

	s.audit(ctx, actor, "created", rec, nil)
	s.changed(ctx)
	return rec, nil
}

func (s *service[T]) Update(ctx context.Context, actor, id string, rec *T) (*T, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(rec); err != nil {
		return nil, err
	}
	// The body cannot move a record or rewrite its creation time.
	base := s.schema.Base(rec)
	base.ID = id
	base.CreatedAt = s.schema.Base(existing).CreatedAt
	base.UpdatedAt = s.now().UTC().Truncate(time.Second)

	// ErrNoRows here means nothing changed; existence was checked above.
	if err := s.repo.Update(ctx, rec); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewInternal(err)
	}
	if s.schema.AfterLoad != nil {
		s.schema.AfterLoad(rec)
	}

	s.audit(ctx, actor, "updated", rec, changedColumns(s.schema, existing, rec))
	s.changed(ctx)
	return rec, nil
}

func (s *service[T]) Delete(ctx context.Context, actor, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		// Deleted concurrently between Get and Delete.
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NewNotFound(s.schema.Singular + " not found")
		}
		return apperror.NewInternal(err)
	}

	s.audit(ctx, actor, "deleted", existing, nil)
	s.changed(ctx)
	return nil
}

// UpdateCells applies each edit independently: a failing cell does not stop
// the others. Every edited record is re-validated as a whole.
func (s *service[T]) UpdateCells(ctx context.Context, actor string, edits []CellEdit) []CellResult {
	results := make([]CellResult, 0, len(edits))
	touched := false
	for _, edit := range edits {
		res := CellResult{ID: edit.ID, Column: edit.Column}
		value, err := s.updateCell(ctx, actor, edit)
		if err != nil {
			res.Error = apperror.SafeMessage(err)
			// Client mistakes are reported in the result only.
			if apperror.SafeCode(err) >= 500 {
				slog.Error("cell update failed",
					slog.String("kind", s.schema.Kind),
					slog.String("id", edit.ID),
					slog.String("column", edit.Column),
					slog.Any("error", err),
				)
			}
		} else {
			res.OK = true
			res.Value = value
			touched = true
		}
		results = append(results, res)
	}
	if touched {
		s.changed(ctx)
	}
	return results
}

// updateCell loads the record, assigns one column from its text form and
// saves the whole row. It returns the new display value.
func (s *service[T]) updateCell(ctx context.Context, actor string, edit CellEdit) (string, error) {
	col, ok := s.schema.Column(edit.Column)
	if !ok || !col.Editable {
		return "", apperror.NewBadRequest(fmt.Sprintf("column %q is not editable", edit.Column))
	}
	rec, err := s.Get(ctx, edit.ID)
	if err != nil {
		return "", err
	}
	before := s.schema.Display(rec, col.Name)

	ptr, _ := s.schema.field(rec, col.Name)
	if err := assign(ptr, edit.Value); err != nil {
		return "", apperror.NewValidation(col.Label + ": " + err.Error())
	}
	if err := s.Validate(rec); err != nil {
		return "", err
	}

	s.schema.Base(rec).UpdatedAt = s.now().UTC().Truncate(time.Second)
	if err := s.repo.Update(ctx, rec); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", apperror.NewInternal(err)
	}

	after := s.schema.Display(rec, col.Name)
	s.audit(ctx, actor, "updated", rec, map[string]any{
		"column": col.Name,
		"from":   before,
		"to":     after,
	})
	return after, nil
}

// changedColumns lists the columns whose display value differs.
func changedColumns[T any](schema *Schema[T], before, after *T) map[string]any {
	var changed []string
	for _, c := range schema.Columns {
		if schema.Display(before, c.Name) != schema.Display(after, c.Name) {
			changed = append(changed, c.Name)
		}
	}
	if len(changed) == 0 {
		return nil
	}
	return map[string]any{"columns": changed}
}
