package miqaats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/misri-labs/miqaat-admin/internal/apperror"
	"github.com/misri-labs/miqaat-admin/internal/records"
)

// cacheKey holds the JSON-encoded full miqaat list. cacheGenKey is bumped
// on every invalidation; a reload only writes the list back if the
// generation it started from is still current.
const (
	cacheKey    = "miqaats:all"
	cacheGenKey = "miqaats:gen"
)

// Service adds the cached full list and bulk operations to the generic
// record service.
type Service interface {
	records.Service[Miqaat]

	// Cached returns every miqaat, served from Redis when possible.
	Cached(ctx context.Context) ([]Miqaat, error)

	// Warm reloads the cache from the database.
	Warm(ctx context.Context) error

	// CreateMany validates every miqaat first, then inserts the batch in one
	// transaction. Nothing is stored if any item is invalid or any insert
	// fails. One activity entry covers the batch.
	CreateMany(ctx context.Context, actor, action string, items []Miqaat) ([]Miqaat, error)

	// Import parses a YAML or JSON document and creates its miqaats.
	Import(ctx context.Context, actor string, data []byte) ([]Miqaat, error)
}

type service struct {
	records.Service[Miqaat]
	repo    records.Repository[Miqaat]
	rdb     *redis.Client
	ttl     time.Duration
	auditor records.Auditor
	now     func() time.Time
	newID   func() string
}

// NewService builds the miqaat service. rdb may be nil, which disables
// caching.
func NewService(repo records.Repository[Miqaat], rdb *redis.Client, ttl time.Duration, opts records.Options) Service {
	s := &service{
		Service: records.NewService(repo, Schema, opts),
		repo:    repo,
		rdb:     rdb,
		ttl:     ttl,
		auditor: opts.Auditor,
		now:     opts.Now,
		newID:   opts.NewID,
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.OnChange(s.invalidate)
	return s
}

func (s *service) Cached(ctx context.Context) ([]Miqaat, error) {
	if s.rdb != nil {
		data, err := s.rdb.Get(ctx, cacheKey).Bytes()
		switch {
		case err == nil:
			var items []Miqaat
			if jsonErr := json.Unmarshal(data, &items); jsonErr == nil {
				return items, nil
			}
			slog.Warn("discarding corrupt miqaat cache")
		case !errors.Is(err, redis.Nil):
			slog.Warn("miqaat cache read failed", slog.Any("error", err))
		}
	}
	return s.load(ctx)
}

func (s *service) Warm(ctx context.Context) error {
	_, err := s.load(ctx)
	return err
}

// load reads the list from the database and refreshes the cache.
func (s *service) load(ctx context.Context) ([]Miqaat, error) {
	var gen int64
	cacheable := s.rdb != nil
	if cacheable {
		var err error
		if gen, err = s.generation(ctx, s.rdb); err != nil {
			slog.Warn("miqaat cache generation read failed", slog.Any("error", err))
			cacheable = false
		}
	}

	items, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	if !cacheable {
		return items, nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("encoding miqaat cache: %w", err))
	}
	if err := s.store(ctx, gen, data); err != nil {
		slog.Warn("miqaat cache write failed", slog.Any("error", err))
	}
	return items, nil
}

// store writes data under cacheKey unless an invalidation bumped the
// generation since gen was read. WATCH also aborts the write if one lands
// between the check and EXEC.
func (s *service) store(ctx context.Context, gen int64, data []byte) error {
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.generation(ctx, tx)
		if err != nil {
			return err
		}
		if current != gen {
			return errStaleCache
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey, data, s.ttl)
			return nil
		})
		return err
	}, cacheGenKey)
	if errors.Is(err, errStaleCache) || errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

var errStaleCache = errors.New("miqaat list changed during reload")

// stringGetter is satisfied by both *redis.Client and *redis.Tx.
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *service) generation(ctx context.Context, c stringGetter) (int64, error) {
	gen, err := c.Get(ctx, cacheGenKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (s *service) invalidate(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, cacheGenKey)
		pipe.Del(ctx, cacheKey)
		return nil
	})
	if err != nil {
		slog.Warn("miqaat cache invalidation failed", slog.Any("error", err))
	}
}

// RowError reports why one item of a batch was rejected.
type RowError struct {
	Row     int    `json:"row"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (s *service) CreateMany(ctx context.Context, actor, action string, items []Miqaat) ([]Miqaat, error) {
	if len(items) == 0 {
		return nil, apperror.NewValidation("no miqaats to create")
	}

	var rowErrs []RowError
	for i := range items {
		if err := s.Validate(&items[i]); err != nil {
			rowErrs = append(rowErrs, RowError{Row: i + 1, Name: items[i].Name, Message: apperror.SafeMessage(err)})
		}
	}
	if len(rowErrs) > 0 {
		appErr := apperror.NewValidation(fmt.Sprintf("%d of %d miqaats are invalid", len(rowErrs), len(items)))
		appErr.Fields = make(map[string]string, len(rowErrs))
		for _, re := range rowErrs {
			appErr.Fields[fmt.Sprintf("row %d", re.Row)] = re.Message
		}
		return nil, appErr
	}

	now := s.now().UTC().Truncate(time.Second)
	created := make([]Miqaat, len(items))
	for i := range items {
		m := items[i]
		m.ID = s.nextID()
		m.CreatedAt = now
		m.UpdatedAt = now
		created[i] = m
	}
	if err := s.repo.CreateMany(ctx, created); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("creating %d miqaats: %w", len(created), err))
	}

	if s.auditor != nil {
		s.auditor.Record(ctx, actor, "miqaats."+action, "miqaats", "", fmt.Sprintf("%d miqaats", len(created)),
			map[string]any{"count": len(created)})
	}
	s.invalidate(ctx)
	return created, nil
}

func (s *service) nextID() string {
	if s.newID != nil {
		return s.newID()
	}
	return newUUID()
}
