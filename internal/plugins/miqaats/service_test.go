package miqaats

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/misri-labs/miqaat-admin/internal/apperror"
	"github.com/misri-labs/miqaat-admin/internal/records"
)

// --- Mocks ---

type mockRepo struct {
	allFn    func(ctx context.Context) ([]Miqaat, error)
	createFn func(ctx context.Context, m *Miqaat) error
	allCalls int
	created  []Miqaat
}

func (m *mockRepo) Get(context.Context, string) (*Miqaat, error) { return nil, nil }

func (m *mockRepo) List(context.Context, records.ListOptions) (*records.Page[Miqaat], error) {
	return &records.Page[Miqaat]{}, nil
}

func (m *mockRepo) All(ctx context.Context) ([]Miqaat, error) {
	m.allCalls++
	if m.allFn != nil {
		return m.allFn(ctx)
	}
	return nil, nil
}

func (m *mockRepo) Create(ctx context.Context, rec *Miqaat) error {
	if m.createFn != nil {
		if err := m.createFn(ctx, rec); err != nil {
			return err
		}
	}
	m.created = append(m.created, *rec)
	return nil
}

// CreateMany stages every row and keeps them only when all succeed, like
// the transactional repository.
func (m *mockRepo) CreateMany(ctx context.Context, recs []Miqaat) error {
	staged := make([]Miqaat, 0, len(recs))
	for i := range recs {
		if m.createFn != nil {
			if err := m.createFn(ctx, &recs[i]); err != nil {
				return err
			}
		}
		staged = append(staged, recs[i])
	}
	m.created = append(m.created, staged...)
	return nil
}

func (m *mockRepo) Update(context.Context, *Miqaat) error { return nil }
func (m *mockRepo) Delete(context.Context, string) error  { return nil }

type mockAuditor struct {
	actions []string
}

func (m *mockAuditor) Record(_ context.Context, _, action, _, _, _ string, _ map[string]any) {
	m.actions = append(m.actions, action)
}

func intp(v int) *int { return &v }

func newTestService(t *testing.T, repo *mockRepo, auditor *mockAuditor) (Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	n := 0
	opts := records.Options{
		Now: func() time.Time { return time.Date(2024, 7, 7, 9, 0, 0, 0, time.UTC) },
		NewID: func() string {
			n++
			return "id-" + string(rune('0'+n))
		},
	}
	if auditor != nil {
		opts.Auditor = auditor
	}
	return NewService(repo, rdb, time.Hour, opts), mr
}

func assertCode(t *testing.T, err error, code int) {
	t.Helper()
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != code {
		t.Errorf("expected code %d, got %d (%s)", code, appErr.Code, appErr.Message)
	}
}

// --- Slot rules ---

func TestValidate(t *testing.T) {
	svc, _ := newTestService(t, &mockRepo{}, nil)

	tests := []struct {
		name string
		m    Miqaat
		ok   bool
	}{
		{"day only", Miqaat{Name: "Ashura", Date: intp(10), Month: intp(0)}, true},
		{"night only", Miqaat{Name: "Lailat al-Qadr", DateNight: intp(23), MonthNight: intp(8)}, true},
		{"both slots", Miqaat{Name: "Milad", Date: intp(17), Month: intp(2), DateNight: intp(17), MonthNight: intp(2), Phase: PhaseNight}, true},
		{"no slot", Miqaat{Name: "Nothing"}, false},
		{"day without month", Miqaat{Name: "Half", Date: intp(3)}, false},
		{"night month without day", Miqaat{Name: "Half", MonthNight: intp(3), Date: intp(1), Month: intp(1)}, false},
		{"30 in a 29-day month", Miqaat{Name: "Too late", Date: intp(30), Month: intp(1)}, false},
		{"30 in last month", Miqaat{Name: "Year end", Date: intp(30), Month: intp(11)}, true},
		{"month out of range", Miqaat{Name: "Bad", Date: intp(1), Month: intp(12)}, false},
		{"night phase without night slot", Miqaat{Name: "Bad", Date: intp(1), Month: intp(1), Phase: PhaseNight}, false},
		{"unknown phase", Miqaat{Name: "Bad", Date: intp(1), Month: intp(1), Phase: "dusk"}, false},
		{"blank name", Miqaat{Name: "  ", Date: intp(1), Month: intp(1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := tt.m
			err := svc.Validate(&m)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("expected validation error")
				}
				assertCode(t, err, http.StatusUnprocessableEntity)
			}
		})
	}
}

func TestValidate_DefaultsPhase(t *testing.T) {
	svc, _ := newTestService(t, &mockRepo{}, nil)

	day := Miqaat{Name: "Ashura", Date: intp(10), Month: intp(0)}
	if err := svc.Validate(&day); err != nil {
		t.Fatal(err)
	}
	if day.Phase != PhaseDay {
		t.Errorf("expected day phase, got %q", day.Phase)
	}

	night := Miqaat{Name: "Night", DateNight: intp(1), MonthNight: intp(0)}
	if err := svc.Validate(&night); err != nil {
		t.Fatal(err)
	}
	if night.Phase != PhaseNight {
		t.Errorf("expected night phase, got %q", night.Phase)
	}
}

// --- Cache ---

func TestCached_ServesFromRedis(t *testing.T) {
	repo := &mockRepo{allFn: func(context.Context) ([]Miqaat, error) {
		return []Miqaat{{Name: "Ashura", Date: intp(10), Month: intp(0), Phase: PhaseDay}}, nil
	}}
	svc, mr := newTestService(t, repo, nil)
	ctx := context.Background()

	first, err := svc.Cached(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Cached(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if repo.allCalls != 1 {
		t.Errorf("expected one database load, got %d", repo.allCalls)
	}
	if len(first) != 1 || len(second) != 1 || second[0].Name != "Ashura" || *second[0].Date != 10 {
		t.Errorf("unexpected cached list: %+v", second)
	}
	if !mr.Exists(cacheKey) {
		t.Error("expected cache key to be set")
	}
	if ttl := mr.TTL(cacheKey); ttl != time.Hour {
		t.Errorf("expected 1h TTL, got %v", ttl)
	}
}

func TestCached_InvalidatedOnCreate(t *testing.T) {
	repo := &mockRepo{}
	svc, mr := newTestService(t, repo, nil)
	ctx := context.Background()

	if err := svc.Warm(ctx); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists(cacheKey) {
		t.Fatal("expected warm to fill the cache")
	}
	if _, err := svc.Create(ctx, "admin@example.com", &Miqaat{Name: "Ashura", Date: intp(10), Month: intp(0)}); err != nil {
		t.Fatal(err)
	}
	if mr.Exists(cacheKey) {
		t.Error("expected create to clear the cache")
	}
}

func TestCached_ReloadRacingMutationDoesNotCache(t *testing.T) {
	repo := &mockRepo{}
	svc, mr := newTestService(t, repo, nil)
	ctx := context.Background()

	repo.allFn = func(context.Context) ([]Miqaat, error) {
		if repo.allCalls == 1 {
			// A write commits and invalidates while this read is in flight.
			svc.(*service).invalidate(ctx)
		}
		return []Miqaat{{Name: "Ashura", Date: intp(10), Month: intp(0)}}, nil
	}

	if _, err := svc.Cached(ctx); err != nil {
		t.Fatal(err)
	}
	if mr.Exists(cacheKey) {
		t.Fatal("a list read before the invalidation must not be cached")
	}

	if _, err := svc.Cached(ctx); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists(cacheKey) {
		t.Error("an undisturbed reload should populate the cache")
	}
}

func TestCached_CorruptEntryReloads(t *testing.T) {
	repo := &mockRepo{}
	svc, mr := newTestService(t, repo, nil)
	if err := mr.Set(cacheKey, "{not json"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Cached(context.Background()); err != nil {
		t.Fatal(err)
	}
	if repo.allCalls != 1 {
		t.Errorf("expected reload from database, got %d loads", repo.allCalls)
	}
}

func TestCached_WithoutRedis(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, nil, time.Hour, records.Options{})
	if _, err := svc.Cached(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Cached(context.Background()); err != nil {
		t.Fatal(err)
	}
	if repo.allCalls != 2 {
		t.Errorf("expected every call to hit the database, got %d", repo.allCalls)
	}
}

// --- Bulk create and import ---

func TestCreateMany_AllOrNothing(t *testing.T) {
	repo := &mockRepo{}
	auditor := &mockAuditor{}
	svc, _ := newTestService(t, repo, auditor)

	_, err := svc.CreateMany(context.Background(), "admin@example.com", "created", []Miqaat{
		{Name: "Ashura", Date: intp(10), Month: intp(0)},
		{Name: "Broken"},
	})
	assertCode(t, err, http.StatusUnprocessableEntity)

	var appErr *apperror.AppError
	errors.As(err, &appErr)
	if _, ok := appErr.Fields["row 2"]; !ok {
		t.Errorf("expected row 2 to be reported, got %v", appErr.Fields)
	}
	if len(repo.created) != 0 {
		t.Errorf("expected nothing created, got %d", len(repo.created))
	}
	if len(auditor.actions) != 0 {
		t.Errorf("expected no activity entry, got %v", auditor.actions)
	}
}

func TestCreateMany_InsertFailurePersistsNothing(t *testing.T) {
	calls := 0
	repo := &mockRepo{createFn: func(context.Context, *Miqaat) error {
		calls++
		if calls == 3 {
			return errors.New("db down")
		}
		return nil
	}}
	auditor := &mockAuditor{}
	svc, _ := newTestService(t, repo, auditor)

	created, err := svc.CreateMany(context.Background(), "admin@example.com", "imported", []Miqaat{
		{Name: "Ashura", Date: intp(10), Month: intp(0)},
		{Name: "Chehlum", Date: intp(20), Month: intp(1)},
		{Name: "Milad", Date: intp(12), Month: intp(2)},
	})
	assertCode(t, err, http.StatusInternalServerError)
	if created != nil {
		t.Errorf("expected no created miqaats, got %d", len(created))
	}
	if len(repo.created) != 0 {
		t.Errorf("expected the batch to roll back, %d rows persisted", len(repo.created))
	}
	if len(auditor.actions) != 0 {
		t.Errorf("expected no activity entry, got %v", auditor.actions)
	}
}

func TestCreateMany_Success(t *testing.T) {
	repo := &mockRepo{}
	auditor := &mockAuditor{}
	svc, mr := newTestService(t, repo, auditor)
	mr.Set(cacheKey, "[]")

	created, err := svc.CreateMany(context.Background(), "admin@example.com", "created", []Miqaat{
		{Name: "Ashura", Date: intp(10), Month: intp(0)},
		{Name: "Urs", Date: intp(27), Month: intp(6)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 2 || created[0].ID == created[1].ID || created[0].ID == "" {
		t.Errorf("expected two records with distinct IDs, got %+v", created)
	}
	if created[0].CreatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
	if len(auditor.actions) != 1 || auditor.actions[0] != "miqaats.created" {
		t.Errorf("expected a single miqaats.created entry, got %v", auditor.actions)
	}
	if mr.Exists(cacheKey) {
		t.Error("expected cache to be cleared")
	}
}

func TestCreateMany_Empty(t *testing.T) {
	svc, _ := newTestService(t, &mockRepo{}, nil)
	_, err := svc.CreateMany(context.Background(), "a", "created", nil)
	assertCode(t, err, http.StatusUnprocessableEntity)
}

func TestParseImport(t *testing.T) {
	tests := []struct {
		name  string
		input string
		count int
		code  int
	}{
		{"yaml list", "- name: Ashura\n  date: 10\n  month: 0\n- name: Urs\n  date: 27\n  month: 6\n", 2, 0},
		{"yaml document", "miqaats:\n  - name: Ashura\n    date: 10\n    month: 0\n", 1, 0},
		{"json list", `[{"name":"Ashura","date":10,"month":0,"phase":"day"}]`, 1, 0},
		{"json document", `{"miqaats":[{"name":"Night","date_night":23,"month_night":8}]}`, 1, 0},
		{"empty", "   ", 0, http.StatusUnprocessableEntity},
		{"no rows", "miqaats: []\n", 0, http.StatusUnprocessableEntity},
		{"garbage", "[{", 0, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := ParseImport([]byte(tt.input))
			if tt.code != 0 {
				assertCode(t, err, tt.code)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(items) != tt.count {
				t.Errorf("expected %d items, got %d", tt.count, len(items))
			}
		})
	}
}

func TestParseImport_NullableFields(t *testing.T) {
	items, err := ParseImport([]byte("- name: Night\n  date_night: 23\n  month_night: 8\n"))
	if err != nil {
		t.Fatal(err)
	}
	m := items[0]
	if m.Date != nil || m.Month != nil {
		t.Error("expected day slot to stay unset")
	}
	if m.DateNight == nil || *m.DateNight != 23 || *m.MonthNight != 8 {
		t.Errorf("unexpected night slot: %+v", m)
	}
}

func TestImport_AuditsOnce(t *testing.T) {
	repo := &mockRepo{}
	auditor := &mockAuditor{}
	svc, _ := newTestService(t, repo, auditor)

	doc := strings.Join([]string{
		"- name: Ashura",
		"  date: 10",
		"  month: 0",
		"- name: Lailat al-Qadr",
		"  date_night: 23",
		"  month_night: 8",
	}, "\n")
	created, err := svc.Import(context.Background(), "admin@example.com", []byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 2 || created[1].Phase != PhaseNight {
		t.Errorf("unexpected import result: %+v", created)
	}
	if len(auditor.actions) != 1 || auditor.actions[0] != "miqaats.imported" {
		t.Errorf("expected one miqaats.imported entry, got %v", auditor.actions)
	}
}

func TestCreateMany_RepositoryFailure(t *testing.T) {
	calls := 0
	repo := &mockRepo{createFn: func(context.Context, *Miqaat) error {
		calls++
		if calls == 2 {
			return errors.New("connection reset")
		}
		return nil
	}}
	svc, _ := newTestService(t, repo, nil)
	created, err := svc.CreateMany(context.Background(), "a", "created", []Miqaat{
		{Name: "One", Date: intp(1), Month: intp(0)},
		{Name: "Two", Date: intp(2), Month: intp(0)},
	})
	assertCode(t, err, http.StatusInternalServerError)
	if len(created) != 1 {
		t.Errorf("expected the first record to be reported, got %d", len(created))
	}
}
