package calendar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/misri-labs/miqaat-admin/internal/apperror"
	"github.com/misri-labs/miqaat-admin/internal/plugins/miqaats"
)

// --- Mock miqaat source ---

type mockSource struct {
	cachedFn     func(ctx context.Context) ([]miqaats.Miqaat, error)
	createManyFn func(ctx context.Context, actor, action string, items []miqaats.Miqaat) ([]miqaats.Miqaat, error)
}

func (m *mockSource) Cached(ctx context.Context) ([]miqaats.Miqaat, error) {
	if m.cachedFn != nil {
		return m.cachedFn(ctx)
	}
	return nil, nil
}

func (m *mockSource) CreateMany(ctx context.Context, actor, action string, items []miqaats.Miqaat) ([]miqaats.Miqaat, error) {
	if m.createManyFn != nil {
		return m.createManyFn(ctx, actor, action, items)
	}
	return items, nil
}

var fixedNow = time.Date(2024, 7, 16, 12, 0, 0, 0, time.UTC)

func newTestService(src *mockSource) Service {
	return NewService(src, func() time.Time { return fixedNow })
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

// --- Service ---

func TestService_Current(t *testing.T) {
	src := &mockSource{cachedFn: func(context.Context) ([]miqaats.Miqaat, error) {
		return []miqaats.Miqaat{dayMiqaat("Ashura", 10, 0)}, nil
	}}
	cal, err := newTestService(src).Current(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cal.Year() != 1446 || cal.Month() != 0 {
		t.Errorf("expected 1446/0, got %d/%d", cal.Year(), cal.Month())
	}
	for _, d := range cal.Days() {
		if d.Key == "10-0-1446" && (!d.IsToday || len(d.Events) != 1) {
			t.Errorf("expected Ashura marked today with its event, got %+v", d)
		}
	}
}

func TestService_MonthDegradesOnSourceError(t *testing.T) {
	src := &mockSource{cachedFn: func(context.Context) ([]miqaats.Miqaat, error) {
		return nil, apperror.NewInternal(errors.New("db down"))
	}}
	cal, err := newTestService(src).Month(context.Background(), 1446, 3)
	if err == nil {
		t.Fatal("expected the source error")
	}
	if cal.Year() != 1446 || cal.Month() != 3 || len(cal.Days()) == 0 {
		t.Errorf("expected a usable empty grid, got %d/%d", cal.Year(), cal.Month())
	}
}

func TestCreateFromSelection_Day(t *testing.T) {
	var got []miqaats.Miqaat
	src := &mockSource{createManyFn: func(_ context.Context, actor, action string, items []miqaats.Miqaat) ([]miqaats.Miqaat, error) {
		if actor != "admin@example.com" || action != "created" {
			t.Errorf("unexpected actor/action %q %q", actor, action)
		}
		got = items
		return items, nil
	}}
	_, err := newTestService(src).CreateFromSelection(context.Background(), "admin@example.com", SelectionRequest{
		Keys: []string{"10-3-1446", "9-3-1446", "9-3-1447"},
		Name: "  Majlis ",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected one miqaat per distinct day, got %d", len(got))
	}
	if *got[0].Date != 9 || *got[0].Month != 3 || *got[1].Date != 10 {
		t.Errorf("unexpected slots: %d/%d, %d", *got[0].Date, *got[0].Month, *got[1].Date)
	}
	if got[0].Name != "Majlis" || got[0].Phase != miqaats.PhaseDay || got[0].DateNight != nil {
		t.Errorf("unexpected miqaat: %+v", got[0])
	}
}

func TestCreateFromSelection_NightShiftsToFollowingDate(t *testing.T) {
	var got []miqaats.Miqaat
	src := &mockSource{createManyFn: func(_ context.Context, _, _ string, items []miqaats.Miqaat) ([]miqaats.Miqaat, error) {
		got = items
		return items, nil
	}}
	_, err := newTestService(src).CreateFromSelection(context.Background(), "a", SelectionRequest{
		Keys:  []string{"9-3-1446", "29-11-1446"},
		Name:  "Night",
		Phase: miqaats.PhaseNight,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 miqaats, got %d", len(got))
	}
	if *got[0].DateNight != 1 || *got[0].MonthNight != 0 {
		t.Errorf("expected night (1,0) first, got (%d,%d)", *got[0].DateNight, *got[0].MonthNight)
	}
	if *got[1].DateNight != 10 || *got[1].MonthNight != 3 {
		t.Errorf("expected night (10,3), got (%d,%d)", *got[1].DateNight, *got[1].MonthNight)
	}

	// The created night miqaat renders back on the selected cell.
	cells := cellsWith(New(1446, 3, got).Days(), "Night")
	if len(cells) != 1 || cells[0].Day != 9 {
		t.Errorf("expected the night on 9-3-1446, got %v", cells)
	}
}

func TestCreateFromSelection_Invalid(t *testing.T) {
	svc := newTestService(&mockSource{})
	tests := []struct {
		name string
		req  SelectionRequest
	}{
		{"no name", SelectionRequest{Keys: []string{"1-0-1446"}}},
		{"no keys", SelectionRequest{Name: "x"}},
		{"bad key", SelectionRequest{Name: "x", Keys: []string{"1-0"}}},
		{"impossible date", SelectionRequest{Name: "x", Keys: []string{"30-1-1446"}}},
		{"bad phase", SelectionRequest{Name: "x", Keys: []string{"1-0-1446"}, Phase: "dusk"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateFromSelection(context.Background(), "a", tt.req)
			assertCode(t, err, http.StatusUnprocessableEntity)
		})
	}
}

func TestExportYear(t *testing.T) {
	src := &mockSource{cachedFn: func(context.Context) ([]miqaats.Miqaat, error) {
		ashura := dayMiqaat("Ashura", 10, 0)
		ashura.ID = "m1"
		night := nightMiqaat("Qadr", 23, 8)
		night.ID = "m2"
		yearEnd := dayMiqaat("Year end", 30, 11)
		yearEnd.ID = "m3"
		return []miqaats.Miqaat{ashura, night, yearEnd}, nil
	}}
	body, err := newTestService(src).ExportYear(context.Background(), 1446)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"BEGIN:VCALENDAR", "SUMMARY:Ashura", "20240716", "SUMMARY:Night of Qadr", "m1-day-1446@miqaat-admin"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected export to contain %q", want)
		}
	}
	if strings.Contains(body, "Year end") {
		t.Error("expected the 30th of the last month to be skipped in a common year")
	}
	if strings.Count(body, "BEGIN:VEVENT") != 2 {
		t.Errorf("expected 2 events, got %d", strings.Count(body, "BEGIN:VEVENT"))
	}
}

func TestExportYear_OutOfRange(t *testing.T) {
	_, err := newTestService(&mockSource{}).ExportYear(context.Background(), 0)
	assertCode(t, err, http.StatusUnprocessableEntity)
}

// --- Handler ---

func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func testHandler(src *mockSource) *Handler {
	return NewHandler(newTestService(src), func(echo.Context) string { return "admin@example.com" })
}

func TestSelectionAPI(t *testing.T) {
	h := testHandler(&mockSource{})

	c, rec := newContext(http.MethodGet, "/api/v1/calendar/selection?year=1446&month=1&scope=month", "")
	if err := h.SelectionAPI(c); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.Body.String(), `"1-1-1446"`) || strings.Contains(rec.Body.String(), `"30-1-1446"`) {
		t.Errorf("unexpected month selection: %s", rec.Body.String())
	}

	c, rec = newContext(http.MethodGet, "/api/v1/calendar/selection?year=1446&month=1&scope=year", "")
	if err := h.SelectionAPI(c); err != nil {
		t.Fatal(err)
	}
	if strings.Count(rec.Body.String(), "-1446") != 354 {
		t.Errorf("expected 354 keys for 1446, got %d", strings.Count(rec.Body.String(), "-1446"))
	}

	c, rec = newContext(http.MethodGet, "/api/v1/calendar/selection?year=1446&month=1&scope=days", "")
	if err := h.SelectionAPI(c); err != nil {
		t.Fatal(err)
	}
	if strings.Count(rec.Body.String(), "-1-1446") != 29 {
		t.Errorf("expected the 29 days of month 1, got %s", rec.Body.String())
	}

	c, _ = newContext(http.MethodGet, "/api/v1/calendar/selection?year=1446&scope=week", "")
	assertCode(t, h.SelectionAPI(c), http.StatusUnprocessableEntity)

	c, _ = newContext(http.MethodGet, "/api/v1/calendar/selection?year=abc", "")
	assertCode(t, h.SelectionAPI(c), http.StatusUnprocessableEntity)
}

func TestMonthAPI_ClampsMonth(t *testing.T) {
	h := testHandler(&mockSource{})
	c, rec := newContext(http.MethodGet, "/api/v1/calendar?year=1446&month=15", "")
	if err := h.MonthAPI(c); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.Body.String(), `"month":11`) {
		t.Errorf("expected month clamped to 11: %s", rec.Body.String())
	}
}

func TestMonthAPI_EmptyCellsEncodeEmptyEvents(t *testing.T) {
	h := testHandler(&mockSource{})
	c, rec := newContext(http.MethodGet, "/api/v1/calendar?year=1446&month=3", "")
	if err := h.MonthAPI(c); err != nil {
		t.Fatal(err)
	}
	body := rec.Body.String()
	if strings.Contains(body, `"events":null`) {
		t.Errorf("empty cells should encode events as []: %s", body)
	}
	if !strings.Contains(body, `"events":[]`) {
		t.Errorf("expected empty event lists: %s", body)
	}
}

func TestMonthAPI_RejectsNonInteger(t *testing.T) {
	h := testHandler(&mockSource{})
	c, _ := newContext(http.MethodGet, "/api/v1/calendar?year=1446&month=x", "")
	assertCode(t, h.MonthAPI(c), http.StatusUnprocessableEntity)
}

func TestCreateFromSelectionAPI(t *testing.T) {
	h := testHandler(&mockSource{})
	c, rec := newContext(http.MethodPost, "/api/v1/calendar/selection/miqaats",
		`{"keys":["1-0-1446","2-0-1446"],"name":"Majlis","phase":"day"}`)
	if err := h.CreateFromSelectionAPI(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"created":2`) {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestExportICS(t *testing.T) {
	h := testHandler(&mockSource{})

	c, rec := newContext(http.MethodGet, "/calendar/1446.ics", "")
	c.SetParamNames("file")
	c.SetParamValues("1446.ics")
	if err := h.ExportICS(c); err != nil {
		t.Fatal(err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("unexpected content type %q", ct)
	}

	c, _ = newContext(http.MethodGet, "/calendar/1446.txt", "")
	c.SetParamNames("file")
	c.SetParamValues("1446.txt")
	assertCode(t, h.ExportICS(c), http.StatusNotFound)
}
