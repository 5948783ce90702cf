package calendar

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/misri-labs/miqaat-admin/internal/apperror"
	"github.com/misri-labs/miqaat-admin/internal/hijri"
	"github.com/misri-labs/miqaat-admin/internal/plugins/miqaats"
)

// maxSelectionKeys bounds one bulk create; a kabisa year has 355 days.
const maxSelectionKeys = 400

// MiqaatSource is the slice of the miqaat service the calendar needs.
type MiqaatSource interface {
	Cached(ctx context.Context) ([]miqaats.Miqaat, error)
	CreateMany(ctx context.Context, actor, action string, items []miqaats.Miqaat) ([]miqaats.Miqaat, error)
}

// SelectionRequest creates one miqaat per distinct (day, month) of Keys.
type SelectionRequest struct {
	Keys        []string      `json:"keys"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Phase       miqaats.Phase `json:"phase"`
}

// Service builds calendars over the current miqaat list.
type Service interface {
	// Month returns the calendar for year and month with today marked.
	Month(ctx context.Context, year, month int) (Calendar, error)

	// Current returns the calendar for the month containing today.
	Current(ctx context.Context) (Calendar, error)

	// CreateFromSelection turns selected cells into miqaats. A day-phase
	// miqaat takes the cell's date as its day slot; a night-phase miqaat takes
	// the following date as its night slot, so it renders on the selected cell.
	CreateFromSelection(ctx context.Context, actor string, req SelectionRequest) ([]miqaats.Miqaat, error)

	// ExportYear renders every miqaat of a Hijri year as an iCalendar file.
	ExportYear(ctx context.Context, year int) (string, error)
}

type calendarService struct {
	source MiqaatSource
	now    func() time.Time
}

// NewService creates a calendar service. now defaults to time.Now.
func NewService(source MiqaatSource, now func() time.Time) Service {
	if now == nil {
		now = time.Now
	}
	return &calendarService{source: source, now: now}
}

func (s *calendarService) Month(ctx context.Context, year, month int) (Calendar, error) {
	ms, err := s.source.Cached(ctx)
	if err != nil {
		return New(year, month, nil).WithToday(s.now()), err
	}
	return New(year, month, ms).WithToday(s.now()), nil
}

func (s *calendarService) Current(ctx context.Context) (Calendar, error) {
	ms, err := s.source.Cached(ctx)
	if err != nil {
		return NewToday(s.now(), nil), err
	}
	return NewToday(s.now(), ms), nil
}

func (s *calendarService) CreateFromSelection(ctx context.Context, actor string, req SelectionRequest) ([]miqaats.Miqaat, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, apperror.NewValidation("name is required")
	}
	if len(req.Keys) == 0 {
		return nil, apperror.NewValidation("select at least one day")
	}
	if len(req.Keys) > maxSelectionKeys {
		return nil, apperror.NewValidation(fmt.Sprintf("at most %d days can be selected", maxSelectionKeys))
	}
	phase := req.Phase
	if phase == "" {
		phase = miqaats.PhaseDay
	}
	if phase != miqaats.PhaseDay && phase != miqaats.PhaseNight {
		return nil, apperror.NewValidation("phase must be day or night")
	}

	slots, err := distinctSlots(req.Keys, phase)
	if err != nil {
		return nil, err
	}

	items := make([]miqaats.Miqaat, 0, len(slots))
	for _, sl := range slots {
		m := miqaats.Miqaat{Name: req.Name, Description: req.Description, Phase: phase}
		day, month := sl.day, sl.month
		if phase == miqaats.PhaseNight {
			m.DateNight, m.MonthNight = &day, &month
		} else {
			m.Date, m.Month = &day, &month
		}
		items = append(items, m)
	}
	return s.source.CreateMany(ctx, actor, "created", items)
}

// distinctSlots parses keys and returns each (day, month) once, in calendar
// order. Night slots are shifted to the following date.
func distinctSlots(keys []string, phase miqaats.Phase) ([]slotKey, error) {
	seen := make(map[slotKey]bool, len(keys))
	var out []slotKey
	for _, key := range keys {
		d, err := hijri.ParseKey(key)
		if err != nil {
			return nil, apperror.NewValidation(err.Error())
		}
		if phase == miqaats.PhaseNight {
			d = d.Next()
		}
		k := slotKey{day: d.Day, month: d.Month}
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].month != out[j].month {
			return out[i].month < out[j].month
		}
		return out[i].day < out[j].day
	})
	return out, nil
}

func (s *calendarService) ExportYear(ctx context.Context, year int) (string, error) {
	if year < hijri.MinYear || year > hijri.MaxYear {
		return "", apperror.NewValidation(fmt.Sprintf("year must be between %d and %d", hijri.MinYear, hijri.MaxYear))
	}
	ms, err := s.source.Cached(ctx)
	if err != nil {
		return "", err
	}
	return YearICS(year, ms, s.now()), nil
}
