package miqaats

import (
	"fmt"
	"strings"

	"github.com/misri-labs/miqaat-admin/internal/hijri"
	"github.com/misri-labs/miqaat-admin/internal/records"
)

// Schema maps Miqaat onto the miqaats table.
var Schema = &records.Schema[Miqaat]{
	Kind:     "miqaats",
	Table:    "miqaats",
	Title:    "Miqaats",
	Singular: "miqaat",
	// Column names match the table; date/month hold the day slot and
	// date_night/month_night the night slot.
	Columns: []records.Column{
		{Name: "name", Label: "Name", Kind: records.KindText, Searchable: true, Sortable: true, Editable: true},
		{Name: "description", Label: "Description", Kind: records.KindLongText, Searchable: true, Editable: true},
		{Name: "date", Label: "Day", Kind: records.KindInt, Filterable: true, Editable: true},
		{Name: "month", Label: "Month", Kind: records.KindInt, Filterable: true, Sortable: true, Editable: true},
		{Name: "date_night", Label: "Night day", Kind: records.KindInt, Editable: true},
		{Name: "month_night", Label: "Night month", Kind: records.KindInt, Filterable: true, Editable: true},
		{Name: "phase", Label: "Phase", Kind: records.KindEnum, Options: []string{"day", "night"}, Filterable: true, Editable: true},
		{Name: "location_id", Label: "Location", Kind: records.KindText, Filterable: true, Editable: true},
	},
	DefaultSort: "month",
	Base:        func(m *Miqaat) *records.Base { return &m.Base },
	Fields: func(m *Miqaat) []any {
		return []any{&m.Name, &m.Description, &m.Date, &m.Month, &m.DateNight, &m.MonthNight, &m.Phase, &m.LocationID}
	},
	Name:      func(m *Miqaat) string { return m.Name },
	Normalize: normalize,
	Check:     check,
}

// normalize trims text and infers the phase from the slots when it is
// left blank.
func normalize(m *Miqaat) {
	m.Name = strings.TrimSpace(m.Name)
	m.Description = strings.TrimSpace(m.Description)
	m.Phase = Phase(strings.ToLower(strings.TrimSpace(string(m.Phase))))
	if m.Phase == "" {
		m.Phase = PhaseDay
		if _, _, hasDay := m.DaySlot(); !hasDay {
			m.Phase = PhaseNight
		}
	}
	// An empty sheet cell clears the location.
	if m.LocationID != nil && strings.TrimSpace(*m.LocationID) == "" {
		m.LocationID = nil
	}
}

// maxDay is the longest the month can be in any year. Miqaats recur every
// year, so the 30th of Zilhaj is accepted even though most years lack it.
func maxDay(month int) int {
	return max(hijri.DaysInMonth(1, month), hijri.DaysInMonth(2, month))
}

// check enforces the slot rules struct tags cannot express.
func check(m *Miqaat) error {
	if (m.Date == nil) != (m.Month == nil) {
		return fmt.Errorf("day and month must be set together")
	}
	if (m.DateNight == nil) != (m.MonthNight == nil) {
		return fmt.Errorf("night day and night month must be set together")
	}
	day, month, hasDay := m.DaySlot()
	nightDay, nightMonth, hasNight := m.NightSlot()
	if !hasDay && !hasNight {
		return fmt.Errorf("a day slot or a night slot is required")
	}
	if hasDay && day > maxDay(month) {
		return fmt.Errorf("%s has at most %d days", hijri.MonthName(month), maxDay(month))
	}
	if hasNight && nightDay > maxDay(nightMonth) {
		return fmt.Errorf("%s has at most %d days", hijri.MonthName(nightMonth), maxDay(nightMonth))
	}
	if m.Phase == PhaseDay && !hasDay {
		return fmt.Errorf("a day-phase miqaat needs a day slot")
	}
	if m.Phase == PhaseNight && !hasNight {
		return fmt.Errorf("a night-phase miqaat needs a night slot")
	}
	return nil
}
