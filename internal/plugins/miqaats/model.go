// Package miqaats manages the calendar occasions ("miqaats") shown on the
// admin calendar. A miqaat recurs every Hijri year on a day slot, a night
// slot, or both. Storage and CRUD come from the shared records layer; this
// package adds the slot rules, a Redis cache of the full list, and bulk
// import from YAML or JSON.
package miqaats

import (
	"github.com/misri-labs/miqaat-admin/internal/records"
)

// Phase says whether an occasion is primarily observed by day or by night.
type Phase string

const (
	PhaseDay   Phase = "day"
	PhaseNight Phase = "night"
)

// Miqaat is one annual occasion. Months are zero-indexed (0 = Moharram).
// The night slot names the Hijri date the night belongs to: the night of
// the 10th falls on the evening of the 9th.
type Miqaat struct {
	records.Base

	Name        string  `json:"name" yaml:"name" validate:"required,max=255"`
	Description string  `json:"description" yaml:"description" validate:"max=5000"`
	Date        *int    `json:"date" yaml:"date" validate:"omitempty,min=1,max=30"`
	Month       *int    `json:"month" yaml:"month" validate:"omitempty,min=0,max=11"`
	DateNight   *int    `json:"date_night" yaml:"date_night" validate:"omitempty,min=1,max=30"`
	MonthNight  *int    `json:"month_night" yaml:"month_night" validate:"omitempty,min=0,max=11"`
	Phase       Phase   `json:"phase" yaml:"phase" validate:"required,oneof=day night"`
	LocationID  *string `json:"location_id" yaml:"location_id" validate:"omitempty,uuid"`
}

// DaySlot returns the (day, month) the occasion occupies by day.
func (m *Miqaat) DaySlot() (day, month int, ok bool) {
	if m.Date == nil || m.Month == nil {
		return 0, 0, false
	}
	return *m.Date, *m.Month, true
}

// NightSlot returns the (day, month) whose night the occasion occupies.
func (m *Miqaat) NightSlot() (day, month int, ok bool) {
	if m.DateNight == nil || m.MonthNight == nil {
		return 0, 0, false
	}
	return *m.DateNight, *m.MonthNight, true
}
