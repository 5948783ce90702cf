// Package calendar renders the admin month calendar: a Misri Hijri month grid
// with Gregorian labels and the miqaats that fall on each day or night.
//
// The date engine in this file is pure. A Calendar value is never mutated;
// navigation returns a new value so the header, toolbar and grid rendered
// from one value always agree.
package calendar

import (
	"fmt"
	"time"

	"github.com/misri-labs/miqaat-admin/internal/hijri"
	"github.com/misri-labs/miqaat-admin/internal/plugins/miqaats"
)

// Slot says which part of a day an occurrence falls in.
type Slot string

const (
	SlotDay   Slot = "day"
	SlotNight Slot = "night"
)

// Occurrence is one miqaat attached to a grid cell.
type Occurrence struct {
	Miqaat miqaats.Miqaat `json:"miqaat"`
	Slot   Slot           `json:"slot"`
}

// Day is one cell of the month grid.
type Day struct {
	Date           hijri.Date   `json:"date"`
	Gregorian      time.Time    `json:"gregorian"`
	GregorianLabel string       `json:"gregorian_label"`
	InMonth        bool         `json:"in_month"`
	IsToday        bool         `json:"is_today"`
	Key            string       `json:"key"`
	Events         []Occurrence `json:"events"`
}

// Calendar years are bounded only to keep the day arithmetic exact. Stored
// miqaat dates and selection keys still live in hijri.MinYear..hijri.MaxYear.
const (
	MinYear = -5000
	MaxYear = 1_000_000
)

// Calendar is the (year, month) being viewed plus the miqaats to overlay.
type Calendar struct {
	year    int
	month   int
	today   hijri.Date
	miqaats []miqaats.Miqaat
}

// New returns the calendar for year and month. Month is clamped into 0..11
// and year into MinYear..MaxYear.
func New(year, month int, ms []miqaats.Miqaat) Calendar {
	return Calendar{
		year:    clampYear(year),
		month:   hijri.ClampMonth(month),
		miqaats: ms,
	}
}

// NewToday returns the calendar for the Hijri month containing now, with
// today's cell marked.
func NewToday(now time.Time, ms []miqaats.Miqaat) Calendar {
	return New(0, 0, ms).Today(now)
}

// Year returns the Hijri year shown.
func (c Calendar) Year() int { return c.year }

// Month returns the zero-indexed Hijri month shown.
func (c Calendar) Month() int { return c.month }

// MonthName returns the long name of the month shown.
func (c Calendar) MonthName() string { return hijri.MonthName(c.month) }

// Title formats the header, e.g. "Moharram al-Haraam 1446".
func (c Calendar) Title() string {
	return fmt.Sprintf("%s %d", c.MonthName(), c.year)
}

// Today moves to the month containing now and marks now's cell.
func (c Calendar) Today(now time.Time) Calendar {
	d := hijri.Clamp(hijri.FromTime(now))
	c.year, c.month, c.today = d.Year, d.Month, d
	return c
}

// WithToday marks now's cell without moving.
func (c Calendar) WithToday(now time.Time) Calendar {
	c.today = hijri.FromTime(now)
	return c
}

// PreviousMonth steps back one month, rolling into month 11 of the previous
// year. It stays put at the first month of MinYear.
func (c Calendar) PreviousMonth() Calendar {
	switch {
	case c.month > 0:
		c.month--
	case c.year > MinYear:
		c.year--
		c.month = hijri.MonthsPerYear - 1
	}
	return c
}

// NextMonth steps forward one month, rolling into month 0 of the next year.
// It stays put at the last month of MaxYear.
func (c Calendar) NextMonth() Calendar {
	switch {
	case c.month < hijri.MonthsPerYear-1:
		c.month++
	case c.year < MaxYear:
		c.year++
		c.month = 0
	}
	return c
}

// PreviousYear steps back one year, keeping the month.
func (c Calendar) PreviousYear() Calendar {
	c.year = clampYear(c.year - 1)
	return c
}

// NextYear steps forward one year, keeping the month.
func (c Calendar) NextYear() Calendar {
	c.year = clampYear(c.year + 1)
	return c
}

func clampYear(year int) int {
	return min(max(year, MinYear), MaxYear)
}

// first returns the first day of the month shown.
func (c Calendar) first() hijri.Date {
	return hijri.Date{Year: c.year, Month: c.month, Day: 1}
}

// Days returns the month grid: whole Sunday-first weeks, starting with the
// leading days of the previous month and ending with the trailing days of
// the next. The result depends only on the calendar value.
func (c Calendar) Days() []Day {
	first := c.first()
	lead := int(first.Weekday())
	cells := gridCells(lead, hijri.DaysInMonth(c.year, c.month))

	index := indexMiqaats(c.miqaats)
	startJDN := first.JDN() - lead

	days := make([]Day, 0, cells)
	for i := 0; i < cells; i++ {
		d := hijri.FromJDN(startJDN + i)
		g := d.Gregorian()
		days = append(days, Day{
			Date:           d,
			Gregorian:      g,
			GregorianLabel: g.Format("2 Jan"),
			InMonth:        d.Year == c.year && d.Month == c.month,
			IsToday:        d == c.today,
			Key:            d.Key(),
			Events:         index.at(d),
		})
	}
	return days
}

// GregorianRange labels the Gregorian span of the month shown, e.g.
// "Jul - Aug 2024" or "Dec 2024 - Jan 2025".
func (c Calendar) GregorianRange() string {
	start := c.first().Gregorian()
	end := hijri.Date{Year: c.year, Month: c.month, Day: hijri.DaysInMonth(c.year, c.month)}.Gregorian()
	switch {
	case start.Year() != end.Year():
		return fmt.Sprintf("%s - %s", start.Format("Jan 2006"), end.Format("Jan 2006"))
	case start.Month() != end.Month():
		return fmt.Sprintf("%s - %s", start.Format("Jan"), end.Format("Jan 2006"))
	default:
		return start.Format("Jan 2006")
	}
}

// SelectMonth returns the selection key of every cell of Days(), in grid
// order, so selecting the whole month covers exactly what is on screen,
// padding days of the adjacent months included.
func (c Calendar) SelectMonth() []string {
	first := c.first()
	startJDN := first.JDN() - int(first.Weekday())
	cells := gridCells(int(first.Weekday()), hijri.DaysInMonth(c.year, c.month))
	keys := make([]string, 0, cells)
	for i := 0; i < cells; i++ {
		keys = append(keys, hijri.FromJDN(startJDN+i).Key())
	}
	return keys
}

// MonthKeys returns the selection key of every day of the month shown, in
// order, without padding cells.
func (c Calendar) MonthKeys() []string {
	length := hijri.DaysInMonth(c.year, c.month)
	keys := make([]string, 0, length)
	for day := 1; day <= length; day++ {
		keys = append(keys, hijri.Date{Year: c.year, Month: c.month, Day: day}.Key())
	}
	return keys
}

// SelectYear returns the selection key of every day of the year shown.
func (c Calendar) SelectYear() []string {
	keys := make([]string, 0, hijri.DaysInYear(c.year))
	for month := 0; month < hijri.MonthsPerYear; month++ {
		keys = append(keys, New(c.year, month, nil).MonthKeys()...)
	}
	return keys
}

// gridCells rounds lead plus length up to whole weeks.
func gridCells(lead, length int) int {
	return (lead + length + 6) / 7 * 7
}

// slotKey identifies a (day, month) pair independent of year.
type slotKey struct{ day, month int }

type miqaatIndex struct {
	byDay   map[slotKey][]miqaats.Miqaat
	byNight map[slotKey][]miqaats.Miqaat
}

func indexMiqaats(ms []miqaats.Miqaat) miqaatIndex {
	idx := miqaatIndex{
		byDay:   make(map[slotKey][]miqaats.Miqaat),
		byNight: make(map[slotKey][]miqaats.Miqaat),
	}
	for _, m := range ms {
		if day, month, ok := m.DaySlot(); ok {
			k := slotKey{day, month}
			idx.byDay[k] = append(idx.byDay[k], m)
		}
		if day, month, ok := m.NightSlot(); ok {
			k := slotKey{day, month}
			idx.byNight[k] = append(idx.byNight[k], m)
		}
	}
	return idx
}

// at returns the occurrences for the cell dated d. A cell carries the day
// slots dated d and the night slots dated the following day: the night of
// the 10th is the evening of the 9th. A cell without events gets an empty,
// non-nil slice so it encodes as [].
func (idx miqaatIndex) at(d hijri.Date) []Occurrence {
	out := []Occurrence{}
	for _, m := range idx.byDay[slotKey{d.Day, d.Month}] {
		out = append(out, Occurrence{Miqaat: m, Slot: SlotDay})
	}
	next := d.Next()
	for _, m := range idx.byNight[slotKey{next.Day, next.Month}] {
		out = append(out, Occurrence{Miqaat: m, Slot: SlotNight})
	}
	return out
}
