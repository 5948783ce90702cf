// Package hijri implements the Misri (Fatimid) tabular Hijri calendar used by
// the miqaat calendar. Month lengths are fixed: even-indexed months have 30
// days, odd-indexed months 29, and the last month gains a day in kabisa
// (leap) years. Conversions to and from the Gregorian calendar go through the
// Julian Day Number.
package hijri

import (
	"fmt"
	"time"
)

// Valid year range. Dates outside it are clamped by Clamp.
const (
	MinYear = 1
	MaxYear = 9999
)

// MonthsPerYear is the number of months in a Hijri year.
const MonthsPerYear = 12

// epochJDN is the Julian Day Number of 1 Muharram 1 AH (Thursday, 15 July 622 Julian).
const epochJDN = 1948439

// daysPerCycle is the number of days in a 30-year cycle (19 * 354 + 11 * 355).
const daysPerCycle = 10631

// kabisaRemainders lists year%30 values that are kabisa years.
var kabisaRemainders = map[int]bool{
	2: true, 5: true, 8: true, 10: true, 13: true, 16: true,
	19: true, 21: true, 24: true, 27: true, 29: true,
}

// daysBeforeMonth is the cumulative day count preceding each month in any year.
var daysBeforeMonth = [MonthsPerYear]int{0, 30, 59, 89, 118, 148, 177, 207, 236, 266, 295, 325}

// MonthNames holds the long month names, zero-indexed.
var MonthNames = [MonthsPerYear]string{
	"Moharram al-Haraam",
	"Safar al-Muzaffar",
	"Rabi al-Awwal",
	"Rabi al-Aakhar",
	"Jumada al-Ula",
	"Jumada al-Ukhra",
	"Rajab al-Asab",
	"Shabaan al-Karim",
	"Ramadaan al-Moazzam",
	"Shawwal al-Mukarram",
	"Zilqadah al-Haraam",
	"Zilhaj al-Haraam",
}

// ShortMonthNames holds abbreviated month names, zero-indexed.
var ShortMonthNames = [MonthsPerYear]string{
	"Moharram", "Safar", "Rabi I", "Rabi II", "Jumada I", "Jumada II",
	"Rajab", "Shabaan", "Ramadaan", "Shawwal", "Zilqadah", "Zilhaj",
}

// Date is a day in the Hijri calendar. Month is zero-indexed (0 = Moharram).
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// IsKabisa reports whether year is a kabisa (355-day) year.
func IsKabisa(year int) bool {
	return kabisaRemainders[mod(year, 30)]
}

// DaysInMonth returns the length of a month. Out-of-range months return 0.
func DaysInMonth(year, month int) int {
	if month < 0 || month >= MonthsPerYear {
		return 0
	}
	if month%2 == 0 || (month == MonthsPerYear-1 && IsKabisa(year)) {
		return 30
	}
	return 29
}

// DaysInYear returns 355 for kabisa years and 354 otherwise.
func DaysInYear(year int) int {
	if IsKabisa(year) {
		return 355
	}
	return 354
}

// MonthName returns the long name of a zero-indexed month, or "" when out of range.
func MonthName(month int) string {
	if month < 0 || month >= MonthsPerYear {
		return ""
	}
	return MonthNames[month]
}

// ClampMonth forces month into 0..11.
func ClampMonth(month int) int {
	return min(max(month, 0), MonthsPerYear-1)
}

// ClampYear forces year into MinYear..MaxYear.
func ClampYear(year int) int {
	return min(max(year, MinYear), MaxYear)
}

// Clamp returns the nearest valid date: year and month are clamped into range
// and the day into 1..DaysInMonth.
func Clamp(d Date) Date {
	d.Year = ClampYear(d.Year)
	d.Month = ClampMonth(d.Month)
	d.Day = min(max(d.Day, 1), DaysInMonth(d.Year, d.Month))
	return d
}

// Valid reports whether d names a real day.
func (d Date) Valid() bool {
	return d.Year >= MinYear && d.Year <= MaxYear &&
		d.Month >= 0 && d.Month < MonthsPerYear &&
		d.Day >= 1 && d.Day <= DaysInMonth(d.Year, d.Month)
}

// DayOfYear returns the 1-based ordinal of d within its year.
func (d Date) DayOfYear() int {
	return daysBeforeMonth[ClampMonth(d.Month)] + d.Day
}

// JDN returns the Julian Day Number of d. Years before 1 are allowed so
// that grids around the epoch can show their leading days.
func (d Date) JDN() int {
	y := d.Year - 1
	rest := mod(y, 30)
	cycles := (y - rest) / 30
	days := cycles * daysPerCycle
	for i := 1; i <= rest; i++ {
		days += DaysInYear(cycles*30 + i)
	}
	return epochJDN + days + d.DayOfYear() - 1
}

// FromJDN converts a Julian Day Number to a Hijri date.
func FromJDN(jdn int) Date {
	days := jdn - epochJDN
	cycles := days / daysPerCycle
	if days < 0 && days%daysPerCycle != 0 {
		cycles--
	}
	days -= cycles * daysPerCycle

	year := cycles*30 + 1
	for days >= DaysInYear(year) {
		days -= DaysInYear(year)
		year++
	}

	month := 0
	for month < MonthsPerYear-1 && days >= DaysInMonth(year, month) {
		days -= DaysInMonth(year, month)
		month++
	}
	return Date{Year: year, Month: month, Day: days + 1}
}

// FromTime converts the calendar day of t (in t's location) to a Hijri date.
func FromTime(t time.Time) Date {
	return FromJDN(gregorianToJDN(t.Year(), int(t.Month()), t.Day()))
}

// Gregorian returns the Gregorian day corresponding to d, at midnight UTC.
func (d Date) Gregorian() time.Time {
	y, m, day := jdnToGregorian(d.JDN())
	return time.Date(y, time.Month(m), day, 0, 0, 0, 0, time.UTC)
}

// Weekday returns the day of the week of d.
func (d Date) Weekday() time.Weekday {
	return time.Weekday(mod(d.JDN()+1, 7))
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return FromJDN(d.JDN() + n)
}

// Next returns the following day.
func (d Date) Next() Date {
	if d.Day < DaysInMonth(d.Year, d.Month) {
		return Date{Year: d.Year, Month: d.Month, Day: d.Day + 1}
	}
	if d.Month < MonthsPerYear-1 {
		return Date{Year: d.Year, Month: d.Month + 1, Day: 1}
	}
	return Date{Year: d.Year + 1, Month: 0, Day: 1}
}

// Key returns the "day-month-year" selection key for d.
func (d Date) Key() string {
	return fmt.Sprintf("%d-%d-%d", d.Day, d.Month, d.Year)
}

// String formats d as "9 Moharram al-Haraam 1446".
func (d Date) String() string {
	return fmt.Sprintf("%d %s %d", d.Day, MonthName(d.Month), d.Year)
}

// ParseKey parses a "day-month-year" key produced by Key.
func ParseKey(key string) (Date, error) {
	var d Date
	if _, err := fmt.Sscanf(key, "%d-%d-%d", &d.Day, &d.Month, &d.Year); err != nil {
		return Date{}, fmt.Errorf("parsing date key %q: %w", key, err)
	}
	if !d.Valid() {
		return Date{}, fmt.Errorf("date key %q is not a valid date", key)
	}
	return d, nil
}

// gregorianToJDN converts a proleptic Gregorian date to a Julian Day Number.
func gregorianToJDN(year, month, day int) int {
	a := (14 - month) / 12
	y := year + 4800 - a
	m := month + 12*a - 3
	return day + (153*m+2)/5 + 365*y + y/4 - y/100 + y/400 - 32045
}

// jdnToGregorian converts a Julian Day Number to a proleptic Gregorian date.
func jdnToGregorian(jdn int) (year, month, day int) {
	a := jdn + 32044
	b := (4*a + 3) / 146097
	c := a - (146097*b)/4
	d := (4*c + 3) / 1461
	e := c - (1461*d)/4
	m := (5*e + 2) / 153

	day = e - (153*m+2)/5 + 1
	month = m + 3 - 12*(m/10)
	year = 100*b + d - 4800 + m/10
	return year, month, day
}

// mod is a modulo that is never negative for positive n.
func mod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}
