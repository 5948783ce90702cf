package calendar

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/misri-labs/miqaat-admin/internal/hijri"
	"github.com/misri-labs/miqaat-admin/internal/plugins/miqaats"
)

// YearICS renders the miqaats of one Hijri year as all-day iCalendar events.
// A night slot is exported on the Gregorian day whose evening it falls on,
// which is the day before its Hijri date. Slots that do not exist in the
// year, such as the 30th of the last month in a common year, are skipped.
func YearICS(year int, ms []miqaats.Miqaat, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//Miqaat Admin//Calendar//EN")
	cal.SetXWRCalName(fmt.Sprintf("Miqaats %d", year))

	stamp := now.UTC()
	for _, m := range ms {
		if day, month, ok := m.DaySlot(); ok {
			d := hijri.Date{Year: year, Month: month, Day: day}
			if d.Valid() {
				addEvent(cal, m, d, d.Gregorian(), SlotDay, stamp)
			}
		}
		if day, month, ok := m.NightSlot(); ok {
			d := hijri.Date{Year: year, Month: month, Day: day}
			if d.Valid() {
				addEvent(cal, m, d, d.Gregorian().AddDate(0, 0, -1), SlotNight, stamp)
			}
		}
	}
	return cal.Serialize()
}

func addEvent(cal *ics.Calendar, m miqaats.Miqaat, d hijri.Date, on time.Time, slot Slot, stamp time.Time) {
	ev := cal.AddEvent(fmt.Sprintf("%s-%s-%d@miqaat-admin", m.ID, slot, d.Year))
	ev.SetDtStampTime(stamp)
	ev.SetAllDayStartAt(on)
	ev.SetAllDayEndAt(on.AddDate(0, 0, 1))

	summary := m.Name
	if slot == SlotNight {
		summary = "Night of " + m.Name
	}
	ev.SetSummary(summary)

	desc := d.String()
	if m.Description != "" {
		desc = m.Description + "\n" + desc
	}
	ev.SetDescription(desc)
}
