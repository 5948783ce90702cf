package calendar

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/misri-labs/miqaat-admin/internal/templates/layouts"
)

var weekdayNames = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// CalendarPage renders the header, toolbar and month grid. notice, when set,
// is shown above the grid.
func CalendarPage(cal Calendar, notice string) templ.Component {
	return layouts.Page("Calendar", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := layouts.NewHTML(w)
		if notice != "" {
			h.Raw(`<div class="flash error">`).Text(notice).Raw(`</div>`)
		}
		header(h, cal)
		toolbar(h, cal)
		grid(h, cal)
		selectionForm(h)
		return h.Err()
	}))
}

func monthLink(c Calendar) string {
	return fmt.Sprintf("/admin/calendar?year=%d&month=%d", c.Year(), c.Month())
}

func header(h *layouts.HTML, cal Calendar) {
	h.Raw(`<h2>`).Text(cal.Title()).Raw(` <span class="muted">`).Text(cal.GregorianRange()).Raw(`</span></h2>`)
}

func toolbar(h *layouts.HTML, cal Calendar) {
	h.Raw(`<div class="toolbar">`)
	h.Raw(`<a`).Attr("href", monthLink(cal.PreviousYear())).Raw(` title="Previous year">&laquo;</a>`)
	h.Raw(`<a`).Attr("href", monthLink(cal.PreviousMonth())).Raw(` title="Previous month">&lsaquo;</a>`)
	h.Raw(`<a href="/admin/calendar">Today</a>`)
	h.Raw(`<a`).Attr("href", monthLink(cal.NextMonth())).Raw(` title="Next month">&rsaquo;</a>`)
	h.Raw(`<a`).Attr("href", monthLink(cal.NextYear())).Raw(` title="Next year">&raquo;</a>`)
	h.Raw(`<button type="button" data-select-scope="month">Select month</button>`)
	h.Raw(`<button type="button" data-select-scope="days">Select days</button>`)
	h.Raw(`<button type="button" data-select-scope="year">Select year</button>`)
	h.Raw(`<a`).Attr("href", "/calendar/"+strconv.Itoa(cal.Year())+".ics").Raw(`>Export `).Text(strconv.Itoa(cal.Year())).Raw(`</a>`)
	h.Raw(`</div>`)
}

// grid renders whole weeks starting on Sunday. Each cell carries its
// selection key for the script in the layout.
func grid(h *layouts.HTML, cal Calendar) {
	h.Raw(`<div class="cal" data-selectable`).
		Attr("data-year", strconv.Itoa(cal.Year())).
		Attr("data-month", strconv.Itoa(cal.Month())).Raw(`>`)
	for _, name := range weekdayNames {
		h.Raw(`<div class="head">`).Text(name).Raw(`</div>`)
	}
	for _, d := range cal.Days() {
		class := "day"
		// Padding cells belong to the neighbouring months and render dimmed.
		if !d.InMonth {
			class += " out"
		}
		if d.IsToday {
			class += " today"
		}
		h.Raw(`<div`).Attr("class", class).Attr("data-day-key", d.Key).Raw(`>`)
		h.Rawf(`<strong>%d</strong> <span class="muted">%s</span>`, d.Date.Day, d.GregorianLabel)
		for _, ev := range d.Events {
			h.Raw(`<div`).Attr("class", "ev "+string(ev.Slot)).Attr("title", ev.Miqaat.Description).Raw(`>`)
			h.Text(ev.Miqaat.Name).Raw(`</div>`)
		}
		h.Raw(`</div>`)
	}
	h.Raw(`</div>`)
}

func selectionForm(h *layouts.HTML) {
	h.Raw(`<form class="toolbar" data-selection-form method="post" action="/api/v1/calendar/selection/miqaats">`)
	h.Raw(`<input name="name" placeholder="Miqaat name" required>`)
	h.Raw(`<select name="phase"><option value="day">Day</option><option value="night">Night</option></select>`)
	h.Raw(`<button type="submit">Add to selected days</button></form>`)
}
