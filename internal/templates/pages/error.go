// Package pages holds full-page views that belong to no plugin.
package pages

import (
	"context"
	"io"
	"net/http"

	"github.com/a-h/templ"

	"github.com/misri-labs/miqaat-admin/internal/templates/layouts"
)

// ErrorPage renders an error with its status code. Signed-in admins keep
// the navigation.
func ErrorPage(code int, message string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := layouts.NewHTML(w)
		h.Raw(`<p>`).Text(message).Raw(`</p>`)
		h.Rawf(`<p class="muted">Error %d</p>`, code)
		h.Raw(`<p><a href="/admin/calendar">Back to the calendar</a></p>`)
		return h.Err()
	})
	title := http.StatusText(code)
	if title == "" {
		title = "Error"
	}
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if layouts.IsAuthenticated(ctx) {
			return layouts.Page(title, body).Render(ctx, w)
		}
		return layouts.Bare(title, body).Render(ctx, w)
	})
}
