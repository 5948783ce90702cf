package audit

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"

	"github.com/a-h/templ"

	"github.com/misri-labs/miqaat-admin/internal/templates/layouts"
)

// ActivityPage renders one page of the activity feed.
func ActivityPage(entries []Entry, kind string, page, total int) templ.Component {
	return layouts.Page("Activity", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := layouts.NewHTML(w)
		if kind != "" {
			h.Raw(`<div class="toolbar">Showing `).Text(kind).Raw(` <a href="/admin/activity">Show all</a></div>`)
		}
		h.Raw(`<table><thead><tr><th>When</th><th>Who</th><th>Action</th><th>Record</th><th>Details</th></tr></thead><tbody>`)
		for _, e := range entries {
			h.Raw(`<tr><td>`).Text(e.CreatedAt.Format("2 Jan 2006 15:04")).Raw(`</td>`)
			h.Raw(`<td>`).Text(e.UserEmail).Raw(`</td>`)
			h.Raw(`<td`).Attr("class", "verb-"+e.Verb()).Raw(`>`).Text(e.Action).Raw(`</td><td>`)
			if e.EntityType != "" {
				h.Raw(`<a`).Attr("href", "/admin/activity?kind="+url.QueryEscape(e.EntityType)).Raw(`>`).Text(e.EntityType).Raw(`</a> `)
			}
			h.Text(e.EntityName).Raw(`</td>`)
			h.Raw(`<td class="muted">`).Text(formatDetails(e.Details)).Raw(`</td></tr>`)
		}
		if len(entries) == 0 {
			h.Raw(`<tr><td colspan="5" class="muted">No activity yet.</td></tr>`)
		}
		h.Raw(`</tbody></table>`)

		pages := (total + PerPage - 1) / PerPage
		if pages > 1 {
			h.Raw(`<div class="pager">`)
			if page > 1 {
				h.Raw(`<a`).Attr("href", activityLink(kind, page-1)).Raw(`>Newer</a>`)
			}
			h.Rawf(`<span class="muted">Page %d of %d</span>`, page, pages)
			if page < pages {
				h.Raw(`<a`).Attr("href", activityLink(kind, page+1)).Raw(`>Older</a>`)
			}
			h.Raw(`</div>`)
		}
		return h.Err()
	}))
}

func activityLink(kind string, page int) string {
	v := url.Values{"page": {strconv.Itoa(page)}}
	if kind != "" {
		v.Set("kind", kind)
	}
	return "/admin/activity?" + v.Encode()
}

// formatDetails renders details as "key: value" pairs in key order.
func formatDetails(details map[string]any) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += "; "
		}
		out += fmt.Sprintf("%s: %v", k, details[k])
	}
	return out
}
