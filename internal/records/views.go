package records

import (
	"context"
	"io"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	"github.com/misri-labs/miqaat-admin/internal/templates/layouts"
)

// SheetPage renders a page of records as an editable grid. Editable cells
// post their changes to PATCH /api/v1/<kind>/cells as they are changed.
func SheetPage[T any](schema *Schema[T], page *Page[T], opts ListOptions) templ.Component {
	return layouts.Page(schema.Title, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := layouts.NewHTML(w)
		cols := schema.VisibleColumns()

		h.Raw(`<form class="toolbar" method="get">`)
		h.Raw(`<input type="search" name="q" placeholder="Search"`).Attr("value", opts.Search).Raw(`>`)
		for _, c := range cols {
			if c.Filterable && c.Kind == KindEnum {
				h.Raw(`<select`).Attr("name", c.Name).Raw(`><option value="">All `).Text(c.Label).Raw(`</option>`)
				for _, o := range c.Options {
					h.Raw(`<option`).Attr("value", o)
					if opts.Filters[c.Name] == o {
						h.Raw(` selected`)
					}
					h.Raw(`>`).Text(o).Raw(`</option>`)
				}
				h.Raw(`</select>`)
			}
		}
		h.Raw(`<button type="submit">Filter</button>`)
		h.Rawf(`<span class="muted">%d %s</span></form>`, page.Total, schema.Kind)

		h.Raw(`<table data-sheet="/api/v1/`).Text(schema.Kind).Raw(`/cells"><thead><tr>`)
		for _, c := range cols {
			h.Raw(`<th>`)
			if c.Sortable {
				h.Raw(`<a`).Attr("href", sortLink(opts, c.Name)).Raw(`>`).Text(c.Label).Raw(`</a>`)
			} else {
				h.Text(c.Label)
			}
			h.Raw(`</th>`)
		}
		h.Raw(`</tr></thead><tbody>`)

		for i := range page.Items {
			rec := &page.Items[i]
			id := schema.Base(rec).ID
			h.Raw(`<tr>`)
			for _, c := range cols {
				value := schema.Display(rec, c.Name)
				if !c.Editable {
					h.Raw(`<td>`).Text(value).Raw(`</td>`)
					continue
				}
				h.Raw(`<td data-cell`).Attr("data-id", id).Attr("data-column", c.Name).Raw(`>`)
				cellInput(h, c, value)
				h.Raw(`</td>`)
			}
			h.Raw(`</tr>`)
		}
		if len(page.Items) == 0 {
			h.Rawf(`<tr><td colspan="%d" class="muted">Nothing here yet.</td></tr>`, len(cols))
		}
		h.Raw(`</tbody></table>`)

		pager(h, opts, page.TotalPages())
		return h.Err()
	}))
}

func cellInput(h *layouts.HTML, c Column, value string) {
	switch c.Kind {
	case KindEnum:
		h.Raw(`<select>`)
		for _, o := range c.Options {
			h.Raw(`<option`).Attr("value", o)
			if o == value {
				h.Raw(` selected`)
			}
			h.Raw(`>`).Text(o).Raw(`</option>`)
		}
		h.Raw(`</select>`)
	case KindInt, KindFloat:
		h.Raw(`<input type="number" step="any"`).Attr("value", value).Raw(`>`)
	case KindLongText:
		h.Raw(`<textarea rows="2">`).Text(value).Raw(`</textarea>`)
	default:
		h.Raw(`<input type="text"`).Attr("value", value).Raw(`>`)
	}
}

func pager(h *layouts.HTML, opts ListOptions, totalPages int) {
	if totalPages <= 1 {
		return
	}
	h.Raw(`<div class="pager">`)
	if opts.Page > 1 {
		h.Raw(`<a`).Attr("href", pageLink(opts, opts.Page-1)).Raw(`>Previous</a>`)
	}
	h.Rawf(`<span class="muted">Page %d of %d</span>`, opts.Page, totalPages)
	if opts.Page < totalPages {
		h.Raw(`<a`).Attr("href", pageLink(opts, opts.Page+1)).Raw(`>Next</a>`)
	}
	h.Raw(`</div>`)
}

func query(opts ListOptions) url.Values {
	v := url.Values{}
	if opts.Search != "" {
		v.Set("q", opts.Search)
	}
	for k, f := range opts.Filters {
		v.Set(k, f)
	}
	if opts.Sort != "" {
		v.Set("sort", opts.Sort)
		if opts.Desc {
			v.Set("dir", "desc")
		}
	}
	if opts.PerPage != DefaultPerPage {
		v.Set("per_page", strconv.Itoa(opts.PerPage))
	}
	return v
}

func pageLink(opts ListOptions, page int) string {
	v := query(opts)
	v.Set("page", strconv.Itoa(page))
	return "?" + v.Encode()
}

// sortLink toggles direction when col is already the sort column.
func sortLink(opts ListOptions, col string) string {
	opts.Desc = opts.Sort == col && !opts.Desc
	opts.Sort = col
	return "?" + query(opts).Encode()
}
