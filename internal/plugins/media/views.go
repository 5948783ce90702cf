package media

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	"github.com/misri-labs/miqaat-admin/internal/templates/layouts"
)

// LibraryPage renders the upload form and a grid of stored files.
func LibraryPage(files []FileView, search string, page, total int, maxSize int64) templ.Component {
	return layouts.Page("Media", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := layouts.NewHTML(w)

		h.Raw(`<form class="toolbar" method="get"><input type="search" name="q" placeholder="Search by name"`).
			Attr("value", search).Raw(`><button type="submit">Search</button>`)
		h.Rawf(`<span class="muted">%d files</span></form>`, total)

		h.Raw(`<form class="upload" data-upload="/api/v1/media" data-exists="/api/v1/media/exists" enctype="multipart/form-data">`)
		h.Raw(`<input type="file" name="file" required accept="image/*,audio/*,application/pdf">`)
		h.Raw(`<input type="text" name="name" placeholder="Name (defaults to file name)">`)
		h.Rawf(`<button type="submit">Upload</button><span class="muted">Up to %s</span>`, humanSize(maxSize))
		h.Raw(`<span class="upload-status" aria-live="polite"></span></form>`)

		h.Raw(`<ul class="media-grid">`)
		for _, f := range files {
			h.Raw(`<li`).Attr("data-id", f.ID).Raw(`>`)
			switch {
			case f.ThumbnailURL != "":
				h.Raw(`<img loading="lazy"`).Attr("src", f.ThumbnailURL).Attr("alt", f.Name).Raw(`>`)
			case f.IsImage():
				h.Raw(`<img loading="lazy"`).Attr("src", f.URL).Attr("alt", f.Name).Raw(`>`)
			default:
				h.Raw(`<span class="file-icon">`).Text(f.MimeType).Raw(`</span>`)
			}
			h.Raw(`<a`).Attr("href", f.URL).Raw(` target="_blank" rel="noopener">`).Text(f.Name).Raw(`</a>`)
			h.Raw(`<span class="muted">`).Text(humanSize(f.SizeBytes)).Raw(`</span>`)
			h.Raw(`<button type="button" data-delete`).Attr("data-url", "/api/v1/media/"+f.ID).Raw(`>Delete</button></li>`)
		}
		h.Raw(`</ul>`)
		if len(files) == 0 {
			h.Raw(`<p class="muted">No files yet.</p>`)
		}

		pages := (total + PerPage - 1) / PerPage
		if pages > 1 {
			h.Raw(`<div class="pager">`)
			if page > 1 {
				h.Raw(`<a`).Attr("href", libraryLink(search, page-1)).Raw(`>Previous</a>`)
			}
			h.Rawf(`<span class="muted">Page %d of %d</span>`, page, pages)
			if page < pages {
				h.Raw(`<a`).Attr("href", libraryLink(search, page+1)).Raw(`>Next</a>`)
			}
			h.Raw(`</div>`)
		}
		return h.Err()
	}))
}

func libraryLink(search string, page int) string {
	v := url.Values{}
	if search != "" {
		v.Set("q", search)
	}
	v.Set("page", strconv.Itoa(page))
	return "?" + v.Encode()
}

// humanSize formats a byte count, e.g. "1.5 MB".
func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
