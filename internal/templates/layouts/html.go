package layouts

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// HTML accumulates markup on w and remembers the first write error, so view
// code can emit a page without checking every call.
type HTML struct {
	w   io.Writer
	err error
}

// NewHTML wraps w.
func NewHTML(w io.Writer) *HTML {
	return &HTML{w: w}
}

// Raw writes trusted markup verbatim.
func (h *HTML) Raw(s string) *HTML {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
	return h
}

// Text writes s HTML-escaped.
func (h *HTML) Text(s string) *HTML {
	return h.Raw(templ.EscapeString(s))
}

// Rawf formats trusted markup. String arguments are escaped; use Raw for
// markup arguments.
func (h *HTML) Rawf(format string, args ...any) *HTML {
	escaped := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case string:
			escaped[i] = templ.EscapeString(v)
		case fmt.Stringer:
			escaped[i] = templ.EscapeString(v.String())
		default:
			escaped[i] = a
		}
	}
	return h.Raw(fmt.Sprintf(format, escaped...))
}

// Attr writes ` name="value"` with value escaped.
func (h *HTML) Attr(name, value string) *HTML {
	return h.Raw(" " + name + `="` + templ.EscapeString(value) + `"`)
}

// Component renders c in place.
func (h *HTML) Component(ctx context.Context, c templ.Component) *HTML {
	if h.err == nil && c != nil {
		h.err = c.Render(ctx, h.w)
	}
	return h
}

// Err returns the first write error.
func (h *HTML) Err() error {
	return h.err
}
