package auth

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/misri-labs/miqaat-admin/internal/templates/layouts"
)

// LoginView renders the sign-in page with an optional error message.
func LoginView(errMsg string) templ.Component {
	return layouts.Bare("Sign in", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := layouts.NewHTML(w)
		if errMsg != "" {
			h.Raw(`<div class="flash error">`).Text(errMsg).Raw(`</div>`)
		}
		h.Raw(`<p class="muted">Only approved administrators can sign in.</p>`)
		h.Raw(`<p><a class="button" href="/auth/google">Sign in with Google</a></p>`)
		return h.Err()
	}))
}
