// Package layouts renders the page shell shared by every admin screen and
// carries the per-request data the shell needs. Handlers never set these
// values directly: the layout injector registered in internal/app copies
// them from the Echo context into the render context.
package layouts

import "context"

type ctxKey string

const (
	keyIsAuthenticated ctxKey = "layout_is_authenticated"
	keyUserName        ctxKey = "layout_user_name"
	keyUserEmail       ctxKey = "layout_user_email"
	keyUserPicture     ctxKey = "layout_user_picture"
	keyCSRFToken       ctxKey = "layout_csrf_token"
	keyActivePath      ctxKey = "layout_active_path"
	keyTheme           ctxKey = "layout_theme"
	keyFlash           ctxKey = "layout_flash"
)

// Flash is a one-shot message shown above the page body.
type Flash struct {
	Kind    string // "success" or "error"
	Message string
}

// User is the signed-in admin as the shell displays them.
type User struct {
	Name    string
	Email   string
	Picture string
}

// WithUser marks the request authenticated and stores the admin's identity.
func WithUser(ctx context.Context, u User) context.Context {
	ctx = context.WithValue(ctx, keyIsAuthenticated, true)
	ctx = context.WithValue(ctx, keyUserName, u.Name)
	ctx = context.WithValue(ctx, keyUserEmail, u.Email)
	return context.WithValue(ctx, keyUserPicture, u.Picture)
}

func WithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, keyCSRFToken, token)
}

func WithActivePath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, keyActivePath, path)
}

// WithTheme stores the UI theme ("light" or "dark").
func WithTheme(ctx context.Context, theme string) context.Context {
	return context.WithValue(ctx, keyTheme, theme)
}

func WithFlash(ctx context.Context, f Flash) context.Context {
	return context.WithValue(ctx, keyFlash, f)
}

func IsAuthenticated(ctx context.Context) bool {
	v, _ := ctx.Value(keyIsAuthenticated).(bool)
	return v
}

func UserName(ctx context.Context) string {
	v, _ := ctx.Value(keyUserName).(string)
	return v
}

func UserEmail(ctx context.Context) string {
	v, _ := ctx.Value(keyUserEmail).(string)
	return v
}

func UserPicture(ctx context.Context) string {
	v, _ := ctx.Value(keyUserPicture).(string)
	return v
}

func CSRFToken(ctx context.Context) string {
	v, _ := ctx.Value(keyCSRFToken).(string)
	return v
}

func ActivePath(ctx context.Context) string {
	v, _ := ctx.Value(keyActivePath).(string)
	return v
}

// Theme returns the UI theme, defaulting to "light".
func Theme(ctx context.Context) string {
	if v, _ := ctx.Value(keyTheme).(string); v == "dark" {
		return v
	}
	return "light"
}

func GetFlash(ctx context.Context) (Flash, bool) {
	f, ok := ctx.Value(keyFlash).(Flash)
	return f, ok && f.Message != ""
}
