// Package app is the application bootstrap and dependency injection root.
// It holds the shared infrastructure (DB pool, Redis client, Echo instance)
// and wires every plugin together.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/misri-labs/miqaat-admin/internal/apperror"
	"github.com/misri-labs/miqaat-admin/internal/config"
	"github.com/misri-labs/miqaat-admin/internal/jobs"
	"github.com/misri-labs/miqaat-admin/internal/middleware"
	"github.com/misri-labs/miqaat-admin/internal/plugins/auth"
	"github.com/misri-labs/miqaat-admin/internal/templates/layouts"
	"github.com/misri-labs/miqaat-admin/internal/templates/pages"
)

// App holds all shared dependencies and the Echo HTTP server instance.
type App struct {
	Config *config.Config

	// DB is the MariaDB pool shared by all plugins.
	DB *sql.DB

	// Redis holds sessions, OAuth state and the miqaat cache.
	Redis *redis.Client

	Echo *echo.Echo

	// Jobs is set by RegisterRoutes.
	Jobs *jobs.Scheduler

	limiters []*middleware.RateLimiter
}

// New creates the App and configures global middleware and error handling.
func New(cfg *config.Config, db *sql.DB, rdb *redis.Client) *App {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// c.RealIP() must see the client, not the reverse proxy, for rate
	// limiting and request logs.
	middleware.TrustedProxies(e, cfg.TrustedProxies)

	a := &App{Config: cfg, DB: db, Redis: rdb, Echo: e}
	a.setupMiddleware()
	e.HTTPErrorHandler = a.errorHandler
	return a
}

// setupMiddleware registers global middleware. Recovery is outermost so it
// catches panics from everything after it.
func (a *App) setupMiddleware() {
	a.Echo.Use(middleware.Recovery())
	a.Echo.Use(middleware.RequestLogger())
	a.Echo.Use(middleware.SecurityHeaders(mediaOrigin(a.Config.Storage.S3PublicURL)))
	a.Echo.Use(middleware.CSRF())
	a.Echo.Use(middleware.InjectLayout(a.layoutData))
}

// layoutData carries the shell's per-request data into the render context.
// Session data is only present on routes behind RequireAuth.
func (a *App) layoutData(c echo.Context, ctx context.Context) context.Context {
	ctx = layouts.WithTheme(ctx, a.Config.Theme)
	ctx = layouts.WithCSRFToken(ctx, middleware.GetCSRFToken(c))
	ctx = layouts.WithActivePath(ctx, c.Request().URL.Path)
	if s := auth.GetSession(c); s != nil {
		ctx = layouts.WithUser(ctx, layouts.User{Name: s.Name, Email: s.Email, Picture: s.Picture})
	}
	return ctx
}

// newLimiter creates a rate limiter whose sweeper is started by Run.
func (a *App) newLimiter(max int, window time.Duration) *middleware.RateLimiter {
	l := middleware.NewRateLimiter(max, window)
	a.limiters = append(a.limiters, l)
	return l
}

// Run starts background work (rate limiter sweeps, cron jobs) until ctx is
// done.
func (a *App) Run(ctx context.Context) {
	for _, l := range a.limiters {
		go l.Run(ctx)
	}
	if a.Jobs != nil {
		a.Jobs.Start()
	}
}

// errorHandler maps errors to responses: JSON for the API, a redirect to the
// sign-in page for browser 401s, and an error page otherwise. HTMX requests
// get the error page swapped into the body instead of a fragment target.
func (a *App) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := defaultErrorMessage(code)
	var fields map[string]string

	var appErr *apperror.AppError
	var echoErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		code = appErr.Code
		message = apperror.SafeMessage(err)
		fields = appErr.Fields
		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
			)
		}
	case errors.As(err, &echoErr):
		code = echoErr.Code
		if msg, ok := echoErr.Message.(string); ok {
			message = msg
		} else {
			message = defaultErrorMessage(code)
		}
	default:
		slog.Error("unhandled error",
			slog.Any("error", err),
			slog.String("path", c.Request().URL.Path),
		)
	}

	if isAPIRequest(c) {
		body := map[string]any{"error": http.StatusText(code), "message": message}
		if len(fields) > 0 {
			body["fields"] = fields
		}
		_ = c.JSON(code, body)
		return
	}

	if middleware.IsHTMX(c) {
		if code == http.StatusUnauthorized {
			c.Response().Header().Set("HX-Redirect", "/login")
			_ = c.NoContent(http.StatusNoContent)
			return
		}
		c.Response().Header().Set("HX-Retarget", "body")
		c.Response().Header().Set("HX-Reswap", "innerHTML")
	}

	if code == http.StatusUnauthorized {
		_ = c.Redirect(http.StatusSeeOther, "/login")
		return
	}

	if err := middleware.Render(c, code, pages.ErrorPage(code, message)); err != nil {
		slog.Error("failed to render error page", slog.Any("error", err))
	}
}

// defaultErrorMessage returns a user-facing message for a status code when
// the error carried none.
func defaultErrorMessage(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "The request was invalid or cannot be processed."
	case http.StatusUnauthorized:
		return "You need to sign in to access this page."
	case http.StatusForbidden:
		return "You don't have permission to access this resource."
	case http.StatusNotFound:
		return "The page you're looking for doesn't exist."
	case http.StatusMethodNotAllowed:
		return "This action is not allowed."
	case http.StatusRequestEntityTooLarge:
		return "The upload is too large."
	case http.StatusTooManyRequests:
		return "You're making too many requests. Please slow down."
	default:
		return "Something went wrong on our end. Please try again."
	}
}

func isAPIRequest(c echo.Context) bool {
	return strings.HasPrefix(c.Request().URL.Path, "/api/")
}

// mediaOrigin returns the scheme and host of the public media URL, or ""
// when media is served from this origin.
func mediaOrigin(publicURL string) string {
	if publicURL == "" {
		return ""
	}
	u, err := url.Parse(publicURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// Start listens on the configured port until Shutdown.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting miqaat admin server",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
	)
	return a.Echo.Start(addr)
}

// Shutdown drains in-flight requests and waits for running jobs.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Echo.Shutdown(ctx)
	if a.Jobs != nil {
		a.Jobs.Stop(ctx)
	}
	return err
}
