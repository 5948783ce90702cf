package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/misri-labs/miqaat-admin/internal/config"
	"github.com/misri-labs/miqaat-admin/internal/jobs"
	"github.com/misri-labs/miqaat-admin/internal/plugins/audit"
	"github.com/misri-labs/miqaat-admin/internal/plugins/auth"
	"github.com/misri-labs/miqaat-admin/internal/plugins/calendar"
	"github.com/misri-labs/miqaat-admin/internal/plugins/library"
	"github.com/misri-labs/miqaat-admin/internal/plugins/locations"
	"github.com/misri-labs/miqaat-admin/internal/plugins/media"
	"github.com/misri-labs/miqaat-admin/internal/plugins/miqaats"
	"github.com/misri-labs/miqaat-admin/internal/plugins/shrines"
	"github.com/misri-labs/miqaat-admin/internal/plugins/texts"
	"github.com/misri-labs/miqaat-admin/internal/records"
)

// RegisterRoutes builds every plugin and mounts its routes. This is the
// single place plugins are wired together.
func (a *App) RegisterRoutes(ctx context.Context) error {
	e := a.Echo
	cfg := a.Config

	e.GET("/healthz", a.healthz)

	// --- Auth (public) ---
	authService := auth.NewAuthService(identityProvider(cfg), a.Redis, auth.Whitelist{
		Emails: adminEmails(cfg),
		Domain: cfg.Auth.AdminDomain,
	}, cfg.Auth.SessionTTL)
	authHandler := auth.NewHandler(authService, cfg.Auth.SessionTTL, !cfg.IsDevelopment())
	auth.RegisterRoutes(e, authHandler, a.newLimiter(10, time.Minute))

	requireAuth := auth.RequireAuth(authService)
	admin := e.Group("/admin", requireAuth)
	api := e.Group("/api/v1", requireAuth)

	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusSeeOther, "/admin/calendar")
	})
	admin.GET("", func(c echo.Context) error {
		return c.Redirect(http.StatusSeeOther, "/admin/calendar")
	})

	// --- Activity log ---
	auditService := audit.NewService(audit.NewRepository(a.DB))
	audit.RegisterRoutes(admin, api, audit.NewHandler(auditService))

	opts := records.Options{Auditor: auditService}

	// --- Miqaats and the calendar ---
	miqaatService := miqaats.NewService(
		records.NewRepository(a.DB, miqaats.Schema), a.Redis, cfg.Redis.CacheTTL, opts)
	miqaats.RegisterRoutes(admin, api, miqaats.NewHandler(miqaatService, auth.Actor))

	calendarService := calendar.NewService(miqaatService, nil)
	calendar.RegisterRoutes(e, admin, api, requireAuth, calendar.NewHandler(calendarService, auth.Actor))

	// --- Record sheets ---
	registerSheet(a, admin, api, library.Schema, opts)
	registerSheet(a, admin, api, locations.Schema, opts)
	registerSheet(a, admin, api, shrines.Schema, opts)
	registerSheet(a, admin, api, texts.Schema, opts)

	// --- Media ---
	store, err := newStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	mediaService := media.NewService(media.NewRepository(a.DB), store, auditService, cfg.Storage.MaxUploadSize)
	media.RegisterRoutes(e, admin, api,
		media.NewHandler(mediaService, auth.Actor, cfg.Storage.MaxUploadSize),
		requireAuth, a.newLimiter(30, time.Minute))

	// --- Background jobs ---
	a.Jobs, err = jobs.New(cfg.Jobs, miqaatService, auditService)
	if err != nil {
		return err
	}
	return nil
}

func registerSheet[T any](a *App, admin, api *echo.Group, schema *records.Schema[T], opts records.Options) {
	svc := records.NewService(records.NewRepository(a.DB, schema), schema, opts)
	records.NewHandler(svc, auth.Actor).Register(admin, api)
}

// identityProvider signs in with Google, or in development without Google
// credentials, as the first whitelisted admin.
func identityProvider(cfg *config.Config) auth.IdentityProvider {
	if cfg.IsDevelopment() && cfg.Auth.GoogleClientID == "" {
		email := devEmail(cfg)
		slog.Warn("GOOGLE_CLIENT_ID not set; signing in without Google", slog.String("email", email))
		return auth.NewDevProvider(email)
	}
	return auth.NewGoogleProvider(cfg.Auth.GoogleClientID, cfg.Auth.GoogleClientSecret, cfg.Auth.GoogleRedirectURL)
}

func devEmail(cfg *config.Config) string {
	if len(cfg.Auth.AdminEmails) > 0 {
		return cfg.Auth.AdminEmails[0]
	}
	return "admin@localhost"
}

// adminEmails is the whitelist, plus the development sign-in address when
// the dev provider is in use.
func adminEmails(cfg *config.Config) []string {
	if cfg.IsDevelopment() && cfg.Auth.GoogleClientID == "" && len(cfg.Auth.AdminEmails) == 0 {
		return []string{devEmail(cfg)}
	}
	return cfg.Auth.AdminEmails
}

func newStorage(ctx context.Context, cfg config.StorageConfig) (media.Storage, error) {
	switch cfg.Driver {
	case "s3":
		store, err := media.NewS3Storage(ctx, media.S3Options{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to object storage: %w", err)
		}
		return store, nil
	default:
		return media.NewLocalStorage(cfg.MediaPath)
	}
}

// healthz reports whether MariaDB and Redis answer.
// GET /healthz
func (a *App) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok", "database": "ok", "redis": "ok"}
	code := http.StatusOK
	if err := a.DB.PingContext(ctx); err != nil {
		status["database"], status["status"] = "unavailable", "degraded"
		code = http.StatusServiceUnavailable
	}
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		status["redis"], status["status"] = "unavailable", "degraded"
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}
