package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/misri-labs/miqaat-admin/internal/apperror"
	"github.com/misri-labs/miqaat-admin/internal/middleware"
)

const (
	sessionCookieName = "miqaat_session"
	stateCookieName   = "miqaat_oauth_state"

	// afterLoginPath is where a fresh session lands.
	afterLoginPath = "/admin/calendar"
)

// Handler serves sign-in, the OAuth callback and sign-out.
type Handler struct {
	service       AuthService
	sessionTTL    time.Duration
	secureCookies bool
}

// NewHandler creates the auth handler. secureCookies should be true whenever
// the site is served over HTTPS.
func NewHandler(service AuthService, sessionTTL time.Duration, secureCookies bool) *Handler {
	return &Handler{service: service, sessionTTL: sessionTTL, secureCookies: secureCookies}
}

// LoginPage renders the sign-in page, or skips it for a signed-in admin.
// GET /login
func (h *Handler) LoginPage(c echo.Context) error {
	if token := getSessionToken(c); token != "" {
		if _, err := h.service.ValidateSession(c.Request().Context(), token); err == nil {
			return c.Redirect(http.StatusSeeOther, afterLoginPath)
		}
	}
	return middleware.Render(c, http.StatusOK, LoginView(""))
}

// GoogleLogin starts the OAuth flow.
// GET /auth/google
func (h *Handler) GoogleLogin(c echo.Context) error {
	state, url, err := h.service.BeginLogin(c.Request().Context())
	if err != nil {
		return err
	}
	h.setCookie(c, stateCookieName, state, stateTTL)
	return c.Redirect(http.StatusSeeOther, url)
}

// GoogleCallback finishes the OAuth flow and opens a session.
// GET /auth/google/callback
func (h *Handler) GoogleCallback(c echo.Context) error {
	if msg := c.QueryParam("error"); msg != "" {
		return middleware.Render(c, http.StatusUnauthorized, LoginView("Google sign-in was cancelled ("+msg+")."))
	}

	cookieState := ""
	if cookie, err := c.Cookie(stateCookieName); err == nil {
		cookieState = cookie.Value
	}
	clearCookie(c, stateCookieName)

	token, _, err := h.service.CompleteLogin(c.Request().Context(),
		c.QueryParam("state"), cookieState, c.QueryParam("code"))
	if err != nil {
		code := apperror.SafeCode(err)
		if code >= http.StatusInternalServerError {
			return err
		}
		return middleware.Render(c, code, LoginView(apperror.SafeMessage(err)))
	}

	h.setCookie(c, sessionCookieName, token, h.sessionTTL)
	return c.Redirect(http.StatusSeeOther, afterLoginPath)
}

// Logout ends the session.
// POST /logout
func (h *Handler) Logout(c echo.Context) error {
	if token := getSessionToken(c); token != "" {
		if err := h.service.DestroySession(c.Request().Context(), token); err != nil {
			return err
		}
	}
	clearCookie(c, sessionCookieName)
	if middleware.IsHTMX(c) {
		c.Response().Header().Set("HX-Redirect", "/login")
		return c.NoContent(http.StatusNoContent)
	}
	return c.Redirect(http.StatusSeeOther, "/login")
}

func (h *Handler) setCookie(c echo.Context, name, value string, ttl time.Duration) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		// Lax so the cookie survives the top-level redirect back from Google.
		SameSite: http.SameSiteLaxMode,
	})
}

func clearCookie(c echo.Context, name string) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func getSessionToken(c echo.Context) string {
	cookie, err := c.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
