package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const contextKeySession = "auth_session"

// RequireAuth validates the session cookie and stores the session on the
// context. Without a valid session browsers are redirected to /login and
// API clients get a 401.
func RequireAuth(service AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := getSessionToken(c)
			if token == "" {
				return handleUnauthenticated(c)
			}
			session, err := service.ValidateSession(c.Request().Context(), token)
			if err != nil {
				clearCookie(c, sessionCookieName)
				return handleUnauthenticated(c)
			}
			c.Set(contextKeySession, session)
			return next(c)
		}
	}
}

func handleUnauthenticated(c echo.Context) error {
	if strings.HasPrefix(c.Request().URL.Path, "/api/") {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error":   "unauthorized",
			"message": "authentication required",
		})
	}
	if c.Request().Header.Get("HX-Request") == "true" {
		c.Response().Header().Set("HX-Redirect", "/login")
		return c.NoContent(http.StatusNoContent)
	}
	return c.Redirect(http.StatusSeeOther, "/login")
}

// GetSession returns the signed-in admin's session, or nil outside
// RequireAuth.
func GetSession(c echo.Context) *Session {
	session, _ := c.Get(contextKeySession).(*Session)
	return session
}

// Actor returns the signed-in admin's email for the activity log.
func Actor(c echo.Context) string {
	if s := GetSession(c); s != nil {
		return s.Email
	}
	return ""
}
