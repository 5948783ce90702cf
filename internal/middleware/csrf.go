package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/misri-labs/miqaat-admin/internal/apperror"
)

const (
	// 32 random bytes, hex-encoded to 64 characters.
	csrfTokenLength = 32
	csrfCookieName  = "miqaat_csrf"
	csrfHeaderName  = "X-CSRF-Token"
	csrfFormField   = "csrf_token"
	csrfContextKey  = "csrf_token"
)

// CSRF implements the double-submit cookie pattern. Every response carries a
// readable token cookie; mutating requests must echo it in the X-CSRF-Token
// header or the csrf_token form field. The JSON API is covered too because it
// authenticates with the same session cookie as the pages.
func CSRF() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			// Reuse the cookie's token; mint one on the first visit.
			token := ""
			if cookie, err := req.Cookie(csrfCookieName); err == nil && cookie.Value != "" {
				token = cookie.Value
			} else {
				generated, err := generateCSRFToken()
				if err != nil {
					return apperror.NewInternal(err)
				}
				token = generated
				c.SetCookie(&http.Cookie{
					Name:     csrfCookieName,
					Value:    token,
					Path:     "/",
					HttpOnly: false, // read by the page script for fetch and HTMX calls
					Secure:   req.TLS != nil || req.Header.Get("X-Forwarded-Proto") == "https",
					SameSite: http.SameSiteLaxMode,
				})
			}
			c.Set(csrfContextKey, token)

			if isSafeMethod(req.Method) {
				return next(c)
			}

			// fetch and HTMX send the header; plain forms post the field.
			submitted := req.Header.Get(csrfHeaderName)
			if submitted == "" {
				submitted = req.FormValue(csrfFormField)
			}
			if submitted == "" || subtle.ConstantTimeCompare([]byte(submitted), []byte(token)) != 1 {
				return apperror.NewForbidden("invalid or missing CSRF token")
			}
			return next(c)
		}
	}
}

// isSafeMethod reports whether method cannot change state.
func isSafeMethod(method string) bool {
	return method == http.MethodGet ||
		method == http.MethodHead ||
		method == http.MethodOptions
}

// generateCSRFToken returns a random hex token.
func generateCSRFToken() (string, error) {
	b := make([]byte, csrfTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GetCSRFToken returns the request's CSRF token for embedding in forms.
func GetCSRFToken(c echo.Context) string {
	token, _ := c.Get(csrfContextKey).(string)
	return token
}
