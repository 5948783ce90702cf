package middleware

import (
	"github.com/labstack/echo/v4"
)

// contentSecurityPolicy allows same-origin assets plus Google's sign-in
// avatars and the media bucket, if configured.
func contentSecurityPolicy(mediaOrigin string) string {
	img := "img-src 'self' data: blob: https://lh3.googleusercontent.com"
	media := "media-src 'self'"
	if mediaOrigin != "" {
		img += " " + mediaOrigin
		media += " " + mediaOrigin
	}
	return "default-src 'self'; " +
		"script-src 'self' 'unsafe-inline'; " +
		"style-src 'self' 'unsafe-inline'; " +
		img + "; " +
		media + "; " +
		"connect-src 'self'; " +
		"frame-ancestors 'none'; " +
		"base-uri 'self'; " +
		"form-action 'self' https://accounts.google.com"
}

// SecurityHeaders sets the browser hardening headers on every response.
// mediaOrigin is the public object-storage origin, or "" when media is
// served locally.
func SecurityHeaders(mediaOrigin string) echo.MiddlewareFunc {
	csp := contentSecurityPolicy(mediaOrigin)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("Content-Security-Policy", csp)
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), payment=()")
			return next(c)
		}
	}
}
