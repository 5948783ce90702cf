package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/misri-labs/miqaat-admin/internal/middleware"
)

// RegisterRoutes mounts the public sign-in routes. limiter throttles the
// OAuth endpoints per client IP.
func RegisterRoutes(e *echo.Echo, h *Handler, limiter *middleware.RateLimiter) {
	e.GET("/login", h.LoginPage)
	e.GET("/auth/google", h.GoogleLogin, limiter.Middleware())
	e.GET("/auth/google/callback", h.GoogleCallback, limiter.Middleware())
	e.POST("/logout", h.Logout)
}
