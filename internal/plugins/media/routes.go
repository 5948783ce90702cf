package media

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/misri-labs/miqaat-admin/internal/middleware"
)

// RegisterRoutes mounts the media library on the authenticated admin and api
// groups and the file server on e. Uploads are rate limited per IP.
func RegisterRoutes(e *echo.Echo, admin, api *echo.Group, h *Handler, requireAuth echo.MiddlewareFunc, limiter *middleware.RateLimiter) {
	admin.GET("/media", h.Library)

	// Multipart encoding adds some overhead over the file itself.
	bodyLimit := bodyLimitMiddleware(h.maxSize + h.maxSize/10)
	api.POST("/media", h.Upload, limiter.Middleware(), bodyLimit)
	api.GET("/media", h.ListAPI)
	api.GET("/media/exists", h.ExistsAPI)
	api.DELETE("/media/:id", h.DeleteAPI)

	e.GET("/media/*", h.Serve, requireAuth)
}

// bodyLimitMiddleware rejects request bodies over maxBytes before the
// handler buffers them.
func bodyLimitMiddleware(maxBytes int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().ContentLength > maxBytes {
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
					fmt.Sprintf("request body too large; maximum is %d MB", maxBytes>>20))
			}
			c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, maxBytes)
			return next(c)
		}
	}
}
