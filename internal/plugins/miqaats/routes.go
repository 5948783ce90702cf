package miqaats

import "github.com/labstack/echo/v4"

// RegisterRoutes mounts the miqaat sheet and API. Both groups must already
// require an authenticated admin.
func RegisterRoutes(admin, api *echo.Group, h *Handler) {
	// Registered before the generic /:id routes so "import" is not an ID.
	api.POST("/miqaats/import", h.ImportAPI)
	h.Register(admin, api)
}
