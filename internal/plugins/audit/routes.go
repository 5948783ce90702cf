package audit

import "github.com/labstack/echo/v4"

// RegisterRoutes mounts the activity page and history API on groups that
// already require an authenticated admin.
func RegisterRoutes(admin, api *echo.Group, h *Handler) {
	admin.GET("/activity", h.Activity)
	api.GET("/activity/:kind/:id", h.HistoryAPI)
}
