package calendar

import "github.com/labstack/echo/v4"

// RegisterRoutes mounts the calendar. admin and api must already require an
// authenticated admin; requireAuth guards the ICS download.
func RegisterRoutes(e *echo.Echo, admin, api *echo.Group, requireAuth echo.MiddlewareFunc, h *Handler) {
	admin.GET("/calendar", h.Page)

	api.GET("/calendar", h.MonthAPI)
	api.GET("/calendar/selection", h.SelectionAPI)
	api.POST("/calendar/selection/miqaats", h.CreateFromSelectionAPI)

	e.GET("/calendar/:file", h.ExportICS, requireAuth)
}
