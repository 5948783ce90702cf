package audit

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/misri-labs/miqaat-admin/internal/middleware"
)

// Handler serves the activity page and record history.
type Handler struct {
	service Service
}

// NewHandler creates an audit handler.
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Activity renders the activity feed.
// GET /admin/activity?kind=&page=
func (h *Handler) Activity(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	kind := c.QueryParam("kind")
	entries, total, err := h.service.Activity(c.Request().Context(), kind, page)
	if err != nil {
		return err
	}
	return middleware.Render(c, http.StatusOK, ActivityPage(entries, kind, page, total))
}

// HistoryAPI returns one record's change history.
// GET /api/v1/activity/:kind/:id
func (h *Handler) HistoryAPI(c echo.Context) error {
	entries, err := h.service.History(c.Request().Context(), c.Param("kind"), c.Param("id"))
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}
