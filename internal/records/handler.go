package records

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/misri-labs/miqaat-admin/internal/apperror"
	"github.com/misri-labs/miqaat-admin/internal/middleware"
)

// ActorFunc returns the signed-in admin's email for the activity log.
type ActorFunc func(echo.Context) string

// Handler serves the sheet page and JSON API for one record kind.
type Handler[T any] struct {
	svc   Service[T]
	actor ActorFunc
}

// NewHandler returns a Handler over svc.
func NewHandler[T any](svc Service[T], actor ActorFunc) *Handler[T] {
	return &Handler[T]{svc: svc, actor: actor}
}

// Register mounts the kind's routes: the sheet page on admin and the CRUD
// API on api. Both groups are expected to require authentication.
func (h *Handler[T]) Register(admin, api *echo.Group) {
	kind := h.svc.Schema().Kind
	admin.GET("/"+kind, h.Page)

	api.GET("/"+kind, h.ListAPI)
	api.POST("/"+kind, h.CreateAPI)
	api.PATCH("/"+kind+"/cells", h.CellsAPI)
	api.GET("/"+kind+"/:id", h.GetAPI)
	api.PUT("/"+kind+"/:id", h.UpdateAPI)
	api.DELETE("/"+kind+"/:id", h.DeleteAPI)
}

// Page renders the spreadsheet view.
// GET /admin/:kind
func (h *Handler[T]) Page(c echo.Context) error {
	opts := h.listOptions(c)
	page, err := h.svc.List(c.Request().Context(), opts)
	if err != nil {
		return err
	}
	return middleware.Render(c, http.StatusOK, SheetPage(h.svc.Schema(), page, opts))
}

// ListAPI returns a page of records.
// GET /api/v1/:kind?q=&sort=&dir=&page=&per_page=&<column>=
func (h *Handler[T]) ListAPI(c echo.Context) error {
	page, err := h.svc.List(c.Request().Context(), h.listOptions(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// GetAPI returns one record.
// GET /api/v1/:kind/:id
func (h *Handler[T]) GetAPI(c echo.Context) error {
	rec, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

// CreateAPI creates a record from a JSON body.
// POST /api/v1/:kind
func (h *Handler[T]) CreateAPI(c echo.Context) error {
	rec := new(T)
	if err := (&echo.DefaultBinder{}).BindBody(c, rec); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	created, err := h.svc.Create(c.Request().Context(), h.actor(c), rec)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

// UpdateAPI replaces a record from a JSON body.
// PUT /api/v1/:kind/:id
func (h *Handler[T]) UpdateAPI(c echo.Context) error {
	rec := new(T)
	if err := (&echo.DefaultBinder{}).BindBody(c, rec); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	updated, err := h.svc.Update(c.Request().Context(), h.actor(c), c.Param("id"), rec)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteAPI removes a record.
// DELETE /api/v1/:kind/:id
func (h *Handler[T]) DeleteAPI(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), h.actor(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// maxCellEdits bounds one sheet PATCH.
const maxCellEdits = 200

// CellsAPI applies inline sheet edits and reports each cell's outcome.
// PATCH /api/v1/:kind/cells
func (h *Handler[T]) CellsAPI(c echo.Context) error {
	var edits []CellEdit
	if err := (&echo.DefaultBinder{}).BindBody(c, &edits); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if len(edits) == 0 {
		return apperror.NewValidation("no cell edits submitted")
	}
	if len(edits) > maxCellEdits {
		return apperror.NewValidation("too many cell edits in one request")
	}
	results := h.svc.UpdateCells(c.Request().Context(), h.actor(c), edits)
	return c.JSON(http.StatusOK, results)
}

// listOptions reads paging, search, sort and column filters from the query.
func (h *Handler[T]) listOptions(c echo.Context) ListOptions {
	opts := ListOptions{
		Search:  c.QueryParam("q"),
		Sort:    c.QueryParam("sort"),
		Desc:    strings.EqualFold(c.QueryParam("dir"), "desc"),
		Filters: map[string]string{},
	}
	opts.Page, _ = strconv.Atoi(c.QueryParam("page"))
	opts.PerPage, _ = strconv.Atoi(c.QueryParam("per_page"))
	for _, col := range h.svc.Schema().Columns {
		if col.Filterable {
			if v := c.QueryParam(col.Name); v != "" {
				opts.Filters[col.Name] = v
			}
		}
	}
	return opts.normalize()
}
