package calendar

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/misri-labs/miqaat-admin/internal/apperror"
	"github.com/misri-labs/miqaat-admin/internal/middleware"
	"github.com/misri-labs/miqaat-admin/internal/plugins/miqaats"
	"github.com/misri-labs/miqaat-admin/internal/records"
)

// Handler serves the calendar page, its JSON API and the ICS export.
type Handler struct {
	svc   Service
	actor records.ActorFunc
}

// NewHandler creates a calendar handler.
func NewHandler(svc Service, actor records.ActorFunc) *Handler {
	return &Handler{svc: svc, actor: actor}
}

// MonthView is the JSON form of a calendar month.
type MonthView struct {
	Year           int    `json:"year"`
	Month          int    `json:"month"`
	MonthName      string `json:"month_name"`
	Title          string `json:"title"`
	GregorianRange string `json:"gregorian_range"`
	Days           []Day  `json:"days"`
}

func monthView(cal Calendar) MonthView {
	return MonthView{
		Year:           cal.Year(),
		Month:          cal.Month(),
		MonthName:      cal.MonthName(),
		Title:          cal.Title(),
		GregorianRange: cal.GregorianRange(),
		Days:           cal.Days(),
	}
}

// Page renders the month grid. Without year and month it shows today's month.
// GET /admin/calendar?year=&month=
func (h *Handler) Page(c echo.Context) error {
	cal, err := h.load(c)
	if err != nil {
		if apperror.SafeCode(err) < http.StatusInternalServerError {
			return err
		}
		// Miqaats failed to load; show the grid without them.
		slog.Error("loading calendar miqaats", slog.Any("error", err))
		return middleware.Render(c, http.StatusOK, CalendarPage(cal, "Miqaats could not be loaded. Showing the calendar without them."))
	}
	return middleware.Render(c, http.StatusOK, CalendarPage(cal, ""))
}

// MonthAPI returns the month grid as JSON.
// GET /api/v1/calendar?year=&month=
func (h *Handler) MonthAPI(c echo.Context) error {
	cal, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, monthView(cal))
}

// SelectionAPI returns the keys a "select month" or "select year" action
// adds to the selection.
// GET /api/v1/calendar/selection?year=&month=&scope=month|days|year
func (h *Handler) SelectionAPI(c echo.Context) error {
	year, month, explicit, err := parseYearMonth(c)
	if err != nil {
		return err
	}
	if !explicit {
		return apperror.NewValidation("year is required")
	}
	cal := New(year, month, nil)

	var keys []string
	switch c.QueryParam("scope") {
	case "", "month":
		keys = cal.SelectMonth()
	case "days":
		keys = cal.MonthKeys()
	case "year":
		keys = cal.SelectYear()
	default:
		return apperror.NewValidation("scope must be month, days or year")
	}
	return c.JSON(http.StatusOK, map[string]any{"keys": keys})
}

// CreateFromSelectionAPI creates miqaats for the selected days.
// POST /api/v1/calendar/selection/miqaats
func (h *Handler) CreateFromSelectionAPI(c echo.Context) error {
	var req SelectionRequest
	if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	created, err := h.svc.CreateFromSelection(c.Request().Context(), h.actor(c), req)
	if err != nil {
		return err
	}
	if created == nil {
		created = []miqaats.Miqaat{}
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"created": len(created),
		"miqaats": created,
	})
}

// ExportICS downloads one Hijri year of miqaats as an iCalendar file.
// GET /calendar/:file where file is "<year>.ics"
func (h *Handler) ExportICS(c echo.Context) error {
	name := c.Param("file")
	yearStr, ok := strings.CutSuffix(name, ".ics")
	if !ok {
		return apperror.NewNotFound("calendar not found")
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return apperror.NewNotFound("calendar not found")
	}
	body, err := h.svc.ExportYear(c.Request().Context(), year)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="miqaats-`+strconv.Itoa(year)+`.ics"`)
	return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}

// load builds the requested calendar. Query errors are validation errors;
// any other error comes with a usable calendar that has no miqaats.
func (h *Handler) load(c echo.Context) (Calendar, error) {
	year, month, explicit, err := parseYearMonth(c)
	if err != nil {
		return Calendar{}, err
	}
	ctx := c.Request().Context()
	if !explicit {
		return h.svc.Current(ctx)
	}
	return h.svc.Month(ctx, year, month)
}

// parseYearMonth reads year and month. Both must be integers when present;
// range is left to the calendar, which clamps. explicit is false when
// neither is given. A missing month alone defaults to 0.
func parseYearMonth(c echo.Context) (year, month int, explicit bool, err error) {
	yearStr, monthStr := c.QueryParam("year"), c.QueryParam("month")
	if yearStr == "" && monthStr == "" {
		return 0, 0, false, nil
	}
	if yearStr == "" {
		return 0, 0, false, apperror.NewValidation("year is required with month")
	}
	if year, err = strconv.Atoi(yearStr); err != nil {
		return 0, 0, false, apperror.NewValidation("year must be an integer")
	}
	if monthStr != "" {
		if month, err = strconv.Atoi(monthStr); err != nil {
			return 0, 0, false, apperror.NewValidation("month must be an integer")
		}
	}
	return year, month, true, nil
}
