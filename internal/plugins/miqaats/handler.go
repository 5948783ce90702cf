package miqaats

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/misri-labs/miqaat-admin/internal/apperror"
	"github.com/misri-labs/miqaat-admin/internal/records"
)

// maxImportBytes bounds an uploaded import document.
const maxImportBytes = 2 << 20

// Handler serves the miqaat sheet and API, plus bulk import.
type Handler struct {
	*records.Handler[Miqaat]
	svc   Service
	actor records.ActorFunc
}

// NewHandler creates a miqaat handler.
func NewHandler(svc Service, actor records.ActorFunc) *Handler {
	return &Handler{
		Handler: records.NewHandler[Miqaat](svc, actor),
		svc:     svc,
		actor:   actor,
	}
}

// ImportAPI creates miqaats from a YAML or JSON document, sent either as the
// request body or as the "file" field of a multipart form. Nothing is
// created unless every row is valid.
// POST /api/v1/miqaats/import
func (h *Handler) ImportAPI(c echo.Context) error {
	data, err := readImport(c)
	if err != nil {
		return err
	}
	created, err := h.svc.Import(c.Request().Context(), h.actor(c), data)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"created":  len(created),
		"miqaats": created,
	})
}

func readImport(c echo.Context) ([]byte, error) {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxImportBytes)

	var r io.Reader = req.Body
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, apperror.NewBadRequest("cannot read uploaded file")
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, maxImportBytes+1))
	if err != nil {
		return nil, apperror.NewTooLarge("import document is too large")
	}
	if len(data) > maxImportBytes {
		return nil, apperror.NewTooLarge("import document is too large")
	}
	return data, nil
}
