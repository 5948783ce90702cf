package media

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/misri-labs/miqaat-admin/internal/apperror"
	"github.com/misri-labs/miqaat-admin/internal/middleware"
	"github.com/misri-labs/miqaat-admin/internal/records"
)

// Handler serves the media library page, upload API and stored files.
type Handler struct {
	service Service
	actor   records.ActorFunc
	maxSize int64
}

// NewHandler creates a media handler.
func NewHandler(service Service, actor records.ActorFunc, maxSize int64) *Handler {
	return &Handler{service: service, actor: actor, maxSize: maxSize}
}

// Library renders the media library.
// GET /admin/media?q=&page=
func (h *Handler) Library(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	search := c.QueryParam("q")
	files, total, err := h.service.List(c.Request().Context(), search, page)
	if err != nil {
		return err
	}
	views := make([]FileView, len(files))
	for i, f := range files {
		views[i] = h.service.View(f)
	}
	return middleware.Render(c, http.StatusOK, LibraryPage(views, search, page, total, h.maxSize))
}

// Upload stores the "file" field of a multipart form. The "name" field
// defaults to the uploaded file's name.
// POST /api/v1/media
func (h *Handler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperror.NewTooLarge("file is too large")
		}
		return apperror.NewBadRequest("no file provided")
	}
	src, err := fh.Open()
	if err != nil {
		return apperror.NewBadRequest("cannot read uploaded file")
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, h.maxSize+1))
	if err != nil {
		return apperror.NewBadRequest("cannot read uploaded file")
	}

	name := c.FormValue("name")
	if name == "" {
		name = fh.Filename
	}
	f, err := h.service.Upload(c.Request().Context(), UploadInput{
		Name:       name,
		UploadedBy: h.actor(c),
		Data:       data,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, h.service.View(*f))
}

// ExistsAPI reports whether a name is already in use.
// GET /api/v1/media/exists?name=
func (h *Handler) ExistsAPI(c echo.Context) error {
	exists, err := h.service.Exists(c.Request().Context(), c.QueryParam("name"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"exists": exists})
}

// ListAPI returns a page of files.
// GET /api/v1/media?q=&page=
func (h *Handler) ListAPI(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	files, total, err := h.service.List(c.Request().Context(), c.QueryParam("q"), page)
	if err != nil {
		return err
	}
	views := make([]FileView, len(files))
	for i, f := range files {
		views[i] = h.service.View(f)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": views, "total": total})
}

// DeleteAPI removes a file and its thumbnails.
// DELETE /api/v1/media/:id
func (h *Handler) DeleteAPI(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), h.actor(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Serve streams a stored object.
// GET /media/*
func (h *Handler) Serve(c echo.Context) error {
	key := c.Param("*")
	rc, err := h.service.Open(c.Request().Context(), key)
	if err != nil {
		return err
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	// Object keys embed a UUID and are never rewritten.
	c.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	c.Response().Header().Set("X-Content-Type-Options", "nosniff")
	return c.Stream(http.StatusOK, contentType, rc)
}
