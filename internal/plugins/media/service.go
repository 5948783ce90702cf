package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	// Register decoders for image.Decode.
	_ "image/gif"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/misri-labs/miqaat-admin/internal/apperror"
	"github.com/misri-labs/miqaat-admin/internal/records"
)

// PerPage is the media library page size.
const PerPage = 48

// maxNameLength matches media_files.name.
const maxNameLength = 255

// Service manages uploads and their metadata.
type Service interface {
	Upload(ctx context.Context, input UploadInput) (*File, error)
	Get(ctx context.Context, id string) (*File, error)

	// Exists reports whether name is taken, so the upload form can warn
	// before sending bytes.
	Exists(ctx context.Context, name string) (bool, error)
	List(ctx context.Context, search string, page int) ([]File, int, error)
	Delete(ctx context.Context, actor, id string) error

	// Open streams a stored object by key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// View resolves a file's public URLs.
	View(f File) FileView
}

type service struct {
	repo    Repository
	store   Storage
	auditor records.Auditor
	maxSize int64
	now     func() time.Time
}

// NewService creates the media service. Uploads larger than maxSize bytes
// are refused. auditor may be nil.
func NewService(repo Repository, store Storage, auditor records.Auditor, maxSize int64) Service {
	return &service{repo: repo, store: store, auditor: auditor, maxSize: maxSize, now: time.Now}
}

func (s *service) Upload(ctx context.Context, input UploadInput) (*File, error) {
	name := strings.TrimSpace(input.Name)
	switch {
	case name == "":
		return nil, apperror.NewValidation("a file name is required")
	case utf8.RuneCountInString(name) > maxNameLength:
		return nil, apperror.NewValidation("file name is too long")
	case len(input.Data) == 0:
		return nil, apperror.NewValidation("the file is empty")
	case int64(len(input.Data)) > s.maxSize:
		return nil, apperror.NewTooLarge(fmt.Sprintf("file exceeds the %d MB limit", s.maxSize>>20))
	}

	// Trust the bytes, not the client's Content-Type or extension.
	mime := mimetype.Detect(input.Data)
	ext, ok := allowedTypes[mime.String()]
	if !ok {
		return nil, apperror.NewValidation(fmt.Sprintf("files of type %s are not allowed", mime.String()))
	}

	if exists, err := s.Exists(ctx, name); err != nil {
		return nil, err
	} else if exists {
		return nil, apperror.NewConflict("a file with this name already exists")
	}

	now := s.now().UTC()
	id := uuid.NewString()
	f := &File{
		ID:         id,
		Name:       name,
		ObjectKey:  path.Join(now.Format("2006/01"), id+ext),
		MimeType:   mime.String(),
		SizeBytes:  int64(len(input.Data)),
		UploadedBy: input.UploadedBy,
		CreatedAt:  now,
	}

	var written []string
	cleanup := func() {
		for _, key := range written {
			if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
				slog.Warn("failed to remove orphaned media object", slog.String("key", key), slog.Any("error", err))
			}
		}
	}

	if err := s.store.Put(ctx, f.ObjectKey, f.MimeType, input.Data); err != nil {
		return nil, apperror.NewInternal(err)
	}
	written = append(written, f.ObjectKey)

	// Animated GIFs would lose their frames; serve them as-is.
	if f.IsImage() && f.MimeType != "image/gif" {
		thumbs, err := s.writeThumbnails(ctx, f, input.Data)
		written = append(written, thumbs...)
		if err != nil {
			cleanup()
			return nil, apperror.NewValidation("the image could not be decoded")
		}
		f.Thumbnails = make(map[string]string, len(thumbs))
		for i, key := range thumbs {
			f.Thumbnails[fmt.Sprint(thumbnailSizes[i])] = key
		}
	}

	if err := s.repo.Create(ctx, f); err != nil {
		cleanup()
		return nil, err
	}

	if s.auditor != nil {
		s.auditor.Record(ctx, f.UploadedBy, "media.created", "media", f.ID, f.Name, map[string]any{
			"mime_type":  f.MimeType,
			"size_bytes": f.SizeBytes,
		})
	}
	slog.Info("media uploaded", slog.String("id", f.ID), slog.String("mime_type", f.MimeType), slog.Int64("size", f.SizeBytes))
	return f, nil
}

// writeThumbnails stores a JPEG per thumbnail size and returns their keys in
// thumbnailSizes order. Images already smaller than a size are still
// re-encoded so every image has the same set of thumbnails.
func (s *service) writeThumbnails(ctx context.Context, f *File, data []byte) ([]string, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	base := strings.TrimSuffix(f.ObjectKey, path.Ext(f.ObjectKey))
	var keys []string
	for _, size := range thumbnailSizes {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, resize(src, size), &jpeg.Options{Quality: 82}); err != nil {
			return keys, fmt.Errorf("encoding thumbnail: %w", err)
		}
		key := fmt.Sprintf("%s_%d.jpg", base, size)
		if err := s.store.Put(ctx, key, "image/jpeg", buf.Bytes()); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// resize scales src so its longest edge is at most maxEdge, keeping the
// aspect ratio.
func resize(src image.Image, maxEdge int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxEdge && h <= maxEdge {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst
	}
	if w >= h {
		h = max(1, h*maxEdge/w)
		w = maxEdge
	} else {
		w = max(1, w*maxEdge/h)
		h = maxEdge
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

func (s *service) Get(ctx context.Context, id string) (*File, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) Exists(ctx context.Context, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, nil
	}
	_, err := s.repo.GetByName(ctx, name)
	if err == nil {
		return true, nil
	}
	if apperror.SafeCode(err) == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

func (s *service) List(ctx context.Context, search string, page int) ([]File, int, error) {
	if page < 1 {
		page = 1
	}
	return s.repo.List(ctx, search, PerPage, (page-1)*PerPage)
}

func (s *service) Delete(ctx context.Context, actor, id string) error {
	f, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	// The row is gone; leftover objects are only wasted space.
	keys := []string{f.ObjectKey}
	for _, key := range f.Thumbnails {
		keys = append(keys, key)
	}
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			slog.Warn("failed to remove media object", slog.String("key", key), slog.Any("error", err))
		}
	}

	if s.auditor != nil {
		s.auditor.Record(ctx, actor, "media.deleted", "media", f.ID, f.Name, nil)
	}
	return nil
}

func (s *service) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := s.store.Open(ctx, key)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, apperror.NewNotFound("file not found")
	}
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return rc, nil
}

func (s *service) View(f File) FileView {
	v := FileView{File: f, URL: s.store.URL(f.ObjectKey)}
	if key, ok := f.Thumbnails["300"]; ok {
		v.ThumbnailURL = s.store.URL(key)
	}
	return v
}
