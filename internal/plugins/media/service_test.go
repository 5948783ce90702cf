package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/misri-labs/miqaat-admin/internal/apperror"
	"github.com/misri-labs/miqaat-admin/internal/records"
)

// --- Mocks ---

type mockRepo struct {
	createFn    func(ctx context.Context, f *File) error
	getFn       func(ctx context.Context, id string) (*File, error)
	getByNameFn func(ctx context.Context, name string) (*File, error)
	listFn      func(ctx context.Context, search string, limit, offset int) ([]File, int, error)
	deleteFn    func(ctx context.Context, id string) error
}

func (m *mockRepo) Create(ctx context.Context, f *File) error {
	if m.createFn != nil {
		return m.createFn(ctx, f)
	}
	return nil
}

func (m *mockRepo) Get(ctx context.Context, id string) (*File, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, apperror.NewNotFound("media file not found")
}

func (m *mockRepo) GetByName(ctx context.Context, name string) (*File, error) {
	if m.getByNameFn != nil {
		return m.getByNameFn(ctx, name)
	}
	return nil, apperror.NewNotFound("media file not found")
}

func (m *mockRepo) List(ctx context.Context, search string, limit, offset int) ([]File, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, search, limit, offset)
	}
	return nil, 0, nil
}

func (m *mockRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// memStorage keeps objects in a map.
type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (m *memStorage) Put(_ context.Context, key, _ string, data []byte) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *memStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStorage) URL(key string) string { return "/media/" + key }

type auditCall struct{ actor, action, id, name string }

type mockAuditor struct{ calls []auditCall }

func (m *mockAuditor) Record(_ context.Context, actor, action, _, id, name string, _ map[string]any) {
	m.calls = append(m.calls, auditCall{actor, action, id, name})
}

func assertAppError(t *testing.T, err error, code int) {
	t.Helper()
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != code {
		t.Errorf("expected code %d, got %d", code, appErr.Code)
	}
}

// --- Fixtures ---

const testMaxSize = 1 << 20

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

var pdfBytes = []byte("%PDF-1.4\n1 0 obj << /Type /Catalog >> endobj\ntrailer << >>\n%%EOF\n")

// newTestService passes a nil *mockAuditor through as a nil interface so the
// service sees no auditor at all.
func newTestService(repo Repository, store Storage, auditor *mockAuditor) *service {
	var a records.Auditor
	if auditor != nil {
		a = auditor
	}
	svc := NewService(repo, store, a, testMaxSize).(*service)
	svc.now = func() time.Time { return time.Date(2024, 7, 16, 9, 0, 0, 0, time.UTC) }
	return svc
}

// --- Upload ---

func TestUpload_ImageWithThumbnails(t *testing.T) {
	store := newMemStorage()
	var created *File
	repo := &mockRepo{createFn: func(_ context.Context, f *File) error {
		created = f
		return nil
	}}
	auditor := &mockAuditor{}
	svc := newTestService(repo, store, auditor)

	f, err := svc.Upload(context.Background(), UploadInput{
		Name: " Ashura banner ", UploadedBy: "admin@example.com", Data: pngBytes(t, 1000, 500),
	})
	if err != nil {
		t.Fatal(err)
	}
	if created != f {
		t.Error("expected the returned file to be the one persisted")
	}
	if f.Name != "Ashura banner" || f.MimeType != "image/png" {
		t.Errorf("unexpected file %+v", f)
	}
	if !strings.HasPrefix(f.ObjectKey, "2024/07/") || !strings.HasSuffix(f.ObjectKey, ".png") {
		t.Errorf("unexpected object key %q", f.ObjectKey)
	}
	if len(store.objects) != 3 {
		t.Fatalf("expected original plus 2 thumbnails, got %d objects", len(store.objects))
	}

	wantBounds := map[string]image.Point{"300": {300, 150}, "800": {800, 400}}
	for size, want := range wantBounds {
		key, ok := f.Thumbnails[size]
		if !ok {
			t.Fatalf("missing %s thumbnail", size)
		}
		img, err := jpeg.Decode(bytes.NewReader(store.objects[key]))
		if err != nil {
			t.Fatalf("thumbnail %s: %v", size, err)
		}
		if got := img.Bounds().Size(); got != want {
			t.Errorf("thumbnail %s: expected %v, got %v", size, want, got)
		}
	}

	if len(auditor.calls) != 1 || auditor.calls[0].action != "media.created" || auditor.calls[0].actor != "admin@example.com" {
		t.Errorf("unexpected audit calls %+v", auditor.calls)
	}
	if v := svc.View(*f); v.ThumbnailURL != "/media/"+f.Thumbnails["300"] || v.URL != "/media/"+f.ObjectKey {
		t.Errorf("unexpected view %+v", v)
	}
}

func TestUpload_SmallImageKeepsSize(t *testing.T) {
	store := newMemStorage()
	svc := newTestService(&mockRepo{}, store, nil)

	f, err := svc.Upload(context.Background(), UploadInput{Name: "icon", Data: pngBytes(t, 40, 120)})
	if err != nil {
		t.Fatal(err)
	}
	img, err := jpeg.Decode(bytes.NewReader(store.objects[f.Thumbnails["300"]]))
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Bounds().Size(); got != (image.Point{40, 120}) {
		t.Errorf("expected 40x120, got %v", got)
	}
}

func TestUploadAndDelete_WithoutAuditor(t *testing.T) {
	store := newMemStorage()
	var stored *File
	repo := &mockRepo{
		createFn: func(_ context.Context, f *File) error { stored = f; return nil },
		getFn:    func(context.Context, string) (*File, error) { return stored, nil },
	}
	svc := newTestService(repo, store, nil)
	if svc.auditor != nil {
		t.Fatal("expected no auditor")
	}

	f, err := svc.Upload(context.Background(), UploadInput{Name: "schedule", Data: pdfBytes})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(context.Background(), "admin@example.com", f.ID); err != nil {
		t.Fatal(err)
	}
}

func TestUpload_PDFHasNoThumbnails(t *testing.T) {
	store := newMemStorage()
	svc := newTestService(&mockRepo{}, store, nil)

	f, err := svc.Upload(context.Background(), UploadInput{Name: "Majlis schedule", Data: pdfBytes})
	if err != nil {
		t.Fatal(err)
	}
	if f.MimeType != "application/pdf" || !strings.HasSuffix(f.ObjectKey, ".pdf") {
		t.Errorf("unexpected file %+v", f)
	}
	if len(f.Thumbnails) != 0 || len(store.objects) != 1 {
		t.Errorf("expected only the original, got %d objects", len(store.objects))
	}
	if v := svc.View(*f); v.ThumbnailURL != "" {
		t.Errorf("expected no thumbnail URL, got %q", v.ThumbnailURL)
	}
}

func TestUpload_Rejections(t *testing.T) {
	corrupt := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	tests := []struct {
		name  string
		input UploadInput
		code  int
	}{
		{"missing name", UploadInput{Name: "  ", Data: pdfBytes}, http.StatusUnprocessableEntity},
		{"long name", UploadInput{Name: strings.Repeat("a", 256), Data: pdfBytes}, http.StatusUnprocessableEntity},
		{"empty file", UploadInput{Name: "x"}, http.StatusUnprocessableEntity},
		{"too large", UploadInput{Name: "x", Data: make([]byte, testMaxSize+1)}, http.StatusRequestEntityTooLarge},
		{"disallowed type", UploadInput{Name: "x", Data: []byte("just some plain text")}, http.StatusUnprocessableEntity},
		{"corrupt image", UploadInput{Name: "x", Data: corrupt}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStorage()
			created := false
			repo := &mockRepo{createFn: func(context.Context, *File) error {
				created = true
				return nil
			}}
			_, err := newTestService(repo, store, nil).Upload(context.Background(), tt.input)
			assertAppError(t, err, tt.code)
			if created || len(store.objects) != 0 {
				t.Errorf("expected nothing stored, got %d objects (created=%v)", len(store.objects), created)
			}
		})
	}
}

func TestUpload_NameConflict(t *testing.T) {
	store := newMemStorage()
	repo := &mockRepo{getByNameFn: func(_ context.Context, name string) (*File, error) {
		return &File{ID: "existing", Name: name}, nil
	}}
	_, err := newTestService(repo, store, nil).Upload(context.Background(), UploadInput{Name: "banner", Data: pdfBytes})
	assertAppError(t, err, http.StatusConflict)
	if len(store.objects) != 0 {
		t.Error("expected nothing stored")
	}
}

func TestUpload_RepoFailureRemovesObjects(t *testing.T) {
	store := newMemStorage()
	repo := &mockRepo{createFn: func(context.Context, *File) error {
		return apperror.NewConflict("a file with this name already exists")
	}}
	auditor := &mockAuditor{}
	_, err := newTestService(repo, store, auditor).Upload(context.Background(), UploadInput{Name: "banner", Data: pngBytes(t, 50, 50)})
	assertAppError(t, err, http.StatusConflict)
	if len(store.objects) != 0 {
		t.Errorf("expected orphaned objects to be removed, got %d", len(store.objects))
	}
	if len(auditor.calls) != 0 {
		t.Error("expected no audit entry for a failed upload")
	}
}

func TestUpload_StorageFailure(t *testing.T) {
	store := newMemStorage()
	store.putErr = errors.New("disk full")
	_, err := newTestService(&mockRepo{}, store, nil).Upload(context.Background(), UploadInput{Name: "x", Data: pdfBytes})
	assertAppError(t, err, http.StatusInternalServerError)
}

// --- Exists / Delete / Open ---

func TestExists(t *testing.T) {
	repo := &mockRepo{getByNameFn: func(_ context.Context, name string) (*File, error) {
		switch name {
		case "taken":
			return &File{Name: name}, nil
		case "broken":
			return nil, errors.New("db down")
		}
		return nil, apperror.NewNotFound("media file not found")
	}}
	svc := newTestService(repo, newMemStorage(), nil)

	if ok, err := svc.Exists(context.Background(), "taken"); err != nil || !ok {
		t.Errorf("taken: got %v, %v", ok, err)
	}
	if ok, err := svc.Exists(context.Background(), "free"); err != nil || ok {
		t.Errorf("free: got %v, %v", ok, err)
	}
	if ok, err := svc.Exists(context.Background(), " "); err != nil || ok {
		t.Errorf("blank: got %v, %v", ok, err)
	}
	if _, err := svc.Exists(context.Background(), "broken"); err == nil {
		t.Error("expected the repository error")
	}
}

func TestDelete_RemovesObjectsAndAudits(t *testing.T) {
	store := newMemStorage()
	store.objects["2024/07/a.png"] = []byte("x")
	store.objects["2024/07/a_300.jpg"] = []byte("x")
	store.objects["2024/07/other.png"] = []byte("x")

	var deleted string
	repo := &mockRepo{
		getFn: func(_ context.Context, id string) (*File, error) {
			return &File{ID: id, Name: "banner", ObjectKey: "2024/07/a.png",
				Thumbnails: map[string]string{"300": "2024/07/a_300.jpg"}}, nil
		},
		deleteFn: func(_ context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	auditor := &mockAuditor{}
	if err := newTestService(repo, store, auditor).Delete(context.Background(), "admin@example.com", "a"); err != nil {
		t.Fatal(err)
	}
	if deleted != "a" {
		t.Errorf("expected row a deleted, got %q", deleted)
	}
	if len(store.objects) != 1 {
		t.Errorf("expected only the unrelated object to remain, got %v", store.objects)
	}
	if len(auditor.calls) != 1 || auditor.calls[0].action != "media.deleted" {
		t.Errorf("unexpected audit calls %+v", auditor.calls)
	}
}

func TestDelete_NotFound(t *testing.T) {
	err := newTestService(&mockRepo{}, newMemStorage(), nil).Delete(context.Background(), "a", "missing")
	assertAppError(t, err, http.StatusNotFound)
}

func TestOpen_Missing(t *testing.T) {
	_, err := newTestService(&mockRepo{}, newMemStorage(), nil).Open(context.Background(), "nope.png")
	assertAppError(t, err, http.StatusNotFound)
}

func TestList_Offset(t *testing.T) {
	var gotLimit, gotOffset int
	repo := &mockRepo{listFn: func(_ context.Context, _ string, limit, offset int) ([]File, int, error) {
		gotLimit, gotOffset = limit, offset
		return nil, 0, nil
	}}
	svc := newTestService(repo, newMemStorage(), nil)
	if _, _, err := svc.List(context.Background(), "", 0); err != nil {
		t.Fatal(err)
	}
	if gotLimit != PerPage || gotOffset != 0 {
		t.Errorf("page 0: limit=%d offset=%d", gotLimit, gotOffset)
	}
	if _, _, err := svc.List(context.Background(), "", 3); err != nil {
		t.Fatal(err)
	}
	if gotOffset != 2*PerPage {
		t.Errorf("page 3: offset=%d", gotOffset)
	}
}

// --- Local storage ---

func TestLocalStorage(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "2024/07/a.pdf", "application/pdf", pdfBytes); err != nil {
		t.Fatal(err)
	}
	rc, err := store.Open(ctx, "2024/07/a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Equal(got, pdfBytes) {
		t.Error("round trip mismatch")
	}

	if err := store.Delete(ctx, "2024/07/a.pdf"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Open(ctx, "2024/07/a.pdf"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, "2024/07/a.pdf"); err != nil {
		t.Errorf("deleting a missing object should succeed, got %v", err)
	}
	if store.URL("2024/07/a.pdf") != "/media/2024/07/a.pdf" {
		t.Errorf("unexpected URL %q", store.URL("2024/07/a.pdf"))
	}
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"../escape.txt", "a/../../b", "/abs", "", `a\b`, "a//b"} {
		if err := store.Put(context.Background(), key, "text/plain", []byte("x")); err == nil {
			t.Errorf("expected %q to be rejected", key)
		}
		if _, err := store.Open(context.Background(), key); !errors.Is(err, ErrObjectNotFound) {
			t.Errorf("expected %q to be unreadable, got %v", key, err)
		}
	}
}

// --- Handler ---

func TestServe(t *testing.T) {
	store := newMemStorage()
	store.objects["2024/07/a.png"] = pngBytes(t, 4, 4)
	h := NewHandler(newTestService(&mockRepo{}, store, nil), func(echo.Context) string { return "" }, testMaxSize)

	e := echo.New()
	e.GET("/media/*", h.Serve)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/2024/07/a.png", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %q", ct)
	}
	if rec.Body.Len() != len(store.objects["2024/07/a.png"]) {
		t.Error("body mismatch")
	}
}

func TestUploadAPI(t *testing.T) {
	store := newMemStorage()
	h := NewHandler(newTestService(&mockRepo{}, store, nil), func(echo.Context) string { return "admin@example.com" }, testMaxSize)

	var body bytes.Buffer
	mw := newMultipart(t, &body, "schedule.pdf", pdfBytes)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/media", &body)
	req.Header.Set(echo.HeaderContentType, mw)
	rec := httptest.NewRecorder()
	if err := h.Upload(e.NewContext(req, rec)); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"name":"schedule.pdf"`) {
		t.Errorf("expected the file name to default to the upload's, got %s", rec.Body.String())
	}
}

func newMultipart(t *testing.T, w io.Writer, filename string, data []byte) string {
	t.Helper()
	mw := multipart.NewWriter(w)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return mw.FormDataContentType()
}
