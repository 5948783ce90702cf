package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrObjectNotFound is returned by Storage.Open for a missing key.
var ErrObjectNotFound = errors.New("object not found")

// Storage holds file bytes by object key. Keys use forward slashes.
type Storage interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error

	// URL returns where browsers fetch key.
	URL(key string) string
}

// cleanKey rejects keys that could escape the storage root.
func cleanKey(key string) (string, error) {
	// Rooting the key before Clean collapses any "..", so a changed result
	// means the key tried to climb out.
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || cleaned != key || strings.Contains(key, "\\") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return cleaned, nil
}

// --- Local disk ---

type localStorage struct {
	root string
}

// NewLocalStorage stores objects under root and serves them from /media/.
func NewLocalStorage(root string) (Storage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating media directory: %w", err)
	}
	return &localStorage{root: root}, nil
}

// path maps an object key to a file under root.
func (s *localStorage) path(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

func (s *localStorage) Put(_ context.Context, key, _ string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	// Keys carry a yyyy/mm prefix; create the month directory on demand.
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating media directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("writing media file: %w", err)
	}
	return nil
}

func (s *localStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, ErrObjectNotFound
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	return f, err
}

func (s *localStorage) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	// Deleting twice is fine.
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing media file: %w", err)
	}
	return nil
}

func (s *localStorage) URL(key string) string {
	return "/media/" + key
}

// --- S3-compatible bucket ---

// S3Options configures NewS3Storage.
type S3Options struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool

	// PublicURL, when set, is the base browsers fetch objects from.
	// Otherwise objects are proxied through /media/.
	PublicURL string
}

type s3Storage struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewS3Storage connects to an S3-compatible service and creates the bucket
// when it does not exist.
func NewS3Storage(ctx context.Context, opts S3Options) (Storage, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating S3 client: %w", err)
	}
	// Fresh MinIO installs start without the bucket.
	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %q: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket %q: %w", opts.Bucket, err)
		}
	}
	return &s3Storage{client: client, bucket: opts.Bucket, publicURL: strings.TrimRight(opts.PublicURL, "/")}, nil
}

func (s *s3Storage) Put(ctx context.Context, key, contentType string, data []byte) error {
	if _, err := cleanKey(key); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	return nil
}

func (s *s3Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if _, err := cleanKey(key); err != nil {
		return nil, ErrObjectNotFound
	}
	// GetObject is lazy; Stat surfaces a missing key before any bytes are sent.
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", key, err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("opening %s: %w", key, err)
	}
	return obj, nil
}

func (s *s3Storage) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("removing %s: %w", key, err)
	}
	return nil
}

func (s *s3Storage) URL(key string) string {
	if s.publicURL != "" {
		return s.publicURL + "/" + key
	}
	return "/media/" + key
}
