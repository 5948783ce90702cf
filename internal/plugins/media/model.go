// Package media stores uploaded files (images, audio, PDFs) on local disk or
// an S3-compatible bucket and records them in the media_files table. Images
// get 300 and 800 pixel thumbnails.
package media

import (
	"strings"
	"time"
)

// File is one stored upload. Name is the unique display name admins refer
// to; ObjectKey is where the bytes live in storage.
type File struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	ObjectKey  string            `json:"object_key"`
	MimeType   string            `json:"mime_type"`
	SizeBytes  int64             `json:"size_bytes"`
	Thumbnails map[string]string `json:"thumbnails,omitempty"` // size label -> object key
	UploadedBy string            `json:"uploaded_by"`
	CreatedAt  time.Time         `json:"created_at"`
}

// IsImage reports whether the file is an image.
func (f *File) IsImage() bool {
	return strings.HasPrefix(f.MimeType, "image/")
}

// UploadInput is one file received from an admin.
type UploadInput struct {
	Name       string
	UploadedBy string
	Data       []byte
}

// FileView is the JSON form of a File with resolved URLs.
type FileView struct {
	File
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// allowedTypes lists the MIME types accepted for upload, keyed by the type
// mimetype detects, with the extension stored objects get.
var allowedTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/gif":       ".gif",
	"audio/mpeg":      ".mp3",
	"audio/mp4":       ".m4a",
	"audio/x-m4a":     ".m4a",
	"audio/ogg":       ".ogg",
	"audio/wav":       ".wav",
	"application/pdf": ".pdf",
}

// thumbnailSizes are the longest-edge sizes generated for images.
var thumbnailSizes = []int{300, 800}
