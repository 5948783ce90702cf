// Package library manages the devotional media library: majlis recordings,
// videos, PDFs and texts grouped into albums.
package library

import (
	"fmt"
	"slices"
	"strings"

	"github.com/misri-labs/miqaat-admin/internal/records"
)

// Category is what kind of item an entry is.
type Category string

const (
	CategoryAudio Category = "audio"
	CategoryVideo Category = "video"
	CategoryPDF   Category = "pdf"
	CategoryText  Category = "text"
)

// Item is one library entry. Tags are stored comma-separated.
type Item struct {
	records.Base

	Title        string   `json:"title" validate:"required,max=255"`
	Album        string   `json:"album" validate:"max=255"`
	Category     Category `json:"category" validate:"required,oneof=audio video pdf text"`
	AudioURL     string   `json:"audio_url" validate:"omitempty,url,max=1024"`
	PDFURL       string   `json:"pdf_url" validate:"omitempty,url,max=1024"`
	VideoURL     string   `json:"video_url" validate:"omitempty,url,max=1024"`
	CoverMediaID *string  `json:"cover_media_id" validate:"omitempty,uuid"`
	Tags         string   `json:"tags" validate:"max=512"`
}

// TagList splits Tags.
func (i *Item) TagList() []string {
	if i.Tags == "" {
		return nil
	}
	return strings.Split(i.Tags, ",")
}

// Schema maps Item onto the library_items table.
var Schema = &records.Schema[Item]{
	Kind:     "library",
	Table:    "library_items",
	Title:    "Library",
	Singular: "library item",
	Columns: []records.Column{
		{Name: "title", Label: "Title", Kind: records.KindText, Searchable: true, Sortable: true, Editable: true},
		{Name: "album", Label: "Album", Kind: records.KindText, Searchable: true, Filterable: true, Sortable: true, Editable: true},
		{Name: "category", Label: "Category", Kind: records.KindEnum, Options: []string{"audio", "video", "pdf", "text"}, Filterable: true, Sortable: true, Editable: true},
		{Name: "audio_url", Label: "Audio", Kind: records.KindURL, Editable: true},
		{Name: "pdf_url", Label: "PDF", Kind: records.KindURL, Editable: true},
		{Name: "video_url", Label: "Video", Kind: records.KindURL, Editable: true},
		{Name: "cover_media_id", Label: "Cover", Kind: records.KindText, Editable: true},
		{Name: "tags", Label: "Tags", Kind: records.KindText, Searchable: true, Editable: true},
	},
	DefaultSort: "album",
	Base:        func(i *Item) *records.Base { return &i.Base },
	Fields: func(i *Item) []any {
		return []any{&i.Title, &i.Album, &i.Category, &i.AudioURL, &i.PDFURL, &i.VideoURL, &i.CoverMediaID, &i.Tags}
	},
	Name:      func(i *Item) string { return i.Title },
	Normalize: normalize,
	Check:     check,
}

func normalize(i *Item) {
	i.Title = strings.TrimSpace(i.Title)
	i.Album = strings.TrimSpace(i.Album)
	i.Category = Category(strings.ToLower(strings.TrimSpace(string(i.Category))))
	i.AudioURL = strings.TrimSpace(i.AudioURL)
	i.PDFURL = strings.TrimSpace(i.PDFURL)
	i.VideoURL = strings.TrimSpace(i.VideoURL)
	if i.CoverMediaID != nil && strings.TrimSpace(*i.CoverMediaID) == "" {
		i.CoverMediaID = nil
	}
	i.Tags = normalizeTags(i.Tags)
}

// normalizeTags lowercases, trims and de-duplicates a comma-separated list,
// keeping first-seen order.
func normalizeTags(raw string) string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && !slices.Contains(tags, t) {
			tags = append(tags, t)
		}
	}
	return strings.Join(tags, ",")
}

// check requires the URL that matches the category.
func check(i *Item) error {
	var url string
	switch i.Category {
	case CategoryAudio:
		url = i.AudioURL
	case CategoryVideo:
		url = i.VideoURL
	case CategoryPDF:
		url = i.PDFURL
	default:
		return nil
	}
	if url == "" {
		return fmt.Errorf("a %s item needs a %s URL", i.Category, i.Category)
	}
	return nil
}
