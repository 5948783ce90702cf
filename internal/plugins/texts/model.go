// Package texts manages devotional texts (duas, marsiyas, salaams) written
// in markdown. The rendered HTML is derived on read and sanitized.
package texts

import (
	"errors"
	"html"
	"log/slog"
	"regexp"
	"strings"

	"github.com/misri-labs/miqaat-admin/internal/records"
	"github.com/misri-labs/miqaat-admin/internal/sanitize"
)

// Text is one devotional text.
type Text struct {
	records.Base

	Title    string `json:"title" validate:"required,max=255"`
	Category string `json:"category" validate:"max=64"`
	Language string `json:"language" validate:"required,max=16"`
	Body     string `json:"body" validate:"required,max=1000000"`

	// BodyHTML is Body rendered and sanitized. Not stored.
	BodyHTML string `json:"body_html"`
}

// Schema maps Text onto the texts table.
var Schema = &records.Schema[Text]{
	Kind:     "texts",
	Table:    "texts",
	Title:    "Texts",
	Singular: "text",
	Columns: []records.Column{
		{Name: "title", Label: "Title", Kind: records.KindText, Searchable: true, Sortable: true, Editable: true},
		{Name: "category", Label: "Category", Kind: records.KindText, Filterable: true, Sortable: true, Editable: true},
		{Name: "language", Label: "Language", Kind: records.KindText, Filterable: true, Sortable: true, Editable: true},
		{Name: "body", Label: "Body", Kind: records.KindLongText, Searchable: true, Editable: true},
	},
	DefaultSort: "title",
	Base:        func(t *Text) *records.Base { return &t.Base },
	Fields:      func(t *Text) []any { return []any{&t.Title, &t.Category, &t.Language, &t.Body} },
	Name:        func(t *Text) string { return t.Title },
	Normalize:   normalize,
	Check:       check,
	AfterLoad:   render,
}

// languageTag loosely matches BCP 47 tags such as "en", "ar" or "gu-IN".
var languageTag = regexp.MustCompile(`^[a-z]{2,3}(-[A-Za-z0-9]{2,8})*$`)

func normalize(t *Text) {
	t.Title = strings.TrimSpace(t.Title)
	t.Category = strings.ToLower(strings.TrimSpace(t.Category))
	t.Language = strings.TrimSpace(t.Language)
	if t.Language == "" {
		t.Language = "en"
	}
	t.Body = strings.TrimSpace(t.Body)
}

func check(t *Text) error {
	if !languageTag.MatchString(t.Language) {
		return errors.New("language must be a tag such as en, ar or gu-IN")
	}
	return nil
}

func render(t *Text) {
	out, err := sanitize.Markdown(t.Body)
	if err != nil {
		slog.Warn("failed to render text body", slog.String("id", t.ID), slog.Any("error", err))
		out = "<pre>" + html.EscapeString(t.Body) + "</pre>"
	}
	t.BodyHTML = out
}
