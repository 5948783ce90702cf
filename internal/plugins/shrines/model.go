// Package shrines manages the mazaar (shrine) directory. A shrine may name
// the Hijri day of its urs, the annual commemoration.
package shrines

import (
	"errors"
	"fmt"
	"strings"

	"github.com/misri-labs/miqaat-admin/internal/hijri"
	"github.com/misri-labs/miqaat-admin/internal/records"
)

// Shrine is one mazaar. UrsMonth is zero-indexed like miqaat months.
type Shrine struct {
	records.Base

	Name        string   `json:"name" validate:"required,max=255"`
	LocationID  *string  `json:"location_id" validate:"omitempty,uuid"`
	City        string   `json:"city" validate:"max=128"`
	Country     string   `json:"country" validate:"max=128"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,min=-180,max=180"`
	UrsDay      *int     `json:"urs_day" validate:"omitempty,min=1,max=30"`
	UrsMonth    *int     `json:"urs_month" validate:"omitempty,min=0,max=11"`
	Description string   `json:"description" validate:"max=5000"`
	ImageURL    string   `json:"image_url" validate:"omitempty,url,max=1024"`
}

// UrsLabel formats the urs date, e.g. "27 Rajab al-Asab", or "" when unset.
func (s *Shrine) UrsLabel() string {
	if s.UrsDay == nil || s.UrsMonth == nil {
		return ""
	}
	return fmt.Sprintf("%d %s", *s.UrsDay, hijri.MonthName(*s.UrsMonth))
}

// Schema maps Shrine onto the shrines table.
var Schema = &records.Schema[Shrine]{
	Kind:     "shrines",
	Table:    "shrines",
	Title:    "Shrines",
	Singular: "shrine",
	Columns: []records.Column{
		{Name: "name", Label: "Name", Kind: records.KindText, Searchable: true, Sortable: true, Editable: true},
		{Name: "location_id", Label: "Location", Kind: records.KindText, Filterable: true, Hidden: true},
		{Name: "city", Label: "City", Kind: records.KindText, Searchable: true, Filterable: true, Sortable: true, Editable: true},
		{Name: "country", Label: "Country", Kind: records.KindText, Searchable: true, Filterable: true, Sortable: true, Editable: true},
		{Name: "latitude", Label: "Latitude", Kind: records.KindFloat, Editable: true},
		{Name: "longitude", Label: "Longitude", Kind: records.KindFloat, Editable: true},
		{Name: "urs_day", Label: "Urs day", Kind: records.KindInt, Editable: true},
		{Name: "urs_month", Label: "Urs month", Kind: records.KindInt, Filterable: true, Sortable: true, Editable: true},
		{Name: "description", Label: "Description", Kind: records.KindLongText, Searchable: true, Editable: true},
		{Name: "image_url", Label: "Image", Kind: records.KindURL, Editable: true},
	},
	DefaultSort: "name",
	Base:        func(s *Shrine) *records.Base { return &s.Base },
	Fields: func(s *Shrine) []any {
		return []any{&s.Name, &s.LocationID, &s.City, &s.Country, &s.Latitude, &s.Longitude,
			&s.UrsDay, &s.UrsMonth, &s.Description, &s.ImageURL}
	},
	Name:      func(s *Shrine) string { return s.Name },
	Normalize: normalize,
	Check:     check,
}

func normalize(s *Shrine) {
	s.Name = strings.TrimSpace(s.Name)
	s.City = strings.TrimSpace(s.City)
	s.Country = strings.TrimSpace(s.Country)
	s.Description = strings.TrimSpace(s.Description)
	s.ImageURL = strings.TrimSpace(s.ImageURL)
	if s.LocationID != nil && strings.TrimSpace(*s.LocationID) == "" {
		s.LocationID = nil
	}
}

func check(s *Shrine) error {
	if (s.Latitude == nil) != (s.Longitude == nil) {
		return errors.New("latitude and longitude must be set together")
	}
	if (s.UrsDay == nil) != (s.UrsMonth == nil) {
		return errors.New("urs day and urs month must be set together")
	}
	if s.UrsDay != nil {
		// Only kabisa years give Zilhaj a 30th.
		longest := max(hijri.DaysInMonth(1, *s.UrsMonth), hijri.DaysInMonth(2, *s.UrsMonth))
		if *s.UrsDay > longest {
			return fmt.Errorf("%s has at most %d days", hijri.MonthName(*s.UrsMonth), longest)
		}
	}
	return nil
}
