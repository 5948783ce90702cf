// Package locations manages the places miqaats and shrines refer to: mosques,
// markaz buildings and cities, each optionally pinned to coordinates and a
// time zone.
package locations

import (
	"errors"
	"strings"

	// Time zones validate without a system zoneinfo database.
	_ "time/tzdata"

	"github.com/misri-labs/miqaat-admin/internal/records"
)

// Location is one place.
type Location struct {
	records.Base

	Name      string   `json:"name" validate:"required,max=255"`
	Type      string   `json:"type" validate:"max=64"`
	City      string   `json:"city" validate:"max=128"`
	Country   string   `json:"country" validate:"max=128"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,min=-180,max=180"`
	Timezone  string   `json:"timezone" validate:"omitempty,timezone"`
}

// Schema maps Location onto the locations table.
var Schema = &records.Schema[Location]{
	Kind:     "locations",
	Table:    "locations",
	Title:    "Locations",
	Singular: "location",
	Columns: []records.Column{
		{Name: "name", Label: "Name", Kind: records.KindText, Searchable: true, Sortable: true, Editable: true},
		{Name: "type", Label: "Type", Kind: records.KindText, Filterable: true, Sortable: true, Editable: true},
		{Name: "city", Label: "City", Kind: records.KindText, Searchable: true, Filterable: true, Sortable: true, Editable: true},
		{Name: "country", Label: "Country", Kind: records.KindText, Searchable: true, Filterable: true, Sortable: true, Editable: true},
		{Name: "latitude", Label: "Latitude", Kind: records.KindFloat, Editable: true},
		{Name: "longitude", Label: "Longitude", Kind: records.KindFloat, Editable: true},
		{Name: "timezone", Label: "Time zone", Kind: records.KindText, Editable: true},
	},
	DefaultSort: "name",
	Base:        func(l *Location) *records.Base { return &l.Base },
	Fields: func(l *Location) []any {
		return []any{&l.Name, &l.Type, &l.City, &l.Country, &l.Latitude, &l.Longitude, &l.Timezone}
	},
	Name:      func(l *Location) string { return l.Name },
	Normalize: normalize,
	Check:     check,
}

func normalize(l *Location) {
	l.Name = strings.TrimSpace(l.Name)
	l.Type = strings.ToLower(strings.TrimSpace(l.Type))
	l.City = strings.TrimSpace(l.City)
	l.Country = strings.TrimSpace(l.Country)
	l.Timezone = strings.TrimSpace(l.Timezone)
}

func check(l *Location) error {
	if (l.Latitude == nil) != (l.Longitude == nil) {
		return errors.New("latitude and longitude must be set together")
	}
	return nil
}
