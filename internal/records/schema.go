// Package records is the uniform storage and CRUD layer shared by every
// admin-managed table (miqaats, library items, locations, shrines, texts).
// A kind is described once by a Schema; the generic Repository, Service and
// Handler do the rest, including the spreadsheet-style cell editor.
package records

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Base carries the columns every record table shares.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ColumnKind drives how a column is rendered and parsed in the sheet editor.
type ColumnKind string

const (
	KindText     ColumnKind = "text"
	KindLongText ColumnKind = "longtext"
	KindInt      ColumnKind = "int"
	KindFloat    ColumnKind = "float"
	KindEnum     ColumnKind = "enum"
	KindURL      ColumnKind = "url"
)

// Column describes one stored column besides id and the timestamps.
type Column struct {
	// Name is the SQL column name and the JSON field name.
	Name  string
	Label string
	Kind  ColumnKind

	// Options lists allowed values for KindEnum.
	Options []string

	Searchable bool
	Filterable bool
	Sortable   bool

	// Editable columns may be changed through the cell editor.
	Editable bool

	// Hidden columns are stored but not shown in the sheet.
	Hidden bool
}

// Schema describes how records of type T map onto a table.
type Schema[T any] struct {
	// Kind is the URL segment and audit entity type, e.g. "locations".
	Kind string

	// Table is the SQL table name.
	Table string

	// Title is the human-readable plural shown in page headers.
	Title string

	// Singular is used in messages, e.g. "location".
	Singular string

	Columns []Column

	// DefaultSort is the column List orders by when none is requested.
	DefaultSort string
	DefaultDesc bool

	// Base returns the shared id and timestamp fields of a record.
	Base func(*T) *Base

	// Fields returns pointers to the record's fields in Columns order. The
	// pointers are used both as scan targets and as statement arguments.
	Fields func(*T) []any

	// Name returns the label written to the activity log.
	Name func(*T) string

	// Check runs cross-field rules after struct-tag validation. Optional.
	Check func(*T) error

	// Normalize adjusts a record before validation (trim, default). Optional.
	Normalize func(*T)

	// AfterLoad derives read-only fields after a record is loaded. Optional.
	AfterLoad func(*T)
}

// Column returns the column named name.
func (s *Schema[T]) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// VisibleColumns returns the columns shown in the sheet.
func (s *Schema[T]) VisibleColumns() []Column {
	out := make([]Column, 0, len(s.Columns))
	for _, c := range s.Columns {
		if !c.Hidden {
			out = append(out, c)
		}
	}
	return out
}

// columnNames lists the stored columns in order, without id or timestamps.
func (s *Schema[T]) columnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// field returns the pointer to the field backing column name.
func (s *Schema[T]) field(rec *T, name string) (any, bool) {
	fields := s.Fields(rec)
	for i, c := range s.Columns {
		if c.Name == name {
			return fields[i], true
		}
	}
	return nil, false
}

// Display formats a record's column for the sheet.
func (s *Schema[T]) Display(rec *T, name string) string {
	ptr, ok := s.field(rec, name)
	if !ok {
		return ""
	}
	return formatValue(ptr)
}

// assign parses raw into the field behind ptr. ptr must point at a string,
// integer, float or bool, or at a pointer to one (nullable columns). An
// empty raw value clears nullable fields.
func assign(ptr any, raw string) error {
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return fmt.Errorf("field is not addressable")
	}
	target := v.Elem()

	if target.Kind() == reflect.Pointer {
		if strings.TrimSpace(raw) == "" {
			target.Set(reflect.Zero(target.Type()))
			return nil
		}
		elem := reflect.New(target.Type().Elem())
		if err := assignScalar(elem.Elem(), raw); err != nil {
			return err
		}
		target.Set(elem)
		return nil
	}
	return assignScalar(target, raw)
}

func assignScalar(target reflect.Value, raw string) error {
	raw = strings.TrimSpace(raw)
	switch target.Kind() {
	case reflect.String:
		target.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("%q is not a whole number", raw)
		}
		target.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%q is not a number", raw)
		}
		target.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%q is not true or false", raw)
		}
		target.SetBool(b)
	default:
		return fmt.Errorf("unsupported field type %s", target.Type())
	}
	return nil
}

// formatValue renders the value behind ptr; nil pointers render as "".
func formatValue(ptr any) string {
	v := reflect.ValueOf(ptr)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	default:
		return fmt.Sprint(v.Interface())
	}
}
