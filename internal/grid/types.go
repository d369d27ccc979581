// Package grid implements the record table used by the admin panel: text
// search and categorical filters, per-column sorting, id-keyed selection,
// pagination, row windowing and CSV/JSON export.
//
// Everything in this package is an in-memory derivation over a snapshot of
// records. Nothing here talks to a store; bulk actions receive their
// side effects as injected callbacks.
package grid

import "strings"

// Origin tags where a record came from.
type Origin string

const (
	// OriginRemote records live in the document store and can be mutated.
	OriginRemote Origin = "remote"
	// OriginLocalFallback records are built-in demo content shown when the
	// store is empty or unreachable. They are never writable.
	OriginLocalFallback Origin = "local-fallback"
)

// Record is one row of a collection: a stable id plus an open set of fields.
type Record struct {
	ID     string         `json:"id"`
	Origin Origin         `json:"origin"`
	Fields map[string]any `json:"fields"`
}

// Value returns the field stored under key. The pseudo-field "id" resolves
// to the record id.
func (r Record) Value(key string) (any, bool) {
	if key == "id" {
		return r.ID, true
	}
	v, ok := r.Fields[key]
	return v, ok
}

// Mutable reports whether the record may be updated or deleted.
func (r Record) Mutable() bool {
	return r.Origin != OriginLocalFallback
}

// ColumnType selects the comparator and filter semantics of a column.
type ColumnType int

const (
	ColumnText ColumnType = iota
	ColumnEnum
	ColumnNumber
	ColumnDate
	ColumnBool
	ColumnList
)

// String returns the wire name of the type.
func (t ColumnType) String() string {
	switch t {
	case ColumnEnum:
		return "enum"
	case ColumnNumber:
		return "number"
	case ColumnDate:
		return "date"
	case ColumnBool:
		return "bool"
	case ColumnList:
		return "list"
	default:
		return "text"
	}
}

// Column describes one table column. Columns are defined once per
// collection and never change afterwards.
type Column struct {
	Key        string     // Field key in Record.Fields
	Header     string     // Display label
	Type       ColumnType // Comparator and filter semantics
	Searchable bool       // Included in free-text search
	Filterable bool       // Offers a categorical filter
	Sortable   bool       // Accepts SetSort

	// Accessor overrides the default Fields[Key] lookup, e.g. to reach into
	// a nested object.
	Accessor func(Record) any

	// Render formats the value for display. Stringify is used when nil.
	Render func(any) string
}

// Value extracts this column's value from rec.
func (c Column) Value(rec Record) any {
	if c.Accessor != nil {
		return c.Accessor(rec)
	}
	v, _ := rec.Value(c.Key)
	return v
}

// Display formats this column's value from rec for humans.
func (c Column) Display(rec Record) string {
	v := c.Value(rec)
	if c.Render != nil {
		return c.Render(v)
	}
	return Stringify(v)
}

// Columns is an ordered column set.
type Columns []Column

// Lookup finds a column by key (case-insensitive).
func (cs Columns) Lookup(key string) (Column, bool) {
	for _, c := range cs {
		if strings.EqualFold(c.Key, key) {
			return c, true
		}
	}
	return Column{}, false
}

// Keys returns the column keys in order.
func (cs Columns) Keys() []string {
	keys := make([]string, len(cs))
	for i, c := range cs {
		keys[i] = c.Key
	}
	return keys
}

// Direction is the sort direction of the active sort column.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// SortState is the single active sort. The zero value means unsorted, in
// which case rows keep the order the store returned them in.
type SortState struct {
	Column    string    `json:"column,omitempty"`
	Direction Direction `json:"direction,omitempty"`
}

// Active reports whether a sort column is set.
func (s SortState) Active() bool {
	return s.Column != ""
}

// Filters maps a column key to the accepted values for that column.
// An empty (or missing) value list places no constraint on the column.
type Filters map[string][]string

// Clone returns a deep copy.
func (f Filters) Clone() Filters {
	out := make(Filters, len(f))
	for k, v := range f {
		if len(v) == 0 {
			continue
		}
		out[k] = append([]string(nil), v...)
	}
	return out
}
