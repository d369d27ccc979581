package core

import (
	"slices"

	"github.com/JonMunkholm/folio/internal/grid"
)

// FieldType is the expected data type of a record field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldNumber
	FieldBool
	FieldList
	FieldURL
	FieldObject
)

// FieldSpec defines validation rules for a single record field.
type FieldSpec struct {
	Name       string              // Field key
	Type       FieldType           // Expected data type
	Required   bool                // Must be present and non-empty on create
	EnumValues []string            // Valid values for FieldEnum
	Min, Max   *float64            // Inclusive bounds for FieldNumber
	Normalizer func(string) string // Optional transformation for text values
}

// Bound returns a pointer to v for FieldSpec.Min and FieldSpec.Max.
func Bound(v float64) *float64 { return &v }

// CollectionInfo contains display information about a collection.
type CollectionInfo struct {
	Key        string // Unique identifier: "projects"
	Label      string // Display name: "Projects"
	TitleField string // Field suffixed with " (copy)" on duplicate
	Public     bool   // Listed on the public site
}

// CollectionDefinition contains everything needed to manage a collection.
type CollectionDefinition struct {
	Info       CollectionInfo
	Columns    grid.Columns
	FieldSpecs []FieldSpec

	// ExportFields is the default projection for exports. All columns when
	// empty.
	ExportFields []string

	// Defaults are applied to new records for fields the input omits.
	Defaults map[string]any

	// BulkFields lists the fields a bulk update may set.
	BulkFields []string

	// Fallback records are shown when the store has none for this
	// collection.
	Fallback []grid.Record
}

// Spec returns the field spec for name.
func (d CollectionDefinition) Spec(name string) (FieldSpec, bool) {
	i := slices.IndexFunc(d.FieldSpecs, func(s FieldSpec) bool { return s.Name == name })
	if i < 0 {
		return FieldSpec{}, false
	}
	return d.FieldSpecs[i], true
}

// ExportKeys returns the default export projection.
func (d CollectionDefinition) ExportKeys() []string {
	if len(d.ExportFields) > 0 {
		return slices.Clone(d.ExportFields)
	}
	return d.Columns.Keys()
}

// CollectionSummary describes a collection for listings.
type CollectionSummary struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Public   bool   `json:"public"`
	Records  int    `json:"records"`
	Fallback bool   `json:"fallback"`
}
