package collections

import (
	"github.com/JonMunkholm/folio/internal/core"
	"github.com/JonMunkholm/folio/internal/grid"
)

// SkillCategories are the skill groupings shown on the public page.
var SkillCategories = []string{"language", "framework", "database", "cloud", "tool", "soft-skill"}

func init() {
	registerSkills()
}

func registerSkills() {
	core.Register(core.CollectionDefinition{
		Info: core.CollectionInfo{
			Key:        "skills",
			Label:      "Skills",
			TitleField: "name",
			Public:     true,
		},
		Columns: grid.Columns{
			{Key: "name", Header: "Name", Type: grid.ColumnText, Searchable: true, Sortable: true},
			{Key: "category", Header: "Category", Type: grid.ColumnEnum, Searchable: true, Filterable: true, Sortable: true},
			{Key: "level", Header: "Level", Type: grid.ColumnNumber, Sortable: true, Render: renderPercent},
			{Key: "years", Header: "Years", Type: grid.ColumnNumber, Sortable: true},
			{Key: "featured", Header: "Featured", Type: grid.ColumnBool, Filterable: true, Sortable: true, Render: renderYesNo},
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "name", Type: core.FieldText, Required: true},
			{Name: "category", Type: core.FieldEnum, EnumValues: SkillCategories},
			{Name: "level", Type: core.FieldNumber, Min: core.Bound(0), Max: core.Bound(100)},
			{Name: "years", Type: core.FieldNumber, Min: core.Bound(0)},
			{Name: "featured", Type: core.FieldBool},
		},
		Defaults: map[string]any{
			"featured": false,
		},
		BulkFields: []string{"category", "featured"},
		Fallback:   fallback("skills"),
	})
}
