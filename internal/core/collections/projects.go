package collections

import (
	"github.com/JonMunkholm/folio/internal/core"
	"github.com/JonMunkholm/folio/internal/grid"
)

// ProjectStatuses are the lifecycle states of a project.
var ProjectStatuses = []string{"planning", "in-progress", "completed", "archived"}

// ProjectCategories are the project categories offered in forms.
var ProjectCategories = []string{"web", "mobile", "backend", "data", "devops", "other"}

func init() {
	registerProjects()
}

func registerProjects() {
	core.Register(core.CollectionDefinition{
		Info: core.CollectionInfo{
			Key:        "projects",
			Label:      "Projects",
			TitleField: "title",
			Public:     true,
		},
		Columns: grid.Columns{
			{Key: "title", Header: "Title", Type: grid.ColumnText, Searchable: true, Sortable: true},
			{Key: "description", Header: "Description", Type: grid.ColumnText, Searchable: true},
			{Key: "category", Header: "Category", Type: grid.ColumnEnum, Searchable: true, Filterable: true, Sortable: true},
			{Key: "status", Header: "Status", Type: grid.ColumnEnum, Searchable: true, Filterable: true, Sortable: true},
			{Key: "technologies", Header: "Technologies", Type: grid.ColumnList, Searchable: true, Filterable: true},
			{Key: "client", Header: "Client", Type: grid.ColumnText, Searchable: true, Sortable: true, Accessor: nested("client", "name")},
			{Key: "featured", Header: "Featured", Type: grid.ColumnBool, Filterable: true, Sortable: true, Render: renderYesNo},
			{Key: "created_at", Header: "Created", Type: grid.ColumnDate, Sortable: true},
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "title", Type: core.FieldText, Required: true},
			{Name: "description", Type: core.FieldText},
			{Name: "category", Type: core.FieldEnum, EnumValues: ProjectCategories},
			{Name: "status", Type: core.FieldEnum, EnumValues: ProjectStatuses},
			{Name: "technologies", Type: core.FieldList},
			{Name: "featured", Type: core.FieldBool},
			{Name: "github_url", Type: core.FieldURL},
			{Name: "live_url", Type: core.FieldURL},
			{Name: "client", Type: core.FieldObject},
			{Name: "metrics", Type: core.FieldObject},
			{Name: "created_at", Type: core.FieldDate},
		},
		ExportFields: []string{
			"title", "description", "category", "status", "technologies",
			"featured", "github_url", "live_url", "created_at",
		},
		Defaults: map[string]any{
			"status":   "planning",
			"featured": false,
		},
		BulkFields: []string{"status", "category", "featured"},
		Fallback:   fallback("projects"),
	})
}
