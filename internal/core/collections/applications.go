package collections

import (
	"github.com/JonMunkholm/folio/internal/core"
	"github.com/JonMunkholm/folio/internal/grid"
)

// ApplicationStatuses are the stages of a job application.
var ApplicationStatuses = []string{"applied", "screening", "interviewing", "offer", "rejected", "withdrawn"}

func init() {
	registerApplications()
}

func registerApplications() {
	core.Register(core.CollectionDefinition{
		Info: core.CollectionInfo{
			Key:        "applications",
			Label:      "Applications",
			TitleField: "position",
		},
		Columns: grid.Columns{
			{Key: "company", Header: "Company", Type: grid.ColumnText, Searchable: true, Sortable: true},
			{Key: "position", Header: "Position", Type: grid.ColumnText, Searchable: true, Sortable: true},
			{Key: "status", Header: "Status", Type: grid.ColumnEnum, Searchable: true, Filterable: true, Sortable: true},
			{Key: "applied_at", Header: "Applied", Type: grid.ColumnDate, Sortable: true},
			{Key: "location", Header: "Location", Type: grid.ColumnText, Searchable: true, Filterable: true, Sortable: true},
			{Key: "remote", Header: "Remote", Type: grid.ColumnBool, Filterable: true, Sortable: true, Render: renderYesNo},
			{Key: "salary", Header: "Salary", Type: grid.ColumnNumber, Sortable: true, Render: renderMoney},
			{Key: "notes", Header: "Notes", Type: grid.ColumnText, Searchable: true},
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "company", Type: core.FieldText, Required: true},
			{Name: "position", Type: core.FieldText, Required: true},
			{Name: "status", Type: core.FieldEnum, EnumValues: ApplicationStatuses},
			{Name: "applied_at", Type: core.FieldDate},
			{Name: "location", Type: core.FieldText, Normalizer: NormalizeLocation},
			{Name: "remote", Type: core.FieldBool},
			{Name: "salary", Type: core.FieldNumber, Min: core.Bound(0)},
			{Name: "url", Type: core.FieldURL},
			{Name: "notes", Type: core.FieldText},
		},
		ExportFields: []string{
			"company", "position", "status", "applied_at", "location", "remote", "salary", "url", "notes",
		},
		Defaults: map[string]any{
			"status": "applied",
		},
		BulkFields: []string{"status", "remote"},
	})
}
