package grid_test

import (
	"strconv"

	"github.com/JonMunkholm/folio/internal/grid"
)

// applicationColumns mirrors the applications collection closely enough to
// exercise every column type.
var applicationColumns = grid.Columns{
	{Key: "company", Header: "Company", Type: grid.ColumnText, Searchable: true, Sortable: true},
	{Key: "status", Header: "Status", Type: grid.ColumnEnum, Searchable: true, Filterable: true, Sortable: true},
	{Key: "applied_at", Header: "Applied", Type: grid.ColumnDate, Sortable: true},
	{Key: "salary", Header: "Salary", Type: grid.ColumnNumber, Sortable: true},
	{Key: "remote", Header: "Remote", Type: grid.ColumnBool, Filterable: true, Sortable: true},
	{Key: "tags", Header: "Tags", Type: grid.ColumnList, Searchable: true, Filterable: true},
	{Key: "notes", Header: "Notes", Type: grid.ColumnText},
}

func rec(id string, fields map[string]any) grid.Record {
	return grid.Record{ID: id, Origin: grid.OriginRemote, Fields: fields}
}

func ids(records []grid.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

// numbered builds n records with ids "1".."n" and the given status cycle.
func numbered(n int, statuses ...string) []grid.Record {
	out := make([]grid.Record, n)
	for i := range out {
		status := "applied"
		if len(statuses) > 0 {
			status = statuses[i%len(statuses)]
		}
		out[i] = rec(strconv.Itoa(i+1), map[string]any{
			"company": "Company " + strconv.Itoa(i+1),
			"status":  status,
		})
	}
	return out
}

func sampleApplications() []grid.Record {
	return []grid.Record{
		rec("1", map[string]any{
			"company":    "Acme",
			"status":     "applied",
			"applied_at": "2024-03-01",
			"salary":     120000.0,
			"remote":     true,
			"tags":       []any{"go", "backend"},
			"notes":      "referral from Dana",
		}),
		rec("2", map[string]any{
			"company":    "globex",
			"status":     "offer",
			"applied_at": "2024-01-15",
			"salary":     "$95,000",
			"remote":     false,
			"tags":       []any{"frontend"},
		}),
		rec("3", map[string]any{
			"company":    "Initech",
			"status":     "interviewing",
			"applied_at": "not a date",
			"remote":     "yes",
			"tags":       []any{"go", "platform"},
		}),
		rec("4", map[string]any{
			"company":    "Hooli",
			"status":     "offer",
			"applied_at": "2024-02-10",
			"salary":     150000,
		}),
	}
}
