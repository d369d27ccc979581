package grid_test

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/folio/internal/grid"
)

func TestSerializeCSVQuotesSpecialCharacters(t *testing.T) {
	records := []grid.Record{
		rec("1", map[string]any{"name": "A,B", "val": 1}),
		rec("2", map[string]any{"name": `say "hi"`, "val": 2.5}),
		rec("3", map[string]any{"name": "line\nbreak"}),
	}

	body, err := grid.Serialize(records, []string{"name", "val"}, grid.FormatCSV, fixedNow)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(body, "name,val\n\"A,B\",1\n"), body)

	rows, err := csv.NewReader(strings.NewReader(body)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"name", "val"},
		{"A,B", "1"},
		{`say "hi"`, "2.5"},
		{"line\nbreak", ""},
	}, rows)
}

func TestSerializeCSVEmptyIsHeaderOnly(t *testing.T) {
	body, err := grid.Serialize(nil, []string{"id", "name"}, grid.FormatCSV, fixedNow)

	require.NoError(t, err)
	assert.Equal(t, "id,name\n", body)
}

func TestSerializeCSVFormatsValues(t *testing.T) {
	records := []grid.Record{
		rec("7", map[string]any{
			"tags":    []any{"go", "sql"},
			"when":    time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC),
			"at":      time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC),
			"enabled": true,
		}),
	}

	body, err := grid.Serialize(records, []string{"id", "tags", "when", "at", "enabled", "absent"}, grid.FormatCSV, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "id,tags,when,at,enabled,absent\n7,\"go, sql\",2024-02-03,2024-02-03T04:05:06Z,true,\n", body)
}

func TestSerializeJSONEnvelope(t *testing.T) {
	records := []grid.Record{
		rec("1", map[string]any{"name": "Folio", "stars": 3, "extra": "dropped"}),
		rec("2", map[string]any{"name": "Grid"}),
	}

	body, err := grid.Serialize(records, []string{"name", "stars"}, grid.FormatJSON, fixedNow)
	require.NoError(t, err)

	var env struct {
		ExportedAt string           `json:"exportedAt"`
		Count      int              `json:"count"`
		Records    []map[string]any `json:"records"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &env))

	assert.Equal(t, "2024-05-01T12:00:00Z", env.ExportedAt)
	assert.Equal(t, 2, env.Count)
	require.Len(t, env.Records, 2)
	assert.Equal(t, map[string]any{"id": "1", "name": "Folio", "stars": float64(3)}, env.Records[0])
	assert.Equal(t, map[string]any{"id": "2", "name": "Grid", "stars": nil}, env.Records[1])

	// Keys keep the requested order with the id first.
	idAt := strings.Index(body, `"id"`)
	nameAt := strings.Index(body, `"name"`)
	starsAt := strings.Index(body, `"stars"`)
	assert.Less(t, idAt, nameAt)
	assert.Less(t, nameAt, starsAt)
}

func TestSerializeJSONEmptyRecords(t *testing.T) {
	body, err := grid.Serialize(nil, []string{"name"}, grid.FormatJSON, fixedNow)
	require.NoError(t, err)

	assert.Contains(t, body, `"count": 0`)
	assert.Contains(t, body, `"records": []`)
}

func TestSerializeJSONDoesNotDuplicateID(t *testing.T) {
	body, err := grid.Serialize([]grid.Record{rec("9", nil)}, []string{"id", "name"}, grid.FormatJSON, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(body, `"id"`))
}

func TestSerializeUnknownFormat(t *testing.T) {
	_, err := grid.Serialize(nil, nil, grid.Format("xlsx"), fixedNow)

	assert.ErrorIs(t, err, grid.ErrUnknownFormat)
}

func TestParseFormat(t *testing.T) {
	f, err := grid.ParseFormat(" CSV ")
	require.NoError(t, err)
	assert.Equal(t, grid.FormatCSV, f)

	f, err = grid.ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, grid.FormatJSON, f)

	_, err = grid.ParseFormat("pdf")
	assert.ErrorIs(t, err, grid.ErrUnknownFormat)
}

func TestNewExportFile(t *testing.T) {
	file := grid.NewExportFile("projects", grid.FormatCSV, "id\n", fixedNow)

	assert.Equal(t, "projects-2024-05-01.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, "id\n", file.Body)

	file = grid.NewExportFile("skills", grid.FormatJSON, "{}", fixedNow)
	assert.Equal(t, "skills-2024-05-01.json", file.Filename)
	assert.Equal(t, "application/json", file.ContentType)
}
