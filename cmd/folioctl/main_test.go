package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/folio/internal/grid"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantKey    string
		wantValues []string
		wantErr    bool
	}{
		{name: "single value", raw: "status=offer", wantKey: "status", wantValues: []string{"offer"}},
		{name: "several values", raw: "status=offer, applied", wantKey: "status", wantValues: []string{"offer", "applied"}},
		{name: "empty value list clears", raw: "status=", wantKey: "status"},
		{name: "blank entries dropped", raw: "tags=go,,", wantKey: "tags", wantValues: []string{"go"}},
		{name: "missing equals", raw: "status", wantErr: true},
		{name: "missing key", raw: "=offer", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, values, err := parseFilter(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.wantValues, values)
		})
	}
}

func TestParseSort(t *testing.T) {
	key, dir := parseSort("title")
	assert.Equal(t, "title", key)
	assert.Equal(t, grid.Ascending, dir)

	key, dir = parseSort("-created_at")
	assert.Equal(t, "created_at", key)
	assert.Equal(t, grid.Descending, dir)

	key, dir = parseSort("+title")
	assert.Equal(t, "title", key)
	assert.Equal(t, grid.Ascending, dir)
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b c", oneLine("a\n b\tc "))
}

// runApp runs folioctl against a fresh file store and returns stdout.
func runApp(t *testing.T, storePath string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("STORE_DRIVER", "file")
	t.Setenv("FILE_STORE_PATH", storePath)
	t.Setenv("STORE_READ_ONLY", "false")

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard

	argv := append([]string{"folioctl", "--env-file", ""}, args...)
	err := app.Run(argv)
	return out.String(), err
}

func TestSeedThenExport(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "folio.json")
	seedPath := filepath.Join(dir, "seed.yaml")

	seed := `projects:
  - title: Beta
    status: completed
  - title: Alpha
`
	require.NoError(t, os.WriteFile(seedPath, []byte(seed), 0o644))

	_, err := runApp(t, storePath, "seed", "-q", "-f", seedPath)
	require.NoError(t, err)

	out, err := runApp(t, storePath, "export", "--field", "title", "--sort", "title", "projects")
	require.NoError(t, err)
	assert.Equal(t, "title\nAlpha\nBeta\n", out)

	out, err = runApp(t, storePath, "export", "--field", "title", "--filter", "status=planning", "projects")
	require.NoError(t, err)
	assert.Equal(t, "title\nAlpha\n", out)

	out, err = runApp(t, storePath, "export", "--format", "yaml", "projects")
	assert.ErrorIs(t, err, grid.ErrUnknownFormat)
	assert.Empty(t, out)
}

func TestSeedRejectsInvalidRecords(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "folio.json")
	seedPath := filepath.Join(dir, "seed.yaml")

	// The second entry has no title, so nothing is stored.
	seed := `projects:
  - title: Alpha
  - description: untitled
`
	require.NoError(t, os.WriteFile(seedPath, []byte(seed), 0o644))

	_, err := runApp(t, storePath, "seed", "-q", "-f", seedPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "projects record 2")

	out, err := runApp(t, storePath, "export", "--field", "title", "projects")
	require.NoError(t, err)
	assert.NotContains(t, out, "Alpha")
}

func TestCommandsRequireArguments(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "folio.json")

	for _, args := range [][]string{
		{"list"},
		{"export"},
		{"delete", "projects"},
	} {
		_, err := runApp(t, storePath, args...)
		assert.ErrorIs(t, err, errUsage, "args=%v", args)
	}
}
