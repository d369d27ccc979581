package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/folio/internal/store"
)

// factories lists every backend that can run in the current environment.
func factories(t *testing.T) map[string]func(t *testing.T) store.Store {
	t.Helper()

	out := map[string]func(t *testing.T) store.Store{
		"file": func(t *testing.T) store.Store {
			s, err := store.OpenFile(filepath.Join(t.TempDir(), "data", "folio.json"))
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) store.Store {
			s, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "folio.db"))
			require.NoError(t, err)
			return s
		},
	}

	if url := os.Getenv("FOLIO_TEST_DATABASE_URL"); url != "" {
		out["postgres"] = func(t *testing.T) store.Store {
			ctx := context.Background()
			s, err := store.OpenPostgres(ctx, url, 2, 0)
			require.NoError(t, err)
			// Each test uses its own collection names, but start clean anyway.
			for _, c := range []string{"projects", "skills"} {
				docs, err := s.List(ctx, c)
				require.NoError(t, err)
				ids := make([]string, len(docs))
				for i, d := range docs {
					ids[i] = d.ID
				}
				require.NoError(t, s.DeleteMany(ctx, c, ids))
			}
			return s
		}
	}
	return out
}

func eachBackend(t *testing.T, fn func(t *testing.T, s store.Store)) {
	for name, open := range factories(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			fn(t, s)
		})
	}
}

func TestCreateAndList(t *testing.T) {
	eachBackend(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()

		first, err := s.Create(ctx, "projects", map[string]any{"title": "Folio", "stars": 3})
		require.NoError(t, err)
		second, err := s.Create(ctx, "projects", map[string]any{"title": "Grid"})
		require.NoError(t, err)
		_, err = s.Create(ctx, "skills", map[string]any{"name": "Go"})
		require.NoError(t, err)

		assert.NotEmpty(t, first.ID)
		assert.NotEqual(t, first.ID, second.ID)
		assert.Equal(t, "projects", first.Collection)
		assert.False(t, first.CreatedAt.IsZero())

		docs, err := s.List(ctx, "projects")
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, first.ID, docs[0].ID, "insertion order")
		assert.Equal(t, second.ID, docs[1].ID)
		assert.Equal(t, "Folio", docs[0].Fields["title"])
		assert.Equal(t, float64(3), docs[0].Fields["stars"])
	})
}

func TestListEmptyCollection(t *testing.T) {
	eachBackend(t, func(t *testing.T, s store.Store) {
		docs, err := s.List(context.Background(), "projects")

		require.NoError(t, err)
		assert.NotNil(t, docs)
		assert.Empty(t, docs)
	})
}

func TestGet(t *testing.T) {
	eachBackend(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		created, err := s.Create(ctx, "projects", map[string]any{"title": "Folio"})
		require.NoError(t, err)

		got, err := s.Get(ctx, "projects", created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Folio", got.Fields["title"])

		_, err = s.Get(ctx, "skills", created.ID)
		assert.ErrorIs(t, err, store.ErrNotFound, "ids are scoped to a collection")

		_, err = s.Get(ctx, "projects", "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestUpdateMergesPatch(t *testing.T) {
	eachBackend(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		created, err := s.Create(ctx, "projects", map[string]any{
			"title":    "Folio",
			"status":   "planning",
			"featured": true,
		})
		require.NoError(t, err)

		err = s.Update(ctx, "projects", created.ID, map[string]any{
			"status":   "completed",
			"featured": nil,
			"tags":     []string{"go"},
		})
		require.NoError(t, err)

		got, err := s.Get(ctx, "projects", created.ID)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"title":  "Folio",
			"status": "completed",
			"tags":   []any{"go"},
		}, got.Fields)
		assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

		err = s.Update(ctx, "projects", "missing", map[string]any{"x": 1})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestDelete(t *testing.T) {
	eachBackend(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		created, err := s.Create(ctx, "projects", map[string]any{"title": "Folio"})
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, "projects", created.ID))

		assert.ErrorIs(t, s.Delete(ctx, "projects", created.ID), store.ErrNotFound)
		docs, err := s.List(ctx, "projects")
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}

func TestDeleteMany(t *testing.T) {
	eachBackend(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		var ids []string
		for _, title := range []string{"a", "b", "c", "d"} {
			doc, err := s.Create(ctx, "projects", map[string]any{"title": title})
			require.NoError(t, err)
			ids = append(ids, doc.ID)
		}
		other, err := s.Create(ctx, "skills", map[string]any{"name": "Go"})
		require.NoError(t, err)

		err = s.DeleteMany(ctx, "projects", []string{ids[0], ids[2], "missing", other.ID})
		require.NoError(t, err)

		docs, err := s.List(ctx, "projects")
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, ids[1], docs[0].ID)
		assert.Equal(t, ids[3], docs[1].ID)

		skills, err := s.List(ctx, "skills")
		require.NoError(t, err)
		assert.Len(t, skills, 1, "other collections untouched")

		assert.NoError(t, s.DeleteMany(ctx, "projects", nil))
	})
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	eachBackend(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		created, err := s.Create(ctx, "projects", map[string]any{"title": "Folio"})
		require.NoError(t, err)

		ro := store.ReadOnly(s)

		_, err = ro.Create(ctx, "projects", map[string]any{"title": "x"})
		assert.ErrorIs(t, err, store.ErrPermissionDenied)
		assert.ErrorIs(t, ro.Update(ctx, "projects", created.ID, map[string]any{"title": "x"}), store.ErrPermissionDenied)
		assert.ErrorIs(t, ro.Delete(ctx, "projects", created.ID), store.ErrPermissionDenied)
		assert.ErrorIs(t, ro.DeleteMany(ctx, "projects", []string{created.ID}), store.ErrPermissionDenied)

		docs, err := ro.List(ctx, "projects")
		require.NoError(t, err)
		assert.Len(t, docs, 1)
	})
}

func TestFileStoreSharedBetweenHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.json")
	a, err := store.OpenFile(path)
	require.NoError(t, err)
	b, err := store.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})

	ctx := context.Background()
	created, err := a.Create(ctx, "projects", map[string]any{"title": "Folio"})
	require.NoError(t, err)

	got, err := b.Get(ctx, "projects", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Folio", got.Fields["title"])
}

func TestFileStoreHonorsCanceledContext(t *testing.T) {
	s, err := store.OpenFile(filepath.Join(t.TempDir(), "folio.json"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.List(ctx, "projects")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := store.Open(ctx, store.Config{Driver: "file", FilePath: filepath.Join(t.TempDir(), "x.json"), ReadOnly: true})
	require.NoError(t, err)
	_, err = s.Create(ctx, "projects", nil)
	assert.ErrorIs(t, err, store.ErrPermissionDenied)

	s, err = store.Open(ctx, store.Config{Driver: "SQLite", SQLitePath: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.NoError(t, s.Close())

	_, err = store.Open(ctx, store.Config{Driver: "mongo"})
	assert.ErrorIs(t, err, store.ErrUnknownDriver)

	_, err = store.Open(ctx, store.Config{Driver: "postgres"})
	assert.Error(t, err)
}
