// Package store persists collection records as schemaless documents.
//
// Three backends implement Store: Postgres (JSONB rows through pgxpool),
// SQLite (modernc.org/sqlite, no cgo) and a single JSON file guarded by a
// cross-process file lock. All of them keep documents in insertion order.
package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a document id does not exist in a collection.
	ErrNotFound = errors.New("document not found")

	// ErrPermissionDenied is returned when the store refuses a write.
	ErrPermissionDenied = errors.New("permission-denied")

	// ErrUnknownDriver is returned by Open for unsupported drivers.
	ErrUnknownDriver = errors.New("unknown store driver")
)

// Document is one stored record.
type Document struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	Fields     map[string]any `json:"fields"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Store is a document store keyed by collection and id.
type Store interface {
	// List returns every document of a collection in insertion order.
	List(ctx context.Context, collection string) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	// Create inserts a document with a freshly generated id.
	Create(ctx context.Context, collection string, fields map[string]any) (Document, error)
	// Update merges patch into the stored fields. A nil value removes the key.
	Update(ctx context.Context, collection, id string, patch map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	// DeleteMany removes ids in one batched write. Unknown ids are ignored.
	DeleteMany(ctx context.Context, collection string, ids []string) error
	Close() error
}

// Driver names accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverFile     = "file"
)

// Config selects and configures a backend.
type Config struct {
	Driver      string
	DatabaseURL string
	SQLitePath  string
	FilePath    string
	MaxConns    int32
	MinConns    int32
	ReadOnly    bool
}

// Open connects to the backend named by cfg.Driver. Read-only configs are
// wrapped so every write fails with ErrPermissionDenied.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		s   Store
		err error
	)

	switch strings.ToLower(cfg.Driver) {
	case DriverPostgres:
		s, err = OpenPostgres(ctx, cfg.DatabaseURL, cfg.MaxConns, cfg.MinConns)
	case DriverSQLite:
		s, err = OpenSQLite(ctx, cfg.SQLitePath)
	case DriverFile, "":
		s, err = OpenFile(cfg.FilePath)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.ReadOnly {
		s = ReadOnly(s)
	}
	return s, nil
}

// readOnly rejects writes and passes reads through.
type readOnly struct {
	Store
}

// ReadOnly wraps s so that Create, Update, Delete and DeleteMany fail with
// ErrPermissionDenied.
func ReadOnly(s Store) Store {
	return readOnly{Store: s}
}

func (readOnly) Create(context.Context, string, map[string]any) (Document, error) {
	return Document{}, fmt.Errorf("%w: store is read-only", ErrPermissionDenied)
}

func (readOnly) Update(context.Context, string, string, map[string]any) error {
	return fmt.Errorf("%w: store is read-only", ErrPermissionDenied)
}

func (readOnly) Delete(context.Context, string, string) error {
	return fmt.Errorf("%w: store is read-only", ErrPermissionDenied)
}

func (readOnly) DeleteMany(context.Context, string, []string) error {
	return fmt.Errorf("%w: store is read-only", ErrPermissionDenied)
}

// mergePatch applies patch to a copy of fields. Nil values delete keys.
func mergePatch(fields, patch map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+len(patch))
	maps.Copy(out, fields)
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

func notFound(collection, id string) error {
	return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
}
