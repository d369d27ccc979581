package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	collection TEXT NOT NULL,
	fields     TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS documents_collection_seq_idx ON documents (collection, seq);
`

// SQLite stores documents as JSON text in a local database file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite: path is empty")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// busy_timeout first so the remaining pragmas wait on a locked file.
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	// Single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create documents schema: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

func (s *SQLite) List(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, collection, fields, created_at, updated_at
		   FROM documents WHERE collection = ? ORDER BY seq`, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		doc, err := scanSQLiteDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return docs, nil
}

func (s *SQLite) Get(ctx context.Context, collection, id string) (Document, error) {
	return s.get(ctx, s.db, collection, id)
}

func (s *SQLite) Create(ctx context.Context, collection string, fields map[string]any) (Document, error) {
	raw, err := encodeFields(fields)
	if err != nil {
		return Document{}, err
	}

	now := s.now().UTC()
	doc := Document{
		ID:         uuid.NewString(),
		Collection: collection,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if doc.Fields, err = decodeFields(raw); err != nil {
		return Document{}, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, collection, fields, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		doc.ID, collection, string(raw), formatSQLiteTime(now), formatSQLiteTime(now))
	if err != nil {
		return Document{}, fmt.Errorf("create %s: %w", collection, err)
	}
	return doc, nil
}

func (s *SQLite) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	doc, err := s.get(ctx, tx, collection, id)
	if err != nil {
		return err
	}

	raw, err := encodeFields(mergePatch(doc.Fields, patch))
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE documents SET fields = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		string(raw), formatSQLiteTime(s.now().UTC()), collection, id)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return tx.Commit()
}

func (s *SQLite) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return notFound(collection, id)
	}
	return nil
}

func (s *SQLite) DeleteMany(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, collection)
	for _, id := range ids {
		args = append(args, id)
	}

	query := fmt.Sprintf(`DELETE FROM documents WHERE collection = ? AND id IN (%s)`, placeholders)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete %d from %s: %w", len(ids), collection, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// sqlQueryer is satisfied by both *sql.DB and *sql.Tx.
type sqlQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLite) get(ctx context.Context, q sqlQueryer, collection, id string) (Document, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, collection, fields, created_at, updated_at
		   FROM documents WHERE collection = ? AND id = ?`, collection, id)

	doc, err := scanSQLiteDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, notFound(collection, id)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

type sqlScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteDocument(row sqlScanner) (Document, error) {
	var (
		doc              Document
		raw              string
		created, updated string
	)
	if err := row.Scan(&doc.ID, &doc.Collection, &raw, &created, &updated); err != nil {
		return Document{}, err
	}

	fields, err := decodeFields([]byte(raw))
	if err != nil {
		return Document{}, err
	}
	doc.Fields = fields

	if doc.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Document{}, fmt.Errorf("parse created_at: %w", err)
	}
	if doc.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return Document{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return doc, nil
}

func formatSQLiteTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}
