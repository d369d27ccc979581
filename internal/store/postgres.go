package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS documents (
	seq        BIGSERIAL,
	id         TEXT PRIMARY KEY,
	collection TEXT NOT NULL,
	fields     JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS documents_collection_seq_idx ON documents (collection, seq);
`

// pgInsufficientPrivilege is the SQLSTATE for a denied statement.
const pgInsufficientPrivilege = "42501"

// Postgres stores documents as JSONB rows in a single table.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a pool to databaseURL and creates the schema.
func OpenPostgres(ctx context.Context, databaseURL string, maxConns, minConns int32) (*Postgres, error) {
	if databaseURL == "" {
		return nil, errors.New("postgres: DATABASE_URL is empty")
	}

	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}
	if minConns > 0 {
		poolCfg.MinConns = minConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return NewPostgres(ctx, pool)
}

// NewPostgres wraps an existing pool and creates the schema if needed.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("create documents schema: %w", pgError(err))
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) List(ctx context.Context, collection string) ([]Document, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, collection, fields, created_at, updated_at
		   FROM documents WHERE collection = $1 ORDER BY seq`, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, pgError(err))
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, pgError(err))
	}
	return docs, nil
}

func (p *Postgres) Get(ctx context.Context, collection, id string) (Document, error) {
	return getDocument(ctx, p.pool, collection, id, false)
}

func (p *Postgres) Create(ctx context.Context, collection string, fields map[string]any) (Document, error) {
	raw, err := encodeFields(fields)
	if err != nil {
		return Document{}, err
	}

	id := uuid.NewString()
	row := p.pool.QueryRow(ctx,
		`INSERT INTO documents (id, collection, fields) VALUES ($1, $2, $3::jsonb)
		 RETURNING id, collection, fields, created_at, updated_at`,
		id, collection, string(raw))

	doc, err := scanDocument(row)
	if err != nil {
		return Document{}, fmt.Errorf("create %s: %w", collection, pgError(err))
	}
	return doc, nil
}

func (p *Postgres) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		doc, err := getDocument(ctx, tx, collection, id, true)
		if err != nil {
			return err
		}

		raw, err := encodeFields(mergePatch(doc.Fields, patch))
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE documents SET fields = $3::jsonb, updated_at = now()
			  WHERE collection = $1 AND id = $2`,
			collection, id, string(raw))
		return err
	})
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, pgError(err))
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, pgError(err))
	}
	if tag.RowsAffected() == 0 {
		return notFound(collection, id)
	}
	return nil
}

func (p *Postgres) DeleteMany(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := p.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = ANY($2)`, collection, ids)
	if err != nil {
		return fmt.Errorf("delete %d from %s: %w", len(ids), collection, pgError(err))
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func getDocument(ctx context.Context, db DBTX, collection, id string, forUpdate bool) (Document, error) {
	query := `SELECT id, collection, fields, created_at, updated_at
	            FROM documents WHERE collection = $1 AND id = $2`
	if forUpdate {
		query += " FOR UPDATE"
	}

	doc, err := scanDocument(db.QueryRow(ctx, query, collection, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, notFound(collection, id)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, pgError(err))
	}
	return doc, nil
}

func scanDocument(row pgx.Row) (Document, error) {
	var (
		doc     Document
		raw     []byte
		created time.Time
		updated time.Time
	)
	if err := row.Scan(&doc.ID, &doc.Collection, &raw, &created, &updated); err != nil {
		return Document{}, err
	}

	fields, err := decodeFields(raw)
	if err != nil {
		return Document{}, err
	}
	doc.Fields = fields
	doc.CreatedAt = created.UTC()
	doc.UpdatedAt = updated.UTC()
	return doc, nil
}

// pgError maps insufficient_privilege to ErrPermissionDenied and leaves
// every other error untouched.
func pgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgInsufficientPrivilege {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, pgErr.Message)
	}
	return err
}

func encodeFields(fields map[string]any) ([]byte, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return raw, nil
}

func decodeFields(raw []byte) (map[string]any, error) {
	fields := map[string]any{}
	if len(raw) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return fields, nil
}
