// Package postgres provides a PostgreSQL implementation of directory.Store
// using JSONB documents.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/mmynk/circles/internal/directory"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    seq BIGSERIAL PRIMARY KEY,
    id TEXT NOT NULL UNIQUE,
    collection TEXT NOT NULL,
    body JSONB NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
`

const (
	insertSQL = `INSERT INTO documents (id, collection, body, created_at, updated_at) VALUES ($1, $2, $3::jsonb, $4, $5)`

	queryEqualsSQL = `SELECT id, body FROM documents WHERE collection = $1 AND body -> $2::text = $3::jsonb ORDER BY seq`

	queryContainsSQL = `SELECT id, body FROM documents WHERE collection = $1 AND body -> $2::text @> $3::jsonb ORDER BY seq`

	updateSQL = `UPDATE documents SET body = body || $1::jsonb, updated_at = $2 WHERE collection = $3 AND id = $4`

	appendUniqueSQL = `UPDATE documents
		SET body = jsonb_set(body, ARRAY[$1::text], COALESCE(body -> $1::text, '[]'::jsonb) || $2::jsonb), updated_at = $3
		WHERE collection = $4 AND id = $5 AND NOT COALESCE(body -> $1::text @> $2::jsonb, false)`

	existsSQL = `SELECT EXISTS(SELECT 1 FROM documents WHERE collection = $1 AND id = $2)`

	ensureUniqueSQL = `CREATE UNIQUE INDEX IF NOT EXISTS uniq_%[1]s_%[2]s ON documents ((body ->> '%[2]s')) WHERE collection = '%[1]s'`
)

// Ensure PostgresStore implements directory.Store
var _ directory.Store = (*PostgresStore)(nil)

// PostgresStore implements directory.Store on a PostgreSQL database.
type PostgresStore struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// Open connects to dsn with the pgx driver, pings it, and applies the schema.
func Open(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return NewPostgresStore(db), nil
}

// NewPostgresStore wraps an open database handle. The schema must already exist.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

// Close closes the database handle.
func (s *PostgresStore) Close() error {
	return s.DB.Close()
}

// Insert stores doc as a new JSONB document.
func (s *PostgresStore) Insert(ctx context.Context, collection string, doc any) (string, error) {
	if err := directory.ValidateName(collection); err != nil {
		return "", err
	}
	body, err := directory.MarshalObject(doc)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	now := time.Now().Unix()
	if _, err := s.DB.ExecContext(ctx, insertSQL, id, collection, string(body), now, now); err != nil {
		return "", mapError("insert", err)
	}
	return id, nil
}

// QueryEquals compares the field's JSONB value with value encoded as JSON.
func (s *PostgresStore) QueryEquals(ctx context.Context, collection, field string, value any) ([]directory.Record, error) {
	if err := directory.ValidateName(collection, field); err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return s.query(ctx, queryEqualsSQL, collection, field, string(encoded))
}

// QueryArrayContains uses JSONB containment of a one-element array.
func (s *PostgresStore) QueryArrayContains(ctx context.Context, collection, field string, value any) ([]directory.Record, error) {
	if err := directory.ValidateName(collection, field); err != nil {
		return nil, err
	}
	encoded, err := json.Marshal([]any{value})
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return s.query(ctx, queryContainsSQL, collection, field, string(encoded))
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]directory.Record, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var records []directory.Record
	for rows.Next() {
		var (
			rec  directory.Record
			body []byte
		)
		if err := rows.Scan(&rec.ID, &body); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		rec.Body = json.RawMessage(body)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return records, nil
}

// Update merges fields into the document with the JSONB || operator.
func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := directory.ValidateName(collection); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	for k := range fields {
		if err := directory.ValidateName(k); err != nil {
			return err
		}
	}
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}

	res, err := s.DB.ExecContext(ctx, updateSQL, string(patch), time.Now().Unix(), collection, id)
	if err != nil {
		return mapError("update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", directory.ErrNotFound, collection, id)
	}
	return nil
}

// AppendUnique appends value in one UPDATE. The row lock taken by the
// UPDATE makes concurrent appends re-check the containment guard.
func (s *PostgresStore) AppendUnique(ctx context.Context, collection, id, field string, value any) (bool, error) {
	if err := directory.ValidateName(collection, field); err != nil {
		return false, err
	}
	element, err := json.Marshal([]any{value})
	if err != nil {
		return false, fmt.Errorf("encode value: %w", err)
	}

	res, err := s.DB.ExecContext(ctx, appendUniqueSQL, field, string(element), time.Now().Unix(), collection, id)
	if err != nil {
		return false, mapError("append", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("append result: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	var exists bool
	if err := s.DB.QueryRowContext(ctx, existsSQL, collection, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check document: %w", err)
	}
	if !exists {
		return false, fmt.Errorf("%w: %s/%s", directory.ErrNotFound, collection, id)
	}
	return false, nil
}

// EnsureUnique creates a partial unique expression index for field.
func (s *PostgresStore) EnsureUnique(ctx context.Context, collection, field string) error {
	if err := directory.ValidateName(collection, field); err != nil {
		return err
	}
	if _, err := s.DB.ExecContext(ctx, fmt.Sprintf(ensureUniqueSQL, collection, field)); err != nil {
		return mapError("create unique index", err)
	}
	return nil
}

func mapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w: %s", op, directory.ErrDuplicate, pgErr.Message)
	}
	return fmt.Errorf("%s: %w", op, err)
}
