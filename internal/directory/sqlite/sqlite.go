// Package sqlite provides a SQLite-backed implementation of the directory.Store interface.
//
// Documents are stored as JSON text and queried with SQLite's JSON functions.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	moderncsqlite "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mmynk/circles/internal/directory"
)

// Ensure SQLiteStore implements directory.Store
var _ directory.Store = (*SQLiteStore)(nil)

// SQLiteStore implements directory.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serialises writers, which makes each statement
	// below atomic with respect to the others.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Insert stores a new document and returns its generated ID.
func (s *SQLiteStore) Insert(ctx context.Context, collection string, doc any) (string, error) {
	if err := directory.ValidateName(collection); err != nil {
		return "", err
	}
	body, err := directory.MarshalObject(doc)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	now := time.Now().Unix()

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO documents (id, collection, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		id, collection, string(body), now, now,
	)
	if err != nil {
		return "", mapError("failed to insert document", err)
	}

	return id, nil
}

// QueryEquals returns documents whose field equals value, oldest first.
func (s *SQLiteStore) QueryEquals(ctx context.Context, collection, field string, value any) ([]directory.Record, error) {
	if err := directory.ValidateName(collection, field); err != nil {
		return nil, err
	}

	return s.query(ctx,
		"SELECT id, body FROM documents WHERE collection = ? AND json_extract(body, ?) = ? ORDER BY seq",
		collection, jsonPath(field), value,
	)
}

// QueryArrayContains returns documents whose array field contains value, oldest first.
func (s *SQLiteStore) QueryArrayContains(ctx context.Context, collection, field string, value any) ([]directory.Record, error) {
	if err := directory.ValidateName(collection, field); err != nil {
		return nil, err
	}

	return s.query(ctx,
		`SELECT d.id, d.body FROM documents d
		 WHERE d.collection = ?
		   AND EXISTS (SELECT 1 FROM json_each(d.body, ?) e WHERE e.value = ?)
		 ORDER BY d.seq`,
		collection, jsonPath(field), value,
	)
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]directory.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var records []directory.Record
	for rows.Next() {
		var (
			rec  directory.Record
			body string
		)
		if err := rows.Scan(&rec.ID, &body); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		rec.Body = json.RawMessage(body)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}

	return records, nil
}

// Update merges fields into the document with json_set.
func (s *SQLiteStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := directory.ValidateName(collection); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		if err := directory.ValidateName(k); err != nil {
			return err
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	setters := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)*2+3)
	for _, k := range keys {
		encoded, err := json.Marshal(fields[k])
		if err != nil {
			return fmt.Errorf("failed to encode field %s: %w", k, err)
		}
		setters = append(setters, "?, json(?)")
		args = append(args, jsonPath(k), string(encoded))
	}
	args = append(args, time.Now().Unix(), collection, id)

	query := "UPDATE documents SET body = json_set(body, " + strings.Join(setters, ", ") +
		"), updated_at = ? WHERE collection = ? AND id = ?"

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError("failed to update document", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", directory.ErrNotFound, collection, id)
	}

	return nil
}

// AppendUnique appends value to an array field in a single UPDATE statement,
// guarded so the value is only added when missing.
func (s *SQLiteStore) AppendUnique(ctx context.Context, collection, id, field string, value any) (bool, error) {
	if err := directory.ValidateName(collection, field); err != nil {
		return false, err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to encode value: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents
		 SET body = json_insert(body, ?, json(?)), updated_at = ?
		 WHERE collection = ? AND id = ?
		   AND NOT EXISTS (SELECT 1 FROM json_each(documents.body, ?) e WHERE e.value = ?)`,
		jsonPath(field)+"[#]", string(encoded), time.Now().Unix(),
		collection, id,
		jsonPath(field), value,
	)
	if err != nil {
		return false, mapError("failed to append to document", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read append result: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	// Nothing changed: either the value was present or the document is missing.
	var exists bool
	err = s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM documents WHERE collection = ? AND id = ?)",
		collection, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check document: %w", err)
	}
	if !exists {
		return false, fmt.Errorf("%w: %s/%s", directory.ErrNotFound, collection, id)
	}

	return false, nil
}

// EnsureUnique creates a partial unique index on the field's JSON value.
func (s *SQLiteStore) EnsureUnique(ctx context.Context, collection, field string) error {
	if err := directory.ValidateName(collection, field); err != nil {
		return err
	}

	// Names are validated identifiers, so they can be embedded directly.
	query := fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS uniq_%[1]s_%[2]s ON documents(json_extract(body, '$.%[2]s')) WHERE collection = '%[1]s'",
		collection, field,
	)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return mapError("failed to create unique index", err)
	}

	return nil
}

func jsonPath(field string) string {
	return "$." + field
}

// mapError turns unique constraint violations into directory.ErrDuplicate.
func mapError(msg string, err error) error {
	var sqliteErr *moderncsqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return fmt.Errorf("%s: %w: %v", msg, directory.ErrDuplicate, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
