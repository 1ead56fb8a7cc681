// Package directory provides abstractions for the document store that holds
// users and circles.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrNotFound is returned when a document id does not exist in the collection.
	ErrNotFound = errors.New("document not found")

	// ErrDuplicate is returned when a write violates a unique index.
	ErrDuplicate = errors.New("duplicate value for unique field")

	// ErrInvalidName is returned for collection or field names that are not
	// plain identifiers.
	ErrInvalidName = errors.New("invalid collection or field name")
)

// Store defines the document operations the services depend on.
// This abstraction allows swapping backends (SQLite, PostgreSQL, a hosted
// document database) without changing the service layer.
//
// Every query returns records in insertion order.
type Store interface {
	// Insert stores doc as a new document and returns the assigned ID.
	// doc must marshal to a JSON object.
	Insert(ctx context.Context, collection string, doc any) (string, error)

	// QueryEquals returns the documents whose field equals value.
	QueryEquals(ctx context.Context, collection, field string, value any) ([]Record, error)

	// QueryArrayContains returns the documents whose array field contains value.
	QueryArrayContains(ctx context.Context, collection, field string, value any) ([]Record, error)

	// Update merges fields into an existing document.
	// Returns ErrNotFound if the document does not exist.
	Update(ctx context.Context, collection, id string, fields map[string]any) error

	// AppendUnique atomically appends value to the array field unless it is
	// already present. added is false when the value was already there.
	// Returns ErrNotFound if the document does not exist.
	AppendUnique(ctx context.Context, collection, id, field string, value any) (added bool, err error)

	// EnsureUnique installs a unique index on field within collection.
	// Later writes that would duplicate a value fail with ErrDuplicate.
	EnsureUnique(ctx context.Context, collection, field string) error

	// Close releases any resources held by the store.
	Close() error
}

// Record is a stored document and its ID.
type Record struct {
	ID   string
	Body json.RawMessage
}

// Decode unmarshals the document body into v.
func (r Record) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", r.ID, err)
	}
	return nil
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateName checks that each name is a plain identifier. Backends embed
// names in JSON paths and index definitions, so anything else is rejected.
func ValidateName(names ...string) error {
	for _, n := range names {
		if !identifier.MatchString(n) {
			return fmt.Errorf("%w: %q", ErrInvalidName, n)
		}
	}
	return nil
}

// MarshalObject encodes doc and checks that the result is a JSON object.
func MarshalObject(doc any) ([]byte, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	if len(body) == 0 || body[0] != '{' {
		return nil, fmt.Errorf("document must encode to a JSON object, got %s", body)
	}
	return body, nil
}
