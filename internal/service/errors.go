package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no circle (or user) matches the lookup.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyMember is returned when joining a circle the user is already in.
	ErrAlreadyMember = errors.New("already a member of this circle")

	// ErrDuplicateEmail is returned when registering an email that is taken.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrAuthentication is returned for unknown emails, wrong passwords and
	// sessions that may not perform the operation. The cases are not
	// distinguished.
	ErrAuthentication = errors.New("incorrect email or password")
)

// ValidationError reports a single invalid input field. It is raised before
// the directory is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// PersistenceError wraps a directory failure. The operation left no partial
// state behind and may be retried.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistence(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
