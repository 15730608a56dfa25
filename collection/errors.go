package collection

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a document or collection does not
	// exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when creating a collection whose
	// name is taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidQuery is returned when a search request is malformed.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrClosed is returned when operating on a closed or dropped
	// collection.
	ErrClosed = errors.New("collection closed")

	// ErrInternal marks invariant violations, e.g. a corrupted
	// snapshot. The cause is wrapped.
	ErrInternal = errors.New("internal error")
)

// ErrInvalidSchema indicates a schema that fails creation-time
// validation.
type ErrInvalidSchema struct {
	Name   string
	Reason string
}

func (e *ErrInvalidSchema) Error() string {
	return fmt.Sprintf("invalid schema %q: %s", e.Name, e.Reason)
}

// ErrSchemaMismatch indicates a write that violates the collection's
// schema, e.g. a wrong vector dimension.
type ErrSchemaMismatch struct {
	Name   string
	Reason string
}

func (e *ErrSchemaMismatch) Error() string {
	return fmt.Sprintf("schema mismatch in %q: %s", e.Name, e.Reason)
}
