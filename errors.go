package fusego

import (
	"errors"
	"fmt"

	"github.com/hupe1980/fusego/blobstore"
	"github.com/hupe1980/fusego/collection"
)

var (
	// ErrNotFound is returned when a collection or document does not
	// exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when creating a collection whose
	// name is taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidQuery is returned for malformed search requests.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrClosed is returned when operating on a closed database or a
	// dropped collection.
	ErrClosed = errors.New("closed")

	// ErrInternal marks invariant violations such as corrupted
	// snapshots. The cause is wrapped.
	ErrInternal = errors.New("internal error")
)

// ErrInvalidSchema indicates a schema failing creation-time validation.
type ErrInvalidSchema = collection.ErrInvalidSchema

// ErrSchemaMismatch indicates a write violating a collection's schema.
type ErrSchemaMismatch = collection.ErrSchemaMismatch

// translateError unifies lower-level errors under the package's
// taxonomy. Structured schema errors pass through unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, collection.ErrNotFound), errors.Is(err, blobstore.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, collection.ErrAlreadyExists):
		return fmt.Errorf("%w: %w", ErrAlreadyExists, err)
	case errors.Is(err, collection.ErrInvalidQuery):
		return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	case errors.Is(err, collection.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	case errors.Is(err, collection.ErrInternal):
		return fmt.Errorf("%w: %w", ErrInternal, err)
	default:
		return err
	}
}
