package hnsw

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyVector is returned when inserting or querying with an
	// empty vector.
	ErrEmptyVector = errors.New("hnsw: empty vector")

	// ErrZeroVector is returned when a vector cannot be normalized for
	// the Cosine metric.
	ErrZeroVector = errors.New("hnsw: cannot normalize zero vector")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("hnsw: k must be positive")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("hnsw: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrRefInUse indicates an insert with a handle that is already live.
type ErrRefInUse struct {
	Ref uint32
}

func (e *ErrRefInUse) Error() string {
	return fmt.Sprintf("hnsw: handle %d already in use", e.Ref)
}
