package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery signals a malformed search query.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrEmbedding signals that query vectorization failed. Terminal for the request.
	ErrEmbedding = errors.New("embedding failed")
	// ErrVectorStore signals a single vector-type search failure. Recovered locally.
	ErrVectorStore = errors.New("vector store error")
	// ErrCircuitOpen signals a tripped dependency. Treated like the underlying failure.
	ErrCircuitOpen = errors.New("circuit open")
	// ErrTimeout signals a per-type search that exceeded its bound.
	ErrTimeout = errors.New("search timeout")
	// ErrCache signals a cache compression or decompression failure. Never propagated.
	ErrCache = errors.New("cache error")
	// ErrNoResults signals that every requested vector type failed.
	ErrNoResults = errors.New("all vector types failed")
)

// TypeError wraps a per-vector-type failure with the type that produced it.
type TypeError struct {
	VectorType string
	Err        error
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("vector type %q: %s", e.VectorType, e.Err)
}

func (e *TypeError) Unwrap() error { return e.Err }

// NewTypeError creates a per-type search error.
func NewTypeError(vectorType string, err error) error {
	return &TypeError{VectorType: vectorType, Err: err}
}
