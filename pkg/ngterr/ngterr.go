// Package ngterr defines the sentinel errors shared by every package in this
// module, so callers can use errors.Is regardless of which layer produced the
// failure.
package ngterr

import "errors"

var (
	// ErrNotFound is returned when an ObjectID is not present in the store or graph.
	ErrNotFound = errors.New("ngt: object not found")

	// ErrDimensionMismatch is returned when a vector's length does not match
	// the dimension the store or index was configured with.
	ErrDimensionMismatch = errors.New("ngt: vector dimension mismatch")

	// ErrInvalidVector is returned when a vector fails a kernel- or
	// store-level precondition (e.g. zero norm under a normalized metric).
	ErrInvalidVector = errors.New("ngt: invalid vector")

	// ErrReadOnly is returned when a mutating operation is attempted on a
	// compact or otherwise read-only structure.
	ErrReadOnly = errors.New("ngt: structure is read-only")

	// ErrCorrupt is returned when persisted data fails a structural check on load.
	ErrCorrupt = errors.New("ngt: corrupt persisted data")

	// ErrOutOfSpace is returned when a bounded structure (e.g. an object
	// store backed by a fixed arena) cannot accommodate a new entry.
	ErrOutOfSpace = errors.New("ngt: out of space")

	// ErrDistanceDomain is returned when a metric kernel receives input
	// outside its valid domain (e.g. hyperbolic metrics outside the disk).
	ErrDistanceDomain = errors.New("ngt: input outside metric domain")

	// ErrAborted is returned when a context is cancelled mid-search; any
	// results gathered so far are still returned alongside it.
	ErrAborted = errors.New("ngt: operation aborted")

	// ErrInternal wraps invariant violations that should never happen in
	// correct operation (e.g. a graph adjacency list pointing at a freed id).
	ErrInternal = errors.New("ngt: internal invariant violated")
)
