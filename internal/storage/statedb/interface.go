// Package statedb provides the persistent key-value store backing the AMM
// engine's market, LP share and allowance ledgers. Backends are pluggable;
// the daemon uses pebble, tests use the in-memory backend.
package statedb

import (
	"context"
)

// DB defines the basic operations any statedb backend must support.
type DB interface {
	// Read returns the value stored under key, or ErrNotFound.
	Read(ctx context.Context, key []byte) ([]byte, error)
	Write(ctx context.Context, key []byte, value []byte) error
	Delete(ctx context.Context, key []byte) error

	// Batch applies all operations atomically: either every op is
	// persisted or none is.
	Batch(ctx context.Context, ops []BatchOperation) error

	// Iterator traverses keys in [start, end). A nil end means no upper
	// bound; a nil start means the first key.
	Iterator(ctx context.Context, start, end []byte) (Iterator, error)

	Close() error
}

// Iterator allows traversing over statedb entries.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}

// BatchOperation represents a single operation in a batch.
type BatchOperation struct {
	Type  BatchOpType
	Key   []byte
	Value []byte
}

type BatchOpType int

const (
	BatchPut BatchOpType = iota
	BatchDelete
)
