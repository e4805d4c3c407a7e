// Package persistence implements the PersistenceBackend contract (spec.md
// §4.4): the durable record-of-truth store every memory is exclusively
// owned by. IndexBackend and VectorBackend hold derived views that must be
// rebuildable from a PersistenceBackend alone via reindex.
package persistence

import (
	"context"
	"errors"

	"github.com/zircote/subcog/internal/model"
)

// ErrNotFound is returned by Get when no record with the given id exists.
var ErrNotFound = errors.New("persistence: memory not found")

// Backend is the PersistenceBackend contract. Every field of a Memory,
// including embedding, tags and timestamps, must round-trip byte-for-byte
// across a process restart (spec.md §4.4, tested by the "Roundtrip"
// property in spec.md §8).
type Backend interface {
	// Put inserts or replaces the full record (idempotent on ID).
	Put(ctx context.Context, m model.Memory) error

	// Get returns the full record for id, or ErrNotFound.
	Get(ctx context.Context, id string) (model.Memory, error)

	// Remove deletes the record for id, reporting whether it existed.
	Remove(ctx context.Context, id string) (bool, error)

	// ListByFilter returns every record satisfying filter, ordered by
	// created_at DESC, up to limit (0 = unlimited). Used by the dedup
	// engine's exact-hash check and by reindex to rebuild derived stores.
	ListByFilter(ctx context.Context, filter model.SearchFilter, limit int) ([]model.Memory, error)

	// Close releases backend resources.
	Close() error
}
