// Package index implements the IndexBackend contract (spec.md §4.2): the
// lexical/metadata store backing text search, tag/status/namespace
// filtering and full-record listing. The sole implementation, SQLiteIndex,
// is grounded on the same modernc.org/sqlite driver used across the
// retrieval pack for embedded FTS use cases, and on the exact LIKE/glob
// escaping algorithm from the Rust original this spec was distilled from.
package index

import (
	"context"
	"errors"

	"github.com/zircote/subcog/internal/model"
)

// ErrNotFound is returned by GetMemory when no record with the given id
// exists.
var ErrNotFound = errors.New("index: memory not found")

// Hit pairs a memory id with its lexical relevance score, normalized to
// [0,1] where higher is better (spec.md §4.2).
type Hit struct {
	ID    string
	Score float32
}

// Backend is the IndexBackend contract.
type Backend interface {
	// Index inserts or replaces the full record (idempotent on ID).
	Index(ctx context.Context, m model.Memory) error

	// GetMemory returns the full record for id, or ErrNotFound.
	GetMemory(ctx context.Context, id string) (model.Memory, error)

	// Remove deletes the record for id, reporting whether it existed.
	Remove(ctx context.Context, id string) (bool, error)

	// Search performs lexical ranking over content/tags, applying filter,
	// and returns up to limit hits ordered by score descending.
	Search(ctx context.Context, query string, filter model.SearchFilter, limit int) ([]Hit, error)

	// ListAll returns filtered records ordered by created_at DESC, each
	// with score 1.0, up to limit.
	ListAll(ctx context.Context, filter model.SearchFilter, limit int) ([]Hit, error)

	// Clear removes every record (used by reindex, spec.md §8 "Reindex").
	Clear(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
