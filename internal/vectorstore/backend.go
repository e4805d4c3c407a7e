// Package vectorstore implements the VectorBackend contract (spec.md §4.3):
// an embedded ANN store supporting upsert, remove and k-NN cosine search
// filtered by namespace. The sole implementation, ChromemBackend, is built
// on github.com/philippgille/chromem-go, the same embedded vector database
// the teacher project uses.
package vectorstore

import (
	"context"
	"errors"

	"github.com/zircote/subcog/internal/model"
)

// Sentinel errors for vector backend operations.
var (
	ErrInvalidConfig  = errors.New("vectorstore: invalid configuration")
	ErrDimensionMismatch = errors.New("vectorstore: embedding dimension mismatch")
)

// VectorFilter narrows a k-NN search to a namespace and/or domain. An empty
// Namespace or Domain matches every record (spec.md §4.3: "Namespace
// filtering may be post-filter").
type VectorFilter struct {
	Namespace model.Namespace
	Domain    model.Domain
}

// FromSearchFilter derives a VectorFilter from a SearchFilter's namespace
// predicate. Only the first namespace is honored, since VectorBackend's
// contract filters by a single namespace; RecallService narrows further in
// memory when a filter names multiple namespaces.
func FromSearchFilter(f model.SearchFilter, domain model.Domain) VectorFilter {
	vf := VectorFilter{Domain: domain}
	if len(f.Namespaces) > 0 {
		vf.Namespace = f.Namespaces[0]
	}
	return vf
}

// VectorHit is one k-NN result: a memory id and its cosine similarity
// normalized to [0,1], where 1 means identical direction.
type VectorHit struct {
	ID    string
	Score float32
}

// VectorBackend is the ANN store contract (spec.md §4.3). Concurrent Search
// calls MUST be safe; concurrent Upsert/Remove MAY serialize internally.
type VectorBackend interface {
	// Dimensions returns the fixed vector dimension this backend was
	// configured for.
	Dimensions() int

	// Upsert replaces any existing vector for id.
	Upsert(ctx context.Context, id string, vector []float32, filter VectorFilter) error

	// Remove deletes the vector for id, reporting whether it existed.
	Remove(ctx context.Context, id string) (bool, error)

	// Search performs k-NN by cosine similarity, optionally narrowed by
	// VectorFilter. If post-filtering yields fewer than k candidates, fewer
	// than k hits may be returned.
	Search(ctx context.Context, query []float32, filter VectorFilter, k int) ([]VectorHit, error)

	// Count returns the number of vectors currently stored.
	Count(ctx context.Context) (int, error)

	// Clear removes every vector.
	Clear(ctx context.Context) error

	// Close releases any resources held by the backend.
	Close() error
}
