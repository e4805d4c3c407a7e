package embeddings

import (
	"context"
	"errors"
)

// ErrEmptyInput is returned when Embed is called with empty text; this is
// the only error condition the contract defines (spec.md §4.1).
var ErrEmptyInput = errors.New("embeddings: empty input")

// ErrInvalidConfig indicates an unusable provider configuration.
var ErrInvalidConfig = errors.New("embeddings: invalid configuration")

// Embedder generates deterministic, unit-normalized, fixed-dimension
// vectors from text. Identical input MUST yield bit-identical output
// within a process (spec.md §4.1).
type Embedder interface {
	// EmbedDocuments embeds multiple texts, one vector per input.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the fixed vector dimension this embedder produces.
	Dimension() int
}
