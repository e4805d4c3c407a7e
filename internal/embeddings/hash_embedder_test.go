package embeddings

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(128)
	ctx := context.Background()

	v1, err := e.EmbedQuery(ctx, "Use PostgreSQL for primary storage")
	require.NoError(t, err)
	v2, err := e.EmbedQuery(ctx, "Use PostgreSQL for primary storage")
	require.NoError(t, err)

	require.Equal(t, v1, v2)
	require.Len(t, v1, 128)
}

func TestHashEmbedderUnitNorm(t *testing.T) {
	e := NewHashEmbedder(384)
	v, err := e.EmbedQuery(context.Background(), "connection pooling via pgbouncer")
	require.NoError(t, err)

	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	require.InDelta(t, 1.0, norm, 1e-6)
}

func TestHashEmbedderEmptyInput(t *testing.T) {
	e := NewHashEmbedder(64)
	_, err := e.EmbedQuery(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestHashEmbedderCaseAndWhitespaceInsensitive(t *testing.T) {
	e := NewHashEmbedder(64)
	v1, err := e.EmbedQuery(context.Background(), "Use   PostgreSQL")
	require.NoError(t, err)
	v2, err := e.EmbedQuery(context.Background(), "use postgresql")
	require.NoError(t, err)
	require.Equal(t, v1, v2)
}

func TestHashEmbedderDistinctInputsDiffer(t *testing.T) {
	e := NewHashEmbedder(64)
	v1, err := e.EmbedQuery(context.Background(), "alpha")
	require.NoError(t, err)
	v2, err := e.EmbedQuery(context.Background(), "beta")
	require.NoError(t, err)
	require.NotEqual(t, v1, v2)
}
