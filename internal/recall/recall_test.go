package recall

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zircote/subcog/internal/embeddings"
	"github.com/zircote/subcog/internal/index"
	"github.com/zircote/subcog/internal/model"
	"github.com/zircote/subcog/internal/vectorstore"
)

func newIndex(t *testing.T) index.Backend {
	t.Helper()
	idx, err := index.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func newVectors(t *testing.T, dim int) vectorstore.VectorBackend {
	t.Helper()
	v, err := vectorstore.NewChromemBackend(vectorstore.ChromemConfig{Path: t.TempDir(), Dimensions: dim}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })
	return v
}

func indexMemory(t *testing.T, idx index.Backend, m model.Memory) {
	t.Helper()
	require.NoError(t, idx.Index(context.Background(), m))
}

func TestSearchTextFindsCapturedContent(t *testing.T) {
	idx := newIndex(t)
	svc := New(idx, nil, nil)
	ctx := context.Background()

	indexMemory(t, idx, model.Memory{
		ID: "a1", Content: "Use PostgreSQL for primary storage because of strong JSONB support",
		Namespace: model.NamespaceDecisions, Status: model.StatusActive,
		CreatedAt: 1000, UpdatedAt: 1000, Tags: []string{"database", "architecture"},
	})

	res, err := svc.Search(ctx, "PostgreSQL database", ModeText, model.SearchFilter{}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, res.Memories)
	require.Equal(t, "a1", res.Memories[0].Memory.ID)
	require.Contains(t, res.Memories[0].Memory.Content, "PostgreSQL")
}

func TestSearchNamespaceFilterIsolates(t *testing.T) {
	idx := newIndex(t)
	svc := New(idx, nil, nil)
	ctx := context.Background()

	indexMemory(t, idx, model.Memory{ID: "a1", Content: "Chose microservices architecture for scalability",
		Namespace: model.NamespaceDecisions, Status: model.StatusActive, CreatedAt: 1000, UpdatedAt: 1000})
	indexMemory(t, idx, model.Memory{ID: "a2", Content: "Use repository pattern for data access layer",
		Namespace: model.NamespacePatterns, Status: model.StatusActive, CreatedAt: 1000, UpdatedAt: 1000})

	res, err := svc.Search(ctx, "architecture", ModeText, model.SearchFilter{Namespaces: []model.Namespace{model.NamespaceDecisions}}, 10)
	require.NoError(t, err)
	for _, h := range res.Memories {
		require.Equal(t, model.NamespaceDecisions, h.Memory.Namespace)
	}
}

func TestSearchLimitIsHonored(t *testing.T) {
	idx := newIndex(t)
	svc := New(idx, nil, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		indexMemory(t, idx, model.Memory{
			ID:        string(rune('a' + i)),
			Content:   "Database decision number about storage options",
			Namespace: model.NamespaceDecisions, Status: model.StatusActive,
			CreatedAt: int64(1000 + i), UpdatedAt: int64(1000 + i),
		})
	}

	res, err := svc.Search(ctx, "database decision", ModeText, model.SearchFilter{}, 2)
	require.NoError(t, err)
	require.LessOrEqual(t, len(res.Memories), 2)
}

func TestSearchEmptyQueryReturnsEmpty(t *testing.T) {
	idx := newIndex(t)
	svc := New(idx, nil, nil)

	res, err := svc.Search(context.Background(), "", ModeText, model.SearchFilter{}, 10)
	require.NoError(t, err)
	require.Empty(t, res.Memories)
	require.Equal(t, 0, res.TotalCount)
}

func TestSearchTextFailsClosedOnIndexError(t *testing.T) {
	svc := New(nil, nil, nil)
	_, err := svc.Search(context.Background(), "anything", ModeText, model.SearchFilter{}, 10)
	require.Error(t, err)
}

func TestSearchVectorDegradesGracefullyWithoutBackend(t *testing.T) {
	idx := newIndex(t)
	svc := New(idx, nil, nil) // no vector backend, no embedder
	res, err := svc.Search(context.Background(), "anything", ModeVector, model.SearchFilter{}, 10)
	require.NoError(t, err)
	require.Empty(t, res.Memories)
}

func TestSearchVectorMode(t *testing.T) {
	idx := newIndex(t)
	vectors := newVectors(t, 32)
	embedder := embeddings.NewHashEmbedder(32)
	svc := New(idx, vectors, embedder)
	ctx := context.Background()

	content := "Use PostgreSQL for primary storage because of strong JSONB support"
	indexMemory(t, idx, model.Memory{ID: "a1", Content: content, Namespace: model.NamespaceDecisions,
		Status: model.StatusActive, CreatedAt: 1000, UpdatedAt: 1000})

	vec, err := embedder.EmbedQuery(ctx, content)
	require.NoError(t, err)
	require.NoError(t, vectors.Upsert(ctx, "a1", vec, vectorstore.VectorFilter{Namespace: model.NamespaceDecisions}))

	res, err := svc.Search(ctx, content, ModeVector, model.SearchFilter{}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, res.Memories)
	require.Equal(t, "a1", res.Memories[0].Memory.ID)
}

func TestSearchHybridFusesBothLegs(t *testing.T) {
	idx := newIndex(t)
	vectors := newVectors(t, 32)
	embedder := embeddings.NewHashEmbedder(32)
	svc := New(idx, vectors, embedder)
	ctx := context.Background()

	content := "Use PostgreSQL for primary storage because of strong JSONB support"
	indexMemory(t, idx, model.Memory{ID: "a1", Content: content, Namespace: model.NamespaceDecisions,
		Status: model.StatusActive, CreatedAt: 1000, UpdatedAt: 1000})

	vec, err := embedder.EmbedQuery(ctx, content)
	require.NoError(t, err)
	require.NoError(t, vectors.Upsert(ctx, "a1", vec, vectorstore.VectorFilter{Namespace: model.NamespaceDecisions}))

	res, err := svc.Search(ctx, "PostgreSQL storage", ModeHybrid, model.SearchFilter{}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, res.Memories)
	require.Equal(t, "a1", res.Memories[0].Memory.ID)
	require.Greater(t, res.Memories[0].Score, float32(0))
}

func TestSearchTombstonedExcludedByDefault(t *testing.T) {
	idx := newIndex(t)
	svc := New(idx, nil, nil)
	ctx := context.Background()
	ts := int64(2000)

	indexMemory(t, idx, model.Memory{ID: "a1", Content: "Temporary note", Namespace: model.NamespaceContext,
		Status: model.StatusTombstoned, TombstonedAt: &ts, CreatedAt: 1000, UpdatedAt: 2000})

	res, err := svc.Search(ctx, "Temporary", ModeText, model.SearchFilter{}, 10)
	require.NoError(t, err)
	require.Empty(t, res.Memories)

	res2, err := svc.Search(ctx, "Temporary", ModeText, model.SearchFilter{IncludeTombstoned: true}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, res2.Memories)
}

func TestFuseRRFMonotonicAndTieBreaksByIDOnEqualRawRank(t *testing.T) {
	textHits := []index.Hit{{ID: "a", Score: 0.9}, {ID: "b", Score: 0.5}}
	vectorHits := []index.Hit{{ID: "b", Score: 0.8}, {ID: "a", Score: 0.4}}

	fused, _ := fuseRRF(textHits, vectorHits)
	require.Len(t, fused, 2)
	// Both ids appear at rank 1 in one list and rank 2 in the other, so
	// their fused scores tie; fuseRRF itself breaks ties by id ascending.
	require.Equal(t, "a", fused[0].ID)
	for i := 1; i < len(fused); i++ {
		require.LessOrEqual(t, fused[i].Score, fused[i-1].Score)
	}
}

func TestFuseRRFHigherRankWinsSameList(t *testing.T) {
	textHits := []index.Hit{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	fused, _ := fuseRRF(textHits)
	require.Equal(t, []string{"a", "b", "c"}, []string{fused[0].ID, fused[1].ID, fused[2].ID})
	require.Greater(t, fused[0].Score, fused[1].Score)
	require.Greater(t, fused[1].Score, fused[2].Score)
}
