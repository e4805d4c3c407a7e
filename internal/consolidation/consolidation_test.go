package consolidation

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zircote/subcog/internal/capture"
	"github.com/zircote/subcog/internal/dedup"
	"github.com/zircote/subcog/internal/embeddings"
	"github.com/zircote/subcog/internal/index"
	"github.com/zircote/subcog/internal/model"
	"github.com/zircote/subcog/internal/persistence"
	"github.com/zircote/subcog/internal/vectorstore"
)

type fakeLLM struct {
	calls int
	err   error
}

func (f *fakeLLM) Summarize(ctx context.Context, group []model.Memory) (SummaryResult, error) {
	f.calls++
	if f.err != nil {
		return SummaryResult{}, f.err
	}
	return SummaryResult{Content: "consolidated summary of the group", Tags: []string{"summary"}, ContradictionsDetected: 0}, nil
}

type harness struct {
	idx      index.Backend
	vectors  vectorstore.VectorBackend
	persist  persistence.Backend
	embedder embeddings.Embedder
	capture  *capture.Service
}

func newHarness(t *testing.T, dim int) harness {
	t.Helper()
	idx, err := index.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	vectors, err := vectorstore.NewChromemBackend(vectorstore.ChromemConfig{Path: t.TempDir(), Dimensions: dim}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = vectors.Close() })

	persist, err := persistence.OpenFileTree(filepath.Join(t.TempDir(), "memories"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = persist.Close() })

	embedder := embeddings.NewHashEmbedder(dim)
	dd := dedup.New(dedup.DefaultConfig(), persist, embedder, vectors)
	captureSvc := capture.New(capture.Config{}, persist, idx, vectors, embedder, dd)

	return harness{idx: idx, vectors: vectors, persist: persist, embedder: embedder, capture: captureSvc}
}

func captureWithEmbedding(t *testing.T, h harness, id, content string, ns model.Namespace) {
	t.Helper()
	ctx := context.Background()
	vec, err := h.embedder.EmbedQuery(ctx, content)
	require.NoError(t, err)
	m := model.Memory{
		ID: id, Content: content, Namespace: ns, Status: model.StatusActive,
		CreatedAt: 1000, UpdatedAt: 1000, Embedding: vec,
	}
	require.NoError(t, h.persist.Put(ctx, m))
	require.NoError(t, h.idx.Index(ctx, m))
	require.NoError(t, h.vectors.Upsert(ctx, id, vec, vectorstore.VectorFilter{Namespace: ns}))
}

func TestFindRelatedMemoriesGroupsBySimilarity(t *testing.T) {
	h := newHarness(t, 32)
	ctx := context.Background()

	// Three near-identical memories (same normalized text -> identical
	// hash-embedder vectors) should form one group of size >= 3.
	content := "Use PostgreSQL for primary storage because of strong JSONB support"
	captureWithEmbedding(t, h, "m1", content, model.NamespaceDecisions)
	captureWithEmbedding(t, h, "m2", content, model.NamespaceDecisions)
	captureWithEmbedding(t, h, "m3", content, model.NamespaceDecisions)
	captureWithEmbedding(t, h, "m4", "completely unrelated content about deployment pipelines", model.NamespaceDecisions)

	cfg := DefaultConfig()
	svc := New(h.idx, h.vectors, h.embedder, h.capture, nil, cfg, nil)

	groups, err := svc.FindRelatedMemories(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.GreaterOrEqual(t, len(groups[0].Memories), cfg.MinMemoriesToConsolidate)
}

func TestFindRelatedMemoriesRequiresBothBackends(t *testing.T) {
	svc := New(nil, nil, nil, nil, nil, DefaultConfig(), nil)
	_, err := svc.FindRelatedMemories(context.Background())
	require.Error(t, err)
}

func TestConsolidateMemoriesCreatesLinkedSummary(t *testing.T) {
	h := newHarness(t, 32)
	ctx := context.Background()

	content := "Use PostgreSQL for primary storage because of strong JSONB support"
	captureWithEmbedding(t, h, "m1", content, model.NamespaceDecisions)
	captureWithEmbedding(t, h, "m2", content, model.NamespaceDecisions)
	captureWithEmbedding(t, h, "m3", content, model.NamespaceDecisions)

	llm := &fakeLLM{}
	svc := New(h.idx, h.vectors, h.embedder, h.capture, llm, DefaultConfig(), nil)

	stats, err := svc.ConsolidateMemories(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 1, stats.SummariesCreated)
	require.Equal(t, 1, llm.calls)

	// Sources must remain active and searchable, never tombstoned (spec.md
	// §4.10 step 3).
	for _, id := range []string{"m1", "m2", "m3"} {
		m, err := h.idx.GetMemory(ctx, id)
		require.NoError(t, err)
		require.False(t, m.IsTombstoned())
	}

	all, err := h.idx.ListAll(ctx, model.SearchFilter{}, 0)
	require.NoError(t, err)
	var summary model.Memory
	found := false
	for _, hit := range all {
		m, err := h.idx.GetMemory(ctx, hit.ID)
		require.NoError(t, err)
		if m.IsSummary {
			summary = m
			found = true
		}
	}
	require.True(t, found, "expected one is_summary=true memory to have been captured")
	require.ElementsMatch(t, []string{"m1", "m2", "m3"}, summary.SourceMemoryIDs)
	require.NotNil(t, summary.ConsolidationTimestamp)

	// The link must have been written through persistence, not just the
	// index, so it survives a reindex.
	persisted, err := h.persist.Get(ctx, summary.ID)
	require.NoError(t, err)
	require.True(t, persisted.IsSummary)
	require.ElementsMatch(t, []string{"m1", "m2", "m3"}, persisted.SourceMemoryIDs)
}

func TestConsolidateMemoriesDryRunSkipsSummarization(t *testing.T) {
	h := newHarness(t, 32)
	ctx := context.Background()

	content := "Use PostgreSQL for primary storage because of strong JSONB support"
	captureWithEmbedding(t, h, "m1", content, model.NamespaceDecisions)
	captureWithEmbedding(t, h, "m2", content, model.NamespaceDecisions)
	captureWithEmbedding(t, h, "m3", content, model.NamespaceDecisions)

	llm := &fakeLLM{}
	svc := New(h.idx, h.vectors, h.embedder, h.capture, llm, DefaultConfig(), nil)

	stats, err := svc.ConsolidateMemories(ctx, true)
	require.NoError(t, err)
	require.Equal(t, 0, stats.SummariesCreated)
	require.Equal(t, 0, llm.calls)
	require.Equal(t, 3, stats.SourceCount)
}

func TestConsolidateMemoriesDegradesGracefullyWithoutLLM(t *testing.T) {
	h := newHarness(t, 32)
	ctx := context.Background()

	content := "Use PostgreSQL for primary storage because of strong JSONB support"
	captureWithEmbedding(t, h, "m1", content, model.NamespaceDecisions)
	captureWithEmbedding(t, h, "m2", content, model.NamespaceDecisions)
	captureWithEmbedding(t, h, "m3", content, model.NamespaceDecisions)

	svc := New(h.idx, h.vectors, h.embedder, h.capture, nil, DefaultConfig(), nil)

	stats, err := svc.ConsolidateMemories(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 0, stats.SummariesCreated, "no LlmProvider means no summary is created")
	require.Len(t, stats.Groups, 1, "grouping is still reported without an LLM")
}

func TestConsolidateMemoriesContinuesAfterLLMFailure(t *testing.T) {
	h := newHarness(t, 32)
	ctx := context.Background()

	content := "Use PostgreSQL for primary storage because of strong JSONB support"
	captureWithEmbedding(t, h, "m1", content, model.NamespaceDecisions)
	captureWithEmbedding(t, h, "m2", content, model.NamespaceDecisions)
	captureWithEmbedding(t, h, "m3", content, model.NamespaceDecisions)

	llm := &fakeLLM{err: errors.New("provider unavailable")}
	svc := New(h.idx, h.vectors, h.embedder, h.capture, llm, DefaultConfig(), nil)

	stats, err := svc.ConsolidateMemories(ctx, false)
	require.NoError(t, err, "an LLM failure must not fail the whole consolidation pass")
	require.Equal(t, 0, stats.SummariesCreated)
}
