package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zircote/subcog/internal/model"
)

func newTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func sampleMemory(id string, ns model.Namespace, content string) model.Memory {
	return model.Memory{
		ID:        id,
		Content:   content,
		Namespace: ns,
		Domain:    model.Domain{Scope: model.ScopeProject, Repository: "acme/widgets"},
		Status:    model.StatusActive,
		CreatedAt: 1000,
		UpdatedAt: 1000,
		Tags:      []string{"database", "architecture"},
		Source:    "cli-capture",
	}
}

func TestSQLiteIndexRoundtrip(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	m := sampleMemory("a1", model.NamespaceDecisions, "Use PostgreSQL for primary storage")

	require.NoError(t, idx.Index(ctx, m))

	got, err := idx.GetMemory(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, m.ID, got.ID)
	require.Equal(t, m.Content, got.Content)
	require.Equal(t, m.Namespace, got.Namespace)
	require.Equal(t, m.Domain, got.Domain)
	require.ElementsMatch(t, m.Tags, got.Tags)
	require.Equal(t, m.Source, got.Source)
}

func TestSQLiteIndexGetMemoryNotFound(t *testing.T) {
	idx := newTestIndex(t)
	_, err := idx.GetMemory(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteIndexIndexIsIdempotentOnID(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	m := sampleMemory("a1", model.NamespaceDecisions, "original content")
	require.NoError(t, idx.Index(ctx, m))

	m.Content = "updated content"
	require.NoError(t, idx.Index(ctx, m))

	got, err := idx.GetMemory(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, "updated content", got.Content)

	hits, err := idx.ListAll(ctx, model.SearchFilter{}, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestSQLiteIndexSearchFindsMatchingContent(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, sampleMemory("a1", model.NamespaceDecisions,
		"Use PostgreSQL for primary storage because of strong JSONB support")))

	hits, err := idx.Search(ctx, "PostgreSQL database", model.SearchFilter{}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.Equal(t, "a1", hits[0].ID)
	require.GreaterOrEqual(t, hits[0].Score, float32(0))
	require.LessOrEqual(t, hits[0].Score, float32(1))
}

func TestSQLiteIndexSearchExcludesTombstonedByDefault(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	m := sampleMemory("a1", model.NamespaceDecisions, "Use PostgreSQL for storage")
	require.NoError(t, idx.Index(ctx, m))

	ts := int64(2000)
	m.Status = model.StatusTombstoned
	m.TombstonedAt = &ts
	require.NoError(t, idx.Index(ctx, m))

	hits, err := idx.Search(ctx, "PostgreSQL", model.SearchFilter{}, 10)
	require.NoError(t, err)
	require.Empty(t, hits)

	hits2, err := idx.Search(ctx, "PostgreSQL", model.SearchFilter{IncludeTombstoned: true}, 10)
	require.NoError(t, err)
	require.Len(t, hits2, 1)
}

func TestSQLiteIndexSearchNamespaceFilter(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, sampleMemory("a1", model.NamespaceDecisions, "architecture decision about microservices")))
	require.NoError(t, idx.Index(ctx, sampleMemory("a2", model.NamespacePatterns, "repository pattern for data access")))

	hits, err := idx.Search(ctx, "architecture", model.SearchFilter{Namespaces: []model.Namespace{model.NamespaceDecisions}}, 10)
	require.NoError(t, err)
	for _, h := range hits {
		m, err := idx.GetMemory(ctx, h.ID)
		require.NoError(t, err)
		require.Equal(t, model.NamespaceDecisions, m.Namespace)
	}
}

func TestSQLiteIndexWholeTagMatch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	m1 := sampleMemory("a1", model.NamespaceDecisions, "first memory")
	m1.Tags = []string{"foobar"}
	require.NoError(t, idx.Index(ctx, m1))

	m2 := sampleMemory("a2", model.NamespaceDecisions, "second memory")
	m2.Tags = []string{"foo", "bar"}
	require.NoError(t, idx.Index(ctx, m2))

	hits, err := idx.ListAll(ctx, model.SearchFilter{Tags: []string{"foo"}}, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "a2", hits[0].ID)
}

func TestSQLiteIndexWildcardTagEscaping(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	m1 := sampleMemory("a1", model.NamespaceDecisions, "literal percent tag")
	m1.Tags = []string{"100%_v2"}
	require.NoError(t, idx.Index(ctx, m1))

	m2 := sampleMemory("a2", model.NamespaceDecisions, "unrelated tag")
	m2.Tags = []string{"foobar"}
	require.NoError(t, idx.Index(ctx, m2))

	hits, err := idx.ListAll(ctx, model.SearchFilter{Tags: []string{"100%_v2"}}, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "a1", hits[0].ID)

	// A tag pattern containing a literal wildcard character must not
	// accidentally match unrelated tags via SQL LIKE semantics.
	hits2, err := idx.ListAll(ctx, model.SearchFilter{Tags: []string{"foo%"}}, 0)
	require.NoError(t, err)
	require.Empty(t, hits2)
}

func TestSQLiteIndexListAllOrdersByCreatedAtDesc(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	older := sampleMemory("a1", model.NamespaceDecisions, "older")
	older.CreatedAt = 100
	newer := sampleMemory("a2", model.NamespaceDecisions, "newer")
	newer.CreatedAt = 200
	require.NoError(t, idx.Index(ctx, older))
	require.NoError(t, idx.Index(ctx, newer))

	hits, err := idx.ListAll(ctx, model.SearchFilter{}, 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "a2", hits[0].ID)
	require.Equal(t, "a1", hits[1].ID)
}

func TestSQLiteIndexRemove(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, sampleMemory("a1", model.NamespaceDecisions, "content")))

	removed, err := idx.Remove(ctx, "a1")
	require.NoError(t, err)
	require.True(t, removed)

	_, err = idx.GetMemory(ctx, "a1")
	require.ErrorIs(t, err, ErrNotFound)

	removedAgain, err := idx.Remove(ctx, "a1")
	require.NoError(t, err)
	require.False(t, removedAgain)
}

func TestSQLiteIndexClear(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, sampleMemory("a1", model.NamespaceDecisions, "content")))
	require.NoError(t, idx.Clear(ctx))

	hits, err := idx.ListAll(ctx, model.SearchFilter{}, 0)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestSQLiteIndexLimitHonored(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		m := sampleMemory(string(rune('a'+i)), model.NamespaceDecisions, "database decision number about storage options")
		m.CreatedAt = int64(1000 + i)
		require.NoError(t, idx.Index(ctx, m))
	}

	hits, err := idx.Search(ctx, "database decision", model.SearchFilter{}, 2)
	require.NoError(t, err)
	require.LessOrEqual(t, len(hits), 2)
}
