package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("subcog.vectorstore")

// ChromemConfig configures a ChromemBackend.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	Path string
	// Compress enables gzip compression of the on-disk store.
	Compress bool
	// Collection is the single chromem collection all vectors share;
	// namespace/domain isolation is enforced via metadata filtering
	// (spec.md §4.3 permits post-filter isolation).
	Collection string
	// Dimensions is the fixed embedding dimension. Must match the
	// configured Embedder's output (spec.md §3 invariant 5).
	Dimensions int
}

func (c *ChromemConfig) applyDefaults() {
	if c.Path == "" {
		c.Path = "~/.config/subcog/vectorstore"
	}
	if c.Collection == "" {
		c.Collection = "subcog_memories"
	}
	if c.Dimensions == 0 {
		c.Dimensions = 256
	}
}

// ChromemBackend implements VectorBackend using the embedded chromem-go
// database. Since chromem-go provides its own embedding pipeline, the
// backend is handed raw vectors directly (it never calls an Embedder
// itself) by passing a precomputed-vector passthrough EmbeddingFunc.
type ChromemBackend struct {
	db         *chromem.DB
	collection *chromem.Collection
	config     ChromemConfig
	logger     *zap.Logger

	mu sync.Mutex // serializes Upsert/Remove per spec.md §4.3
}

// NewChromemBackend opens (or creates) a persistent chromem-go database at
// cfg.Path and returns a VectorBackend over a single shared collection.
func NewChromemBackend(cfg ChromemConfig, logger *zap.Logger) (*ChromemBackend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive", ErrInvalidConfig)
	}

	path, err := expandPath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating vectorstore dir: %w", err)
	}

	db, err := chromem.NewPersistentDB(path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("opening chromem db: %w", err)
	}

	// Passthrough embedding func: callers of Upsert/Search already supply
	// vectors, so chromem never needs to embed text itself.
	passthrough := func(_ context.Context, _ string) ([]float32, error) {
		return nil, fmt.Errorf("vectorstore: text embedding not supported, vectors must be precomputed")
	}

	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, passthrough)
	if err != nil {
		return nil, fmt.Errorf("opening collection %s: %w", cfg.Collection, err)
	}

	logger.Info("vectorstore opened",
		zap.String("path", path),
		zap.String("collection", cfg.Collection),
		zap.Int("dimensions", cfg.Dimensions),
	)

	return &ChromemBackend{db: db, collection: collection, config: cfg, logger: logger}, nil
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

func (b *ChromemBackend) Dimensions() int { return b.config.Dimensions }

func (b *ChromemBackend) Upsert(ctx context.Context, id string, vector []float32, filter VectorFilter) error {
	ctx, span := tracer.Start(ctx, "ChromemBackend.Upsert")
	defer span.End()

	if len(vector) != b.config.Dimensions {
		span.RecordError(ErrDimensionMismatch)
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, b.config.Dimensions, len(vector))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	doc := chromem.Document{
		ID:        id,
		Embedding: vector,
		Metadata:  filterMetadata(filter),
	}
	// AddDocuments replaces any existing document with the same ID, giving
	// upsert semantics (spec.md §4.3).
	if err := b.collection.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting vector %s: %w", id, err)
	}
	return nil
}

func (b *ChromemBackend) Remove(ctx context.Context, id string) (bool, error) {
	_, span := tracer.Start(ctx, "ChromemBackend.Remove")
	defer span.End()

	b.mu.Lock()
	defer b.mu.Unlock()

	before := b.collection.Count()
	if err := b.collection.Delete(ctx, nil, nil, id); err != nil {
		if strings.Contains(err.Error(), "not found") {
			return false, nil
		}
		span.RecordError(err)
		return false, fmt.Errorf("removing vector %s: %w", id, err)
	}
	after := b.collection.Count()
	return after < before, nil
}

func (b *ChromemBackend) Search(ctx context.Context, query []float32, filter VectorFilter, k int) ([]VectorHit, error) {
	ctx, span := tracer.Start(ctx, "ChromemBackend.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k))

	if len(query) != b.config.Dimensions {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, b.config.Dimensions, len(query))
	}
	if k <= 0 {
		return nil, nil
	}

	count := b.collection.Count()
	if count == 0 {
		return nil, nil
	}

	where := filterMetadata(filter)

	// chromem requires nResults <= document count; over-fetch to absorb
	// post-filtering, then trim.
	fetchK := k
	if len(where) > 0 && fetchK < count {
		fetchK = count
	}
	if fetchK > count {
		fetchK = count
	}

	results, err := b.collection.QueryEmbedding(ctx, query, fetchK, where, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("vector search: %w", err)
	}

	hits := make([]VectorHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, VectorHit{ID: r.ID, Score: r.Similarity})
		if len(hits) >= k {
			break
		}
	}
	return hits, nil
}

func (b *ChromemBackend) Count(ctx context.Context) (int, error) {
	return b.collection.Count(), nil
}

func (b *ChromemBackend) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.db.DeleteCollection(b.config.Collection); err != nil {
		return fmt.Errorf("clearing collection: %w", err)
	}
	passthrough := func(_ context.Context, _ string) ([]float32, error) {
		return nil, fmt.Errorf("vectorstore: text embedding not supported, vectors must be precomputed")
	}
	col, err := b.db.GetOrCreateCollection(b.config.Collection, nil, passthrough)
	if err != nil {
		return fmt.Errorf("recreating collection: %w", err)
	}
	b.collection = col
	return nil
}

func (b *ChromemBackend) Close() error {
	b.logger.Info("vectorstore closed")
	return nil
}

func filterMetadata(f VectorFilter) map[string]string {
	m := map[string]string{}
	if f.Namespace != "" {
		m["namespace"] = string(f.Namespace)
	}
	if f.Domain.Scope != "" {
		m["domain_key"] = f.Domain.Key()
	}
	return m
}

var _ VectorBackend = (*ChromemBackend)(nil)

// namespaceMetadataKey and domainMetadataKey document the fixed metadata
// keys ChromemBackend uses for filtering, for callers building raw where
// clauses in tests.
const (
	namespaceMetadataKey = "namespace"
	domainMetadataKey    = "domain_key"
)
