// Package dedup implements the Deduplicator contract (spec.md §4.5):
// exact-hash, recent-LRU and semantic-similarity duplicate detection run in
// that order, the first hit winning. Every check is fail-open on lock
// poisoning or backend error — a missed duplicate is a safe outcome, a
// blocked capture is not.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/zircote/subcog/internal/embeddings"
	"github.com/zircote/subcog/internal/model"
	"github.com/zircote/subcog/internal/persistence"
	"github.com/zircote/subcog/internal/vectorstore"
)

// Variant identifies which checker produced a positive duplicate result.
type Variant string

const (
	VariantNone            Variant = "none"
	VariantExactMatch      Variant = "exact_match"
	VariantRecentCapture   Variant = "recent_capture"
	VariantSemanticSimilar Variant = "semantic_similar"
)

// Result is the outcome of check_duplicate (spec.md §4.5).
type Result struct {
	Variant    Variant
	MemoryID   string
	URN        string
	Confidence float64
}

// IsDuplicate reports whether Variant is anything but VariantNone.
func (r Result) IsDuplicate() bool { return r.Variant != VariantNone }

// Thresholds maps every namespace to its minimum semantic-similarity score
// for a SemanticSimilar verdict (spec.md §4.5 defaults, extended per
// SPEC_FULL.md's supplemented per-namespace thresholds), falling back to
// Default for any namespace without its own entry.
type Thresholds struct {
	ByNamespace map[model.Namespace]float64
	Default     float64
}

// DefaultThresholds returns the defaults named in spec.md §4.5.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ByNamespace: map[model.Namespace]float64{
			model.NamespaceDecisions: 0.92,
			model.NamespacePatterns:  0.90,
			model.NamespaceLearnings: 0.88,
		},
		Default: 0.90,
	}
}

func (t Thresholds) For(ns model.Namespace) float64 {
	if v, ok := t.ByNamespace[ns]; ok {
		return v
	}
	return t.Default
}

// Config configures a Deduplicator. Zero values are replaced by spec.md
// §4.5/§6.3 defaults in NewFromConfig.
type Config struct {
	Enabled            bool
	CacheCapacity      int
	TimeWindow         time.Duration
	MinSemanticLength  int
	Thresholds         Thresholds
}

// DefaultConfig returns the spec.md §6.3 defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		CacheCapacity:     1000,
		TimeWindow:        5 * time.Minute,
		MinSemanticLength: 20,
		Thresholds:        DefaultThresholds(),
	}
}

type cacheEntry struct {
	memoryID   string
	namespace  model.Namespace
	domain     model.Domain
	capturedAt time.Time
}

// Deduplicator implements the three-stage check_duplicate pipeline.
type Deduplicator struct {
	cfg        Config
	recent     *lru.LRU[string, cacheEntry]
	persist    persistence.Backend
	embedder   embeddings.Embedder
	vectors    vectorstore.VectorBackend
}

// New constructs a Deduplicator. embedder and vectors may be nil, in which
// case the semantic-similarity stage is skipped entirely (it degrades
// gracefully, mirroring RecallService's vector-mode fallback).
func New(cfg Config, persist persistence.Backend, embedder embeddings.Embedder, vectors vectorstore.VectorBackend) *Deduplicator {
	if cfg.CacheCapacity <= 0 {
		cfg.CacheCapacity = DefaultConfig().CacheCapacity
	}
	if cfg.TimeWindow <= 0 {
		cfg.TimeWindow = DefaultConfig().TimeWindow
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	return &Deduplicator{
		cfg:      cfg,
		recent:   lru.NewLRU[string, cacheEntry](cfg.CacheCapacity, nil, cfg.TimeWindow),
		persist:  persist,
		embedder: embedder,
		vectors:  vectors,
	}
}

// Normalize lowercases and collapses whitespace runs, the exact content
// normalization spec.md §4.5 specifies for the exact-match hash.
func Normalize(content string) string {
	fields := strings.Fields(strings.ToLower(content))
	return strings.Join(fields, " ")
}

// ContentHash returns sha256(Normalize(content)) as lowercase hex.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(Normalize(content)))
	return hex.EncodeToString(sum[:])
}

// CheckDuplicate runs the three checkers in order (spec.md §4.5), returning
// the first hit or VariantNone.
func (d *Deduplicator) CheckDuplicate(ctx context.Context, content string, namespace model.Namespace, domain model.Domain) Result {
	if !d.cfg.Enabled {
		return Result{Variant: VariantNone}
	}

	hash := ContentHash(content)

	if r, ok := d.checkExact(ctx, hash, namespace); ok {
		return r
	}
	if r, ok := d.checkRecent(hash, namespace); ok {
		return r
	}
	if r, ok := d.checkSemantic(ctx, content, namespace, domain); ok {
		return r
	}
	return Result{Variant: VariantNone}
}

// checkExact looks up hash among active (non-tombstoned) persisted memories
// in the given namespace. Open question #1 in DESIGN.md: tombstoned
// duplicates are not considered matches, so a tombstoned memory's content
// can be recaptured under a fresh id.
func (d *Deduplicator) checkExact(ctx context.Context, hash string, namespace model.Namespace) (Result, bool) {
	if d.persist == nil {
		return Result{}, false
	}
	filter := model.SearchFilter{Namespaces: []model.Namespace{namespace}}
	memories, err := d.persist.ListByFilter(ctx, filter, 0)
	if err != nil {
		// Fail-open: a persistence error degrades dedup, not capture.
		return Result{}, false
	}
	for _, m := range memories {
		if ContentHash(m.Content) == hash {
			return Result{
				Variant:    VariantExactMatch,
				MemoryID:   m.ID,
				URN:        m.URN(),
				Confidence: 1.0,
			}, true
		}
	}
	return Result{}, false
}

// checkRecent consults the process-local LRU+TTL cache (spec.md §4.5
// stage 2). The expirable LRU already evicts entries past TimeWindow, so a
// present hit is by construction within the TTL; the stored namespace must
// still match the query namespace.
func (d *Deduplicator) checkRecent(hash string, namespace model.Namespace) (Result, bool) {
	entry, ok := d.recent.Get(hash)
	if !ok || entry.namespace != namespace {
		return Result{}, false
	}
	domain := entry.domain
	urn := model.Memory{ID: entry.memoryID, Namespace: namespace, Domain: domain}.URN()
	return Result{
		Variant:    VariantRecentCapture,
		MemoryID:   entry.memoryID,
		URN:        urn,
		Confidence: 1.0,
	}, true
}

// checkSemantic embeds content and runs a namespace-filtered k=3 ANN
// search, reporting SemanticSimilar if the top hit clears the namespace's
// threshold (spec.md §4.5 stage 3). Per DESIGN.md's Open Question #2, if
// namespace post-filtering shrinks the candidate set to zero, this stage
// silently returns "not duplicate" rather than falling back to an
// unfiltered search.
func (d *Deduplicator) checkSemantic(ctx context.Context, content string, namespace model.Namespace, domain model.Domain) (Result, bool) {
	if d.embedder == nil || d.vectors == nil {
		return Result{}, false
	}
	if len(content) < d.cfg.MinSemanticLength {
		return Result{}, false
	}

	vec, err := d.embedder.EmbedQuery(ctx, content)
	if err != nil {
		return Result{}, false
	}

	hits, err := d.vectors.Search(ctx, vec, vectorstore.VectorFilter{Namespace: namespace, Domain: domain}, 3)
	if err != nil || len(hits) == 0 {
		return Result{}, false
	}

	top := hits[0]
	threshold := d.cfg.Thresholds.For(namespace)
	if float64(top.Score) < threshold {
		return Result{}, false
	}

	urn := model.Memory{ID: top.ID, Namespace: namespace, Domain: domain}.URN()
	return Result{
		Variant:    VariantSemanticSimilar,
		MemoryID:   top.ID,
		URN:        urn,
		Confidence: float64(top.Score),
	}, true
}

// RecordCapture inserts content's hash into the recent-capture LRU, keyed
// to memoryID/namespace/domain (spec.md §4.5 "record_capture"). Safe to
// call unconditionally after a successful capture.
func (d *Deduplicator) RecordCapture(hash, memoryID string, namespace model.Namespace, domain model.Domain) {
	d.recent.Add(hash, cacheEntry{
		memoryID:   memoryID,
		namespace:  namespace,
		domain:     domain,
		capturedAt: time.Now(),
	})
}
