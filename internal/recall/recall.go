// Package recall implements RecallService (spec.md §4.7): text, vector and
// hybrid (Reciprocal Rank Fusion) search over IndexBackend and
// VectorBackend, hydrated via persistence-or-index and filtered.
package recall

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/zircote/subcog/internal/embeddings"
	"github.com/zircote/subcog/internal/errs"
	"github.com/zircote/subcog/internal/index"
	"github.com/zircote/subcog/internal/model"
	"github.com/zircote/subcog/internal/vectorstore"
)

// Mode selects how Search combines lexical and vector retrieval.
type Mode string

const (
	ModeText   Mode = "text"
	ModeVector Mode = "vector"
	ModeHybrid Mode = "hybrid"
)

// rrfK is the Reciprocal Rank Fusion constant (spec.md §4.7).
const rrfK = 60

// Hit is one hydrated, scored search result.
type Hit struct {
	Memory   model.Memory
	Score    float32
	RawScore float32
}

// Result is the full response to Search, including timing metadata
// (spec.md §4.7).
type Result struct {
	Memories        []Hit
	TotalCount      int
	ExecutionTimeMs int64
}

// Service implements the hybrid search pipeline.
type Service struct {
	idx      index.Backend
	vectors  vectorstore.VectorBackend
	embedder embeddings.Embedder
	logger   *zap.Logger
	nowFunc  func() time.Time
}

// Option configures optional Service fields.
type Option func(*Service)

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.logger = l } }

// New constructs a recall Service. vectors and embedder may be nil; vector
// and hybrid modes then degrade to returning empty vector legs gracefully
// (spec.md §4.7 "If embedder or vector backend is absent, return empty
// gracefully").
func New(idx index.Backend, vectors vectorstore.VectorBackend, embedder embeddings.Embedder, opts ...Option) *Service {
	s := &Service{idx: idx, vectors: vectors, embedder: embedder, logger: zap.NewNop(), nowFunc: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Search runs query against mode, applying filter and returning up to limit
// hydrated results (spec.md §4.7).
func (s *Service) Search(ctx context.Context, query string, mode Mode, filter model.SearchFilter, limit int) (Result, error) {
	start := s.nowFunc()
	if limit <= 0 {
		limit = 20
	}

	if query == "" {
		return Result{Memories: []Hit{}, TotalCount: 0, ExecutionTimeMs: elapsedMs(start, s.nowFunc())}, nil
	}

	var hits []Hit
	var err error

	switch mode {
	case ModeVector:
		hits, err = s.searchVector(ctx, query, filter, limit)
	case ModeHybrid:
		hits, err = s.searchHybrid(ctx, query, filter, limit)
	default:
		hits, err = s.searchText(ctx, query, filter, limit)
	}
	if err != nil {
		return Result{}, err
	}

	filtered := hits[:0]
	for _, h := range hits {
		if h.Score < filter.MinScore {
			continue
		}
		filtered = append(filtered, h)
	}

	return Result{
		Memories:        filtered,
		TotalCount:      len(filtered),
		ExecutionTimeMs: elapsedMs(start, s.nowFunc()),
	}, nil
}

// searchText fails closed on index error per spec.md §7's recall error
// policy.
func (s *Service) searchText(ctx context.Context, query string, filter model.SearchFilter, limit int) ([]Hit, error) {
	if s.idx == nil {
		return nil, errs.BackendUnavailable("index")
	}
	rawHits, err := s.idx.Search(ctx, query, filter, limit)
	if err != nil {
		return nil, errs.OperationFailed("recall.text_search", err)
	}
	return s.hydrate(ctx, rawHits, filter)
}

// searchVector degrades to empty (not an error) when embedder or vector
// backend is absent, or on a vector-backend error (spec.md §7).
func (s *Service) searchVector(ctx context.Context, query string, filter model.SearchFilter, limit int) ([]Hit, error) {
	if s.embedder == nil || s.vectors == nil {
		return nil, nil
	}
	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		s.logger.Warn("recall: embedding query failed", zap.Error(err))
		return nil, nil
	}
	vf := vectorstore.FromSearchFilter(filter, model.Domain{})
	vhits, err := s.vectors.Search(ctx, vec, vf, limit)
	if err != nil {
		s.logger.Warn("recall: vector search failed", zap.Error(err))
		return nil, nil
	}
	idxHits := make([]index.Hit, len(vhits))
	for i, h := range vhits {
		idxHits[i] = index.Hit{ID: h.ID, Score: h.Score}
	}
	return s.hydrate(ctx, idxHits, filter)
}

// searchHybrid runs both legs with an expanded k, fuses with Reciprocal
// Rank Fusion, and hydrates the top `limit` (spec.md §4.7).
func (s *Service) searchHybrid(ctx context.Context, query string, filter model.SearchFilter, limit int) ([]Hit, error) {
	k := limit * 2
	if k < 20 {
		k = 20
	}

	var textHits, vectorHits []index.Hit
	var textErr error

	if s.idx != nil {
		textHits, textErr = s.idx.Search(ctx, query, filter, k)
		if textErr != nil {
			return nil, errs.OperationFailed("recall.hybrid_text", textErr)
		}
	}
	if s.embedder != nil && s.vectors != nil {
		if vec, err := s.embedder.EmbedQuery(ctx, query); err == nil {
			vf := vectorstore.FromSearchFilter(filter, model.Domain{})
			if vhits, err := s.vectors.Search(ctx, vec, vf, k); err == nil {
				vectorHits = make([]index.Hit, len(vhits))
				for i, h := range vhits {
					vectorHits[i] = index.Hit{ID: h.ID, Score: h.Score}
				}
			} else {
				s.logger.Warn("recall: hybrid vector leg failed", zap.Error(err))
			}
		} else {
			s.logger.Warn("recall: hybrid embed failed", zap.Error(err))
		}
	}

	fused, rawScores := fuseRRF(textHits, vectorHits)
	hydrated, err := s.hydrate(ctx, fused, filter)
	if err != nil {
		return nil, err
	}
	for i := range hydrated {
		hydrated[i].RawScore = rawScores[hydrated[i].Memory.ID]
	}

	// Ties break by created_at DESC then id lexicographically (spec.md
	// §4.7); this can only be applied post-hydration, once created_at is
	// known.
	sort.SliceStable(hydrated, func(i, j int) bool {
		if hydrated[i].Score != hydrated[j].Score {
			return hydrated[i].Score > hydrated[j].Score
		}
		if hydrated[i].Memory.CreatedAt != hydrated[j].Memory.CreatedAt {
			return hydrated[i].Memory.CreatedAt > hydrated[j].Memory.CreatedAt
		}
		return hydrated[i].Memory.ID < hydrated[j].Memory.ID
	})
	if len(hydrated) > limit {
		hydrated = hydrated[:limit]
	}
	return hydrated, nil
}

// fuseRRF implements Reciprocal Rank Fusion (spec.md §4.7, §8 "RRF
// monotonicity"): for each contributing list, rank r (1-based) contributes
// 1/(rrfK+r) to the fused score; the raw source score is retained as the
// max across lists for display.
func fuseRRF(lists ...[]index.Hit) ([]index.Hit, map[string]float32) {
	type acc struct {
		fused float32
		raw   float32
	}
	scores := make(map[string]*acc)
	order := make([]string, 0)

	for _, l := range lists {
		for rank, h := range l {
			a, ok := scores[h.ID]
			if !ok {
				a = &acc{}
				scores[h.ID] = a
				order = append(order, h.ID)
			}
			a.fused += 1.0 / float32(rrfK+rank+1)
			if h.Score > a.raw {
				a.raw = h.Score
			}
		}
	}

	out := make([]index.Hit, 0, len(order))
	raw := make(map[string]float32, len(order))
	for _, id := range order {
		a := scores[id]
		out = append(out, index.Hit{ID: id, Score: a.fused})
		raw[id] = a.raw
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out, raw
}

// hydrate resolves each hit's full Memory via the index and applies filter
// (tombstone visibility included), preserving the incoming hit order/score.
func (s *Service) hydrate(ctx context.Context, hits []index.Hit, filter model.SearchFilter) ([]Hit, error) {
	out := make([]Hit, 0, len(hits))
	for _, h := range hits {
		if s.idx == nil {
			break
		}
		m, err := s.idx.GetMemory(ctx, h.ID)
		if err != nil {
			continue
		}
		if !filter.IncludeTombstoned && m.IsTombstoned() {
			continue
		}
		if !filter.Matches(m) {
			continue
		}
		out = append(out, Hit{Memory: m, Score: h.Score, RawScore: h.Score})
	}
	return out, nil
}

func elapsedMs(start, end time.Time) int64 {
	return end.Sub(start).Milliseconds()
}
