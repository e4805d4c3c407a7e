// Package consolidation implements ConsolidationService (spec.md §4.10):
// grouping active memories by cosine similarity, summarizing each group via
// an LlmProvider, and capturing the summary as a linked summary node.
package consolidation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/zircote/subcog/internal/capture"
	"github.com/zircote/subcog/internal/embeddings"
	"github.com/zircote/subcog/internal/errs"
	"github.com/zircote/subcog/internal/index"
	"github.com/zircote/subcog/internal/model"
	"github.com/zircote/subcog/internal/vectorstore"
)

// SummaryResult is what an LlmProvider returns for one consolidation group
// (spec.md §4.10 step 1).
type SummaryResult struct {
	Content               string
	Tags                  []string
	ContradictionsDetected int
}

// LlmProvider is the external collaborator contract for consolidation
// summarization (spec.md §1 "LLM provider HTTP clients" is out of scope;
// only this interface matters).
type LlmProvider interface {
	Summarize(ctx context.Context, group []model.Memory) (SummaryResult, error)
}

// Config tunes grouping thresholds (spec.md §4.10 defaults).
type Config struct {
	SimilarityThreshold     float64
	MinMemoriesToConsolidate int
	GroupScanLimit          int
}

// DefaultConfig mirrors spec.md §4.10's defaults.
func DefaultConfig() Config {
	return Config{SimilarityThreshold: 0.85, MinMemoriesToConsolidate: 3, GroupScanLimit: 500}
}

// Group is a candidate set of memories for summarization.
type Group struct {
	Namespace model.Namespace
	Memories  []model.Memory
}

// Stats aggregates a consolidate_memories pass (spec.md §4.10 step 4).
type Stats struct {
	SummariesCreated int
	SourceCount      int
	Contradictions   int
	Groups           []Group
}

// Service implements find_related_memories / consolidate_memories.
type Service struct {
	idx      index.Backend
	vectors  vectorstore.VectorBackend
	embedder embeddings.Embedder
	capture  *capture.Service
	llm      LlmProvider
	cfg      Config
	logger   *zap.Logger
	nowFunc  func() int64
}

// New constructs a consolidation Service. llm may be nil: the service then
// degrades gracefully, skipping summarization but still reporting groups
// (spec.md §4.10 "MUST degrade gracefully when no provider is configured").
func New(idx index.Backend, vectors vectorstore.VectorBackend, embedder embeddings.Embedder, captureSvc *capture.Service, llm LlmProvider, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg = DefaultConfig()
	}
	return &Service{
		idx: idx, vectors: vectors, embedder: embedder, capture: captureSvc, llm: llm,
		cfg: cfg, logger: logger, nowFunc: func() int64 { return time.Now().Unix() },
	}
}

// FindRelatedMemories groups active memories by cosine similarity within
// each namespace, using the vector backend to fetch neighbours (spec.md
// §4.10). Groups of size >= MinMemoriesToConsolidate are candidates.
func (s *Service) FindRelatedMemories(ctx context.Context) ([]Group, error) {
	if s.idx == nil || s.vectors == nil {
		return nil, errs.FeatureNotEnabled("consolidation")
	}

	var groups []Group
	for _, ns := range model.AllNamespaces {
		hits, err := s.idx.ListAll(ctx, model.SearchFilter{
			Namespaces:        []model.Namespace{ns},
			Statuses:          []model.Status{model.StatusActive},
			IncludeTombstoned: false,
		}, s.cfg.GroupScanLimit)
		if err != nil {
			return nil, errs.OperationFailed("consolidation.list", err)
		}
		if len(hits) == 0 {
			continue
		}

		memories := make(map[string]model.Memory, len(hits))
		for _, h := range hits {
			m, err := s.idx.GetMemory(ctx, h.ID)
			if err != nil || m.IsSummary {
				continue
			}
			memories[m.ID] = m
		}

		visited := make(map[string]bool, len(memories))
		for id, m := range memories {
			if visited[id] || len(m.Embedding) == 0 {
				continue
			}
			group := s.expandGroup(ctx, m, memories, visited, ns)
			if len(group) >= s.cfg.MinMemoriesToConsolidate {
				groups = append(groups, Group{Namespace: ns, Memories: group})
			}
		}
	}
	return groups, nil
}

// expandGroup grows a cluster from seed by repeatedly querying the vector
// backend for neighbours above SimilarityThreshold, marking visited ids so
// no memory is claimed by two groups in the same pass.
func (s *Service) expandGroup(ctx context.Context, seed model.Memory, pool map[string]model.Memory, visited map[string]bool, ns model.Namespace) []model.Memory {
	visited[seed.ID] = true
	group := []model.Memory{seed}

	queue := []model.Memory{seed}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		hits, err := s.vectors.Search(ctx, cur.Embedding, vectorstore.VectorFilter{Namespace: ns, Domain: cur.Domain}, 10)
		if err != nil {
			continue
		}
		for _, h := range hits {
			if visited[h.ID] || float64(h.Score) < s.cfg.SimilarityThreshold {
				continue
			}
			neighbor, ok := pool[h.ID]
			if !ok {
				continue
			}
			visited[h.ID] = true
			group = append(group, neighbor)
			queue = append(queue, neighbor)
		}
	}
	return group
}

// ConsolidateMemories summarizes each candidate group via the configured
// LlmProvider and captures the result as an is_summary=true memory linked
// to its sources (spec.md §4.10 steps 1-4). Sources are never tombstoned;
// they remain independently searchable.
func (s *Service) ConsolidateMemories(ctx context.Context, dryRun bool) (Stats, error) {
	groups, err := s.FindRelatedMemories(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Groups: groups}
	for _, g := range groups {
		stats.SourceCount += len(g.Memories)
		if dryRun || s.llm == nil {
			continue
		}

		summary, err := s.llm.Summarize(ctx, g.Memories)
		if err != nil {
			s.logger.Warn("consolidation: summarize failed", zap.String("namespace", string(g.Namespace)), zap.Error(err))
			continue
		}

		sourceIDs := make([]string, len(g.Memories))
		for i, m := range g.Memories {
			sourceIDs[i] = m.ID
		}

		domain := g.Memories[0].Domain
		result, err := s.capture.Capture(ctx, capture.Request{
			Content:   summary.Content,
			Namespace: g.Namespace,
			Domain:    domain,
			Tags:      summary.Tags,
			Source:    "consolidation",
		})
		if err != nil {
			s.logger.Warn("consolidation: capturing summary failed", zap.Error(err))
			continue
		}
		if result.Duplicate {
			continue
		}

		if err := s.capture.LinkSummary(ctx, result.MemoryID, sourceIDs); err != nil {
			s.logger.Warn("consolidation: linking summary failed", zap.String("memory_id", result.MemoryID), zap.Error(err))
			continue
		}

		stats.SummariesCreated++
		stats.Contradictions += summary.ContradictionsDetected
	}
	return stats, nil
}
