// Package capture implements CaptureService (spec.md §4.6): the nine-step
// validate → redact → dedup → persist → index → vectorize → record → emit
// pipeline every captured memory passes through.
package capture

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zircote/subcog/internal/dedup"
	"github.com/zircote/subcog/internal/embeddings"
	"github.com/zircote/subcog/internal/errs"
	"github.com/zircote/subcog/internal/index"
	"github.com/zircote/subcog/internal/model"
	"github.com/zircote/subcog/internal/persistence"
	"github.com/zircote/subcog/internal/secrets"
	"github.com/zircote/subcog/internal/vectorstore"
)

// MaxContentBytes is the default content size cap enforced at validation
// (spec.md §4.6 step 1); configurable via Config.MaxContentBytes.
const MaxContentBytes = 64 * 1024

// Request is the caller-supplied input to Capture.
type Request struct {
	Content   string
	Namespace model.Namespace
	Domain    model.Domain
	Tags      []string
	Source    string
	ProjectID string
	Branch    string
	FilePath  string
	TTL       time.Duration // zero means no expiry
}

// Result is CaptureResult (spec.md §4.6 step 9).
type Result struct {
	MemoryID        string
	URN             string
	ContentModified bool
	TTLSeconds      int64
	Duplicate       bool
	DuplicateReason dedup.Variant
}

// Config tunes validation and the TTL cap.
type Config struct {
	MaxContentBytes int
	BlockOnSecret   bool
}

// EventSink receives MemoryEvent emissions (spec.md §4.6 step 9). Typically
// the webhook dispatcher; nil is a valid no-op sink.
type EventSink interface {
	Emit(ctx context.Context, event model.MemoryEvent)
}

// Service implements the capture pipeline over injected backend handles,
// none of which the service reaches into beyond their published contracts
// (spec.md §9 "dynamic dispatch over backends").
type Service struct {
	cfg        Config
	persist    persistence.Backend
	idx        index.Backend
	vectors    vectorstore.VectorBackend
	embedder   embeddings.Embedder
	dedup      *dedup.Deduplicator
	scrubber   secrets.Scrubber
	events     EventSink
	logger     *zap.Logger
	nowFunc    func() int64
	idFunc     func() string
	expiration ExpirationTrigger
}

// ExpirationTrigger is the subset of gc.ExpirationGC the capture path needs
// to opportunistically run TTL GC after a successful capture (spec.md
// §4.9's probabilistic lazy invocation).
type ExpirationTrigger interface {
	MaybeTrigger(ctx context.Context)
}

func WithExpirationTrigger(t ExpirationTrigger) Option {
	return func(s *Service) { s.expiration = t }
}

// Option configures optional Service fields.
type Option func(*Service)

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.logger = l } }
func WithEventSink(e EventSink) Option { return func(s *Service) { s.events = e } }
func WithScrubber(sc secrets.Scrubber) Option { return func(s *Service) { s.scrubber = sc } }

// New constructs a capture Service. persist and idx are required; vectors,
// embedder, dedup, scrubber and events may be nil and degrade gracefully
// per spec.md §4.6's failure semantics.
func New(cfg Config, persist persistence.Backend, idx index.Backend, vectors vectorstore.VectorBackend, embedder embeddings.Embedder, dd *dedup.Deduplicator, opts ...Option) *Service {
	if cfg.MaxContentBytes <= 0 {
		cfg.MaxContentBytes = MaxContentBytes
	}
	s := &Service{
		cfg:      cfg,
		persist:  persist,
		idx:      idx,
		vectors:  vectors,
		embedder: embedder,
		dedup:    dd,
		logger:   zap.NewNop(),
		nowFunc:  func() int64 { return time.Now().Unix() },
		idFunc:   func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Capture runs the nine-step pipeline (spec.md §4.6).
func (s *Service) Capture(ctx context.Context, req Request) (Result, error) {
	// Step 1: validate.
	if req.Namespace == "" || !req.Namespace.Valid() {
		return Result{}, errs.InvalidInputf("namespace is required and must be one of the closed set")
	}
	if req.Content == "" {
		return Result{}, errs.InvalidInputf("content must not be empty")
	}
	if len(req.Content) > s.cfg.MaxContentBytes {
		return Result{}, errs.InvalidInputf("content exceeds %d byte cap", s.cfg.MaxContentBytes)
	}

	content := req.Content
	contentModified := false

	// Step 2: security redaction.
	if s.scrubber != nil && s.scrubber.IsEnabled() {
		result := s.scrubber.Scrub(content)
		if result.HasFindings() {
			contentModified = true
			if s.cfg.BlockOnSecret {
				return Result{}, errs.SecretDetected()
			}
			content = result.Scrubbed
		}
	}

	// Step 3: dedup.
	if s.dedup != nil {
		dup := s.dedup.CheckDuplicate(ctx, content, req.Namespace, req.Domain)
		if dup.IsDuplicate() {
			return Result{
				MemoryID:        dup.MemoryID,
				URN:             dup.URN,
				Duplicate:       true,
				DuplicateReason: dup.Variant,
			}, nil
		}
	}

	// Step 4: assign id, build Memory.
	now := s.nowFunc()
	id := s.idFunc()
	m := model.Memory{
		ID:        id,
		Content:   content,
		Namespace: req.Namespace,
		Domain:    req.Domain,
		ProjectID: req.ProjectID,
		Branch:    req.Branch,
		FilePath:  req.FilePath,
		Status:    model.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
		Tags:      model.Memory{Tags: req.Tags}.NormalizedTags(),
		Source:    req.Source,
	}
	var ttlSeconds int64
	if req.TTL > 0 {
		ttlSeconds = int64(req.TTL.Seconds())
		expires := now + ttlSeconds
		m.ExpiresAt = &expires
	}

	// Step 5: persist (record-of-truth; failure aborts the capture).
	if s.persist == nil {
		return Result{}, errs.BackendUnavailable("persistence")
	}
	if err := s.persist.Put(ctx, m); err != nil {
		return Result{}, errs.OperationFailed("capture.persist", err)
	}

	// Step 6: embed + upsert to vector store (best-effort).
	if s.embedder != nil && s.vectors != nil {
		vec, err := s.embedder.EmbedDocuments(ctx, []string{content})
		if err != nil {
			s.logger.Warn("capture: embedding failed, vector index will be stale until reindex",
				zap.String("memory_id", id), zap.Error(err))
		} else {
			m.Embedding = vec[0]
			if err := s.vectors.Upsert(ctx, id, vec[0], vectorstore.VectorFilter{Namespace: req.Namespace, Domain: req.Domain}); err != nil {
				s.logger.Warn("capture: vector upsert failed, will be repaired by reindex",
					zap.String("memory_id", id), zap.Error(err))
			}
		}
	}

	// Step 7: index (best-effort).
	if s.idx != nil {
		if err := s.idx.Index(ctx, m); err != nil {
			s.logger.Warn("capture: indexing failed, will be repaired by reindex",
				zap.String("memory_id", id), zap.Error(err))
		}
	}

	// Step 8: record content hash in dedup LRU.
	if s.dedup != nil {
		s.dedup.RecordCapture(dedup.ContentHash(content), id, req.Namespace, req.Domain)
	}

	// Step 9: emit event, return result.
	if s.events != nil {
		s.events.Emit(ctx, model.MemoryEvent{
			Meta: model.EventMeta{EventID: uuid.NewString(), Timestamp: now},
			Type: model.EventCaptured,
			Domain: req.Domain,
			Data: map[string]interface{}{
				"memory_id":        id,
				"namespace":        string(req.Namespace),
				"content_modified": contentModified,
			},
		})
	}

	if s.expiration != nil {
		s.expiration.MaybeTrigger(ctx)
	}

	return Result{
		MemoryID:        id,
		URN:             m.URN(),
		ContentModified: contentModified,
		TTLSeconds:      ttlSeconds,
	}, nil
}

// Reindex rebuilds the index and vector store entirely from persistence
// (spec.md §8 "Reindex" property): clear both derived stores, then replay
// every persisted memory through Index/Upsert.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	if s.persist == nil {
		return 0, errs.BackendUnavailable("persistence")
	}
	memories, err := s.persist.ListByFilter(ctx, model.SearchFilter{IncludeTombstoned: true}, 0)
	if err != nil {
		return 0, errs.OperationFailed("reindex.list", err)
	}

	if s.idx != nil {
		if err := s.idx.Clear(ctx); err != nil {
			return 0, errs.OperationFailed("reindex.clear_index", err)
		}
	}
	if s.vectors != nil {
		if err := s.vectors.Clear(ctx); err != nil {
			return 0, errs.OperationFailed("reindex.clear_vectors", err)
		}
	}

	count := 0
	for _, m := range memories {
		if s.idx != nil {
			if err := s.idx.Index(ctx, m); err != nil {
				s.logger.Warn("reindex: index failed", zap.String("memory_id", m.ID), zap.Error(err))
				continue
			}
		}
		if s.vectors != nil && len(m.Embedding) > 0 && !m.IsTombstoned() {
			if err := s.vectors.Upsert(ctx, m.ID, m.Embedding, vectorstore.VectorFilter{Namespace: m.Namespace, Domain: m.Domain}); err != nil {
				s.logger.Warn("reindex: vector upsert failed", zap.String("memory_id", m.ID), zap.Error(err))
			}
		}
		count++
	}
	return count, nil
}

// LinkSummary stamps an already-captured memory as a consolidation summary
// node (is_summary=true, source_memory_ids, consolidation_timestamp) and
// writes the change through persistence before re-indexing (spec.md §4.10
// step 2). Persistence is the record of truth; without this the link would
// be silently dropped the next time reindex() rebuilds the index.
func (s *Service) LinkSummary(ctx context.Context, id string, sourceIDs []string) error {
	if s.persist == nil {
		return errs.BackendUnavailable("persistence")
	}
	m, err := s.persist.Get(ctx, id)
	if err != nil {
		if err == persistence.ErrNotFound {
			return errs.NotFound()
		}
		return errs.OperationFailed("link_summary.get", err)
	}
	now := s.nowFunc()
	m.IsSummary = true
	m.SourceMemoryIDs = sourceIDs
	m.ConsolidationTimestamp = &now
	m.UpdatedAt = now

	if err := s.persist.Put(ctx, m); err != nil {
		return errs.OperationFailed("link_summary.persist", err)
	}
	if s.idx != nil {
		if err := s.idx.Index(ctx, m); err != nil {
			s.logger.Warn("link_summary: indexing failed, will be repaired by reindex",
				zap.String("memory_id", id), zap.Error(err))
		}
	}
	return nil
}

// Delete tombstones a memory by id: sets tombstoned_at, removes its vector,
// and re-indexes the tombstoned record (the index record is retained until
// GC reaps it, per spec.md §3 invariant 2).
func (s *Service) Delete(ctx context.Context, id string) error {
	if s.persist == nil {
		return errs.BackendUnavailable("persistence")
	}
	m, err := s.persist.Get(ctx, id)
	if err != nil {
		if err == persistence.ErrNotFound {
			return errs.NotFound()
		}
		return errs.OperationFailed("delete.get", err)
	}
	now := s.nowFunc()
	m.Status = model.StatusTombstoned
	m.TombstonedAt = &now
	m.UpdatedAt = now

	if err := s.persist.Put(ctx, m); err != nil {
		return errs.OperationFailed("delete.persist", err)
	}
	if s.vectors != nil {
		if _, err := s.vectors.Remove(ctx, id); err != nil {
			s.logger.Warn("delete: vector remove failed", zap.String("memory_id", id), zap.Error(err))
		}
	}
	if s.idx != nil {
		if err := s.idx.Index(ctx, m); err != nil {
			s.logger.Warn("delete: reindexing tombstone failed", zap.String("memory_id", id), zap.Error(err))
		}
	}
	return nil
}
