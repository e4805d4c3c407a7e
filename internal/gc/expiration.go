package gc

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/zircote/subcog/internal/errs"
	"github.com/zircote/subcog/internal/index"
	"github.com/zircote/subcog/internal/model"
)

// ExpirationConfig configures the TTL expiration GC (spec.md §4.9, §6.3).
type ExpirationConfig struct {
	BatchLimit          int
	CleanupProbability  float64 // 0.0-1.0, triggers lazily after capture
}

// DefaultExpirationConfig mirrors spec.md §4.9's defaults.
func DefaultExpirationConfig() ExpirationConfig {
	return ExpirationConfig{BatchLimit: 500, CleanupProbability: 0.05}
}

// ExpirationGC tombstones memories whose explicit expires_at has passed
// (spec.md §4.9), independent of retention-policy age.
type ExpirationGC struct {
	idx     index.Backend
	cfg     ExpirationConfig
	logger  *zap.Logger
	nowFunc func() int64
}

// NewExpirationGC constructs an ExpirationGC.
func NewExpirationGC(idx index.Backend, cfg ExpirationConfig, logger *zap.Logger) *ExpirationGC {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = DefaultExpirationConfig().BatchLimit
	}
	return &ExpirationGC{idx: idx, cfg: cfg, logger: logger, nowFunc: func() int64 { return time.Now().Unix() }}
}

// GCExpiredMemories lists active memories up to BatchLimit and tombstones
// any whose expires_at has passed (spec.md §4.9).
func (g *ExpirationGC) GCExpiredMemories(ctx context.Context, dryRun bool) (Result, error) {
	start := time.Now()
	now := g.nowFunc()
	result := Result{DryRun: dryRun, ByNamespace: map[model.Namespace]*NamespaceStats{}}

	hits, err := g.idx.ListAll(ctx, model.SearchFilter{IncludeTombstoned: false}, g.cfg.BatchLimit)
	if err != nil {
		return result, errs.OperationFailed("gc.expiration.list", err)
	}

	for _, h := range hits {
		m, err := g.idx.GetMemory(ctx, h.ID)
		if err != nil {
			result.Failed++
			continue
		}
		stats, ok := result.ByNamespace[m.Namespace]
		if !ok {
			stats = &NamespaceStats{Namespace: m.Namespace}
			result.ByNamespace[m.Namespace] = stats
		}
		stats.Scanned++

		if !m.IsExpired(now) {
			continue
		}
		if dryRun {
			stats.Tombstoned++
			result.Tombstoned++
			continue
		}
		m.TombstonedAt = &now
		m.Status = model.StatusTombstoned
		m.UpdatedAt = now
		if err := g.idx.Index(ctx, m); err != nil {
			stats.Failed++
			result.Failed++
			g.logger.Warn("expiration gc: tombstone write failed", zap.String("memory_id", m.ID), zap.Error(err))
			continue
		}
		stats.Tombstoned++
		result.Tombstoned++
	}

	result.Duration = time.Since(start)
	return result, nil
}

// MaybeTrigger invokes GCExpiredMemories with probability CleanupProbability
// (spec.md §4.9's probabilistic lazy invocation from the capture path). It
// runs inline on the calling goroutine and swallows errors, logging a
// warning instead: opportunistic GC must never fail a capture.
func (g *ExpirationGC) MaybeTrigger(ctx context.Context) {
	if g.cfg.CleanupProbability <= 0 {
		return
	}
	if g.cfg.CleanupProbability < 1 && rand.Float64() >= g.cfg.CleanupProbability {
		return
	}
	if _, err := g.GCExpiredMemories(ctx, false); err != nil {
		g.logger.Warn("expiration gc: probabilistic trigger failed", zap.Error(err))
	}
}
