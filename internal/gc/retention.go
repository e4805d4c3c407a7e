// Package gc implements the two garbage collectors described in spec.md
// §4.8/§4.9: retention-policy GC (per-namespace age cutoff) and TTL
// expiration GC (explicit expires_at). Both tombstone rather than delete,
// scan in batch-limited passes, and record per-namespace/aggregate stats.
package gc

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/zircote/subcog/internal/errs"
	"github.com/zircote/subcog/internal/index"
	"github.com/zircote/subcog/internal/model"
)

const secondsPerDay = 86400

// RetentionConfig carries default/minimum retention and per-namespace
// overrides (spec.md §4.8).
type RetentionConfig struct {
	DefaultDays  int
	MinimumDays  int
	BatchLimit   int
	Overrides    map[model.Namespace]int
}

// DefaultRetentionConfig mirrors spec.md §6.3's environment defaults.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		DefaultDays: 365,
		MinimumDays: 7,
		BatchLimit:  500,
		Overrides:   map[model.Namespace]int{},
	}
}

// EffectiveDays computes max(override.unwrap_or(default), minimum) for ns
// (spec.md §4.8; tested by the "Retention floor" property in §8).
func (c RetentionConfig) EffectiveDays(ns model.Namespace) int {
	days := c.DefaultDays
	if override, ok := c.Overrides[ns]; ok {
		days = override
	}
	if days < c.MinimumDays {
		return c.MinimumDays
	}
	return days
}

// CutoffTimestamp returns now - effective_days*86400 for ns.
func (c RetentionConfig) CutoffTimestamp(ns model.Namespace, now int64) int64 {
	return now - int64(c.EffectiveDays(ns))*secondsPerDay
}

// NamespaceStats aggregates one namespace's pass.
type NamespaceStats struct {
	Namespace          model.Namespace
	Scanned            int
	Tombstoned         int
	Failed             int
}

// Result aggregates a full gc_expired_memories pass (spec.md §4.8).
type Result struct {
	DryRun       bool
	ByNamespace  map[model.Namespace]*NamespaceStats
	Tombstoned   int
	Failed       int
	Duration     time.Duration
}

// RetentionGC implements spec.md §4.8's algorithm against an IndexBackend.
type RetentionGC struct {
	idx     index.Backend
	cfg     RetentionConfig
	logger  *zap.Logger
	nowFunc func() int64
}

// NewRetentionGC constructs a RetentionGC.
func NewRetentionGC(idx index.Backend, cfg RetentionConfig, logger *zap.Logger) *RetentionGC {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = DefaultRetentionConfig().BatchLimit
	}
	return &RetentionGC{idx: idx, cfg: cfg, logger: logger, nowFunc: func() int64 { return time.Now().Unix() }}
}

// GCExpiredMemories scans every namespace for memories older than their
// effective cutoff and tombstones them, unless dryRun is set (spec.md
// §4.8).
func (g *RetentionGC) GCExpiredMemories(ctx context.Context, dryRun bool) (Result, error) {
	start := time.Now()
	now := g.nowFunc()
	result := Result{DryRun: dryRun, ByNamespace: map[model.Namespace]*NamespaceStats{}}

	for _, ns := range model.AllNamespaces {
		stats := &NamespaceStats{Namespace: ns}
		result.ByNamespace[ns] = stats

		cutoff := g.cfg.CutoffTimestamp(ns, now)
		filter := model.SearchFilter{Namespaces: []model.Namespace{ns}, IncludeTombstoned: false}
		hits, err := g.idx.ListAll(ctx, filter, g.cfg.BatchLimit)
		if err != nil {
			return result, errs.OperationFailed("gc.retention.list", err)
		}

		for _, h := range hits {
			stats.Scanned++
			m, err := g.idx.GetMemory(ctx, h.ID)
			if err != nil {
				stats.Failed++
				result.Failed++
				continue
			}
			if m.CreatedAt >= cutoff {
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
				g.logger.Warn("retention gc: tombstone write failed", zap.String("memory_id", m.ID), zap.Error(err))
				continue
			}
			stats.Tombstoned++
			result.Tombstoned++
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}
