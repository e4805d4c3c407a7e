// Package tenant resolves the domain-scoped backend for an operation
// (project | user | org) and opens the concrete storage handles for it
// (spec.md §4.11).
package tenant

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/zircote/subcog/internal/index"
	"github.com/zircote/subcog/internal/model"
	"github.com/zircote/subcog/internal/persistence"
	"github.com/zircote/subcog/internal/vectorstore"
)

// PersistenceKind selects the concrete PersistenceBackend a StorageConfig
// opens.
type PersistenceKind string

const (
	PersistenceSQLite   PersistenceKind = "sqlite"
	PersistenceFileTree PersistenceKind = "filetree"
)

// StorageConfig is the resolved set of paths and preferences for one domain
// scope.
type StorageConfig struct {
	// PreferredPersistence is tried first; on open failure the Factory falls
	// back to a file-tree backend rooted at Dir, logging a warning
	// (spec.md §4.11's "try preferred, fall back to filesystem" policy).
	PreferredPersistence PersistenceKind
	// Dir is the root directory for this scope (e.g.
	// "<user-config>/subcog/project/<repo>"). SQLite files and the file-tree
	// both live under it.
	Dir string
	// VectorCollection names the chromem-go collection for this scope.
	VectorCollection string
	// EmbeddingDim is the fixed embedding dimension for this scope's vector
	// store (spec.md §3: "embedding dimension is a backend-wide constant").
	EmbeddingDim int
}

// FactoryConfig supplies one StorageConfig per domain scope.
type FactoryConfig struct {
	Project StorageConfig
	User    StorageConfig
	Org     StorageConfig
	// OrgEnabled gates org-scoped routing behind a feature flag
	// (spec.md §4.11).
	OrgEnabled bool
}

// Backends bundles the three storage handles an operation needs for a
// resolved domain.
type Backends struct {
	Persistence persistence.Backend
	Index       index.Backend
	Vector      vectorstore.VectorBackend
}

// Close closes every open handle, returning the first error encountered.
func (b *Backends) Close() error {
	var firstErr error
	for _, c := range []interface{ Close() error }{b.Persistence, b.Index, b.Vector} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Factory opens the Backends for a resolved Domain, selecting the concrete
// persistence implementation per scope and falling back to a file-tree
// backend when the preferred one fails to initialize.
type Factory struct {
	cfg    FactoryConfig
	logger *zap.Logger
}

// NewFactory constructs a Factory. A nil logger is replaced with a no-op
// logger.
func NewFactory(cfg FactoryConfig, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{cfg: cfg, logger: logger}
}

// Open resolves domain to a StorageConfig and opens its backends, applying
// the preferred-backend-with-filesystem-fallback policy for persistence.
func (f *Factory) Open(domain model.Domain) (*Backends, error) {
	sc, err := f.configFor(domain)
	if err != nil {
		return nil, err
	}

	idx, err := index.Open(filepath.Join(sc.Dir, "index.db"))
	if err != nil {
		return nil, fmt.Errorf("tenant: opening index backend for %s: %w", domain.Key(), err)
	}

	persist, err := f.openPersistence(sc)
	if err != nil {
		idx.Close()
		return nil, err
	}

	vec, err := vectorstore.NewChromemBackend(vectorstore.ChromemConfig{
		Path:       filepath.Join(sc.Dir, "vectors"),
		Collection: sc.VectorCollection,
		Dimensions: sc.EmbeddingDim,
	}, f.logger)
	if err != nil {
		idx.Close()
		persist.Close()
		return nil, fmt.Errorf("tenant: opening vector backend for %s: %w", domain.Key(), err)
	}

	return &Backends{Persistence: persist, Index: idx, Vector: vec}, nil
}

// openPersistence tries sc.PreferredPersistence and falls back to a
// file-tree backend under sc.Dir on failure, logging a warning
// (spec.md §4.11).
func (f *Factory) openPersistence(sc StorageConfig) (persistence.Backend, error) {
	switch sc.PreferredPersistence {
	case PersistenceFileTree:
		return persistence.OpenFileTree(filepath.Join(sc.Dir, "memories"))
	case PersistenceSQLite, "":
		backend, err := persistence.OpenSQLite(filepath.Join(sc.Dir, "memories.db"))
		if err == nil {
			return backend, nil
		}
		f.logger.Warn("tenant: preferred sqlite persistence backend failed to open, falling back to filesystem tree",
			zap.String("dir", sc.Dir), zap.Error(err))
		return persistence.OpenFileTree(filepath.Join(sc.Dir, "memories"))
	default:
		return nil, fmt.Errorf("tenant: unknown persistence kind %q", sc.PreferredPersistence)
	}
}

// configFor returns the StorageConfig for domain.Scope, enforcing the org
// feature flag.
func (f *Factory) configFor(domain model.Domain) (StorageConfig, error) {
	switch domain.Scope {
	case model.ScopeProject:
		return f.cfg.Project, nil
	case model.ScopeUser:
		return f.cfg.User, nil
	case model.ScopeOrg:
		if !f.cfg.OrgEnabled {
			return StorageConfig{}, ErrOrgScopeDisabled
		}
		return f.cfg.Org, nil
	default:
		return StorageConfig{}, fmt.Errorf("tenant: cannot open backends for scope %q", domain.Scope)
	}
}
