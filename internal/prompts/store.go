// Package prompts implements named, versioned PromptTemplate/ContextTemplate
// CRUD and {{var}}/{{#each}} rendering (spec.md §3, §4.13 prompt family).
package prompts

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zircote/subcog/internal/errs"
	"github.com/zircote/subcog/internal/model"
)

// Store is the domain-scoped prompt/context template CRUD contract.
// Implementations are backed by whichever PersistenceBackend the domain
// resolves to; Store itself only defines the shape.
type Store interface {
	Save(ctx context.Context, tmpl model.PromptTemplate) error
	Get(ctx context.Context, domain model.Domain, name string) (model.PromptTemplate, error)
	List(ctx context.Context, domain model.Domain) ([]model.PromptTemplate, error)
	Delete(ctx context.Context, domain model.Domain, name string) (bool, error)
}

// MemoryStore is an in-process Store, versioned by name within a domain
// key. It is the default implementation: prompt templates are small and
// infrequent compared to memories, so an in-memory map guarded by a mutex
// (mirroring the dedup LRU's interior-mutability pattern, spec.md §9) is
// sufficient; a durable variant can wrap PersistenceBackend with the same
// interface when cross-process persistence is required.
type MemoryStore struct {
	mu    sync.RWMutex
	byKey map[string]map[string]model.PromptTemplate // domain.Key() -> name -> template
	now   func() int64
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byKey: make(map[string]map[string]model.PromptTemplate),
		now:   func() int64 { return time.Now().Unix() },
	}
}

// Save inserts or replaces tmpl, bumping Version when a prior version
// exists under the same domain+name.
func (s *MemoryStore) Save(ctx context.Context, tmpl model.PromptTemplate) error {
	if tmpl.Name == "" {
		return errs.InvalidInputf("prompt name is required")
	}
	if tmpl.Body == "" {
		return errs.InvalidInputf("prompt body must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := tmpl.Domain.Key()
	bucket, ok := s.byKey[key]
	if !ok {
		bucket = make(map[string]model.PromptTemplate)
		s.byKey[key] = bucket
	}

	now := s.now()
	if existing, ok := bucket[tmpl.Name]; ok {
		tmpl.Version = existing.Version + 1
		tmpl.CreatedAt = existing.CreatedAt
	} else {
		tmpl.Version = 1
		tmpl.CreatedAt = now
	}
	tmpl.UpdatedAt = now
	if len(tmpl.Variables) == 0 {
		tmpl.Variables = ExtractVariables(tmpl.Body)
	}

	bucket[tmpl.Name] = tmpl
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, domain model.Domain, name string) (model.PromptTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket, ok := s.byKey[domain.Key()]
	if !ok {
		return model.PromptTemplate{}, errs.NotFound()
	}
	tmpl, ok := bucket[name]
	if !ok {
		return model.PromptTemplate{}, errs.NotFound()
	}
	return tmpl, nil
}

func (s *MemoryStore) List(ctx context.Context, domain model.Domain) ([]model.PromptTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket := s.byKey[domain.Key()]
	out := make([]model.PromptTemplate, 0, len(bucket))
	for _, t := range bucket {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, domain model.Domain, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.byKey[domain.Key()]
	if !ok {
		return false, nil
	}
	if _, ok := bucket[name]; !ok {
		return false, nil
	}
	delete(bucket, name)
	return true, nil
}

// URN returns subcog://{domain}/_prompts/{name} (spec.md §6.1).
func URN(domain model.Domain, name string) string {
	return fmt.Sprintf("subcog://%s/_prompts/%s", domain.String(), name)
}

var _ Store = (*MemoryStore)(nil)
