package hooks

import (
	"context"
	"strings"

	"github.com/zircote/subcog/internal/index"
	"github.com/zircote/subcog/internal/model"
	"github.com/zircote/subcog/internal/persistence"
)

func fakeDomain() model.Domain {
	return model.Domain{Scope: model.ScopeProject, Project: "widget"}
}

// fakePersistence is a minimal in-memory persistence.Backend for tests that
// need a real capture.Service or dedup.Deduplicator wired up.
type fakePersistence struct {
	records map[string]model.Memory
}

func newFakePersistence() *fakePersistence {
	return &fakePersistence{records: make(map[string]model.Memory)}
}

func (f *fakePersistence) Put(_ context.Context, m model.Memory) error {
	f.records[m.ID] = m
	return nil
}

func (f *fakePersistence) Get(_ context.Context, id string) (model.Memory, error) {
	m, ok := f.records[id]
	if !ok {
		return model.Memory{}, persistence.ErrNotFound
	}
	return m, nil
}

func (f *fakePersistence) Remove(_ context.Context, id string) (bool, error) {
	_, ok := f.records[id]
	delete(f.records, id)
	return ok, nil
}

func (f *fakePersistence) ListByFilter(_ context.Context, filter model.SearchFilter, limit int) ([]model.Memory, error) {
	var out []model.Memory
	for _, m := range f.records {
		if filter.Matches(m) {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakePersistence) Close() error { return nil }

// fakeIndex is a minimal in-memory index.Backend: Search does a
// case-insensitive substring match over content, scoring every hit 1.0.
type fakeIndex struct {
	records map[string]model.Memory
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{records: make(map[string]model.Memory)}
}

func (f *fakeIndex) Index(_ context.Context, m model.Memory) error {
	f.records[m.ID] = m
	return nil
}

func (f *fakeIndex) GetMemory(_ context.Context, id string) (model.Memory, error) {
	m, ok := f.records[id]
	if !ok {
		return model.Memory{}, index.ErrNotFound
	}
	return m, nil
}

func (f *fakeIndex) Remove(_ context.Context, id string) (bool, error) {
	_, ok := f.records[id]
	delete(f.records, id)
	return ok, nil
}

// Search matches if any whitespace-separated query term appears in the
// memory's content, case-insensitively — a simplified stand-in for the real
// lexical backend's scoring.
func (f *fakeIndex) Search(_ context.Context, query string, filter model.SearchFilter, limit int) ([]index.Hit, error) {
	var hits []index.Hit
	terms := strings.Fields(strings.ToLower(query))
	for _, m := range f.records {
		if !filter.Matches(m) {
			continue
		}
		content := strings.ToLower(m.Content)
		for _, term := range terms {
			if term != "" && strings.Contains(content, term) {
				hits = append(hits, index.Hit{ID: m.ID, Score: 1.0})
				break
			}
		}
	}
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (f *fakeIndex) ListAll(_ context.Context, filter model.SearchFilter, limit int) ([]index.Hit, error) {
	var hits []index.Hit
	for _, m := range f.records {
		if filter.Matches(m) {
			hits = append(hits, index.Hit{ID: m.ID, Score: 1.0})
		}
	}
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (f *fakeIndex) Clear(_ context.Context) error {
	f.records = make(map[string]model.Memory)
	return nil
}

func (f *fakeIndex) Close() error { return nil }
