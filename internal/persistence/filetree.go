package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/zircote/subcog/internal/model"
)

// FileTreeBackend implements Backend as one JSON envelope file per memory,
// named by id, under a single root directory (spec.md §4.4, §6.6). It is
// the canonical source for reindex.
type FileTreeBackend struct {
	root string
	mu   sync.RWMutex
}

// OpenFileTree opens (creating if necessary) a file-per-record store rooted
// at dir.
func OpenFileTree(dir string) (*FileTreeBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("persistence: creating root %s: %w", dir, err)
	}
	return &FileTreeBackend{root: dir}, nil
}

func (b *FileTreeBackend) pathFor(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return "", fmt.Errorf("persistence: invalid memory id %q", id)
	}
	return filepath.Join(b.root, id+".json"), nil
}

func (b *FileTreeBackend) Put(ctx context.Context, m model.Memory) error {
	path, err := b.pathFor(m.ID)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("persistence: encoding memory %s: %w", m.ID, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("persistence: writing memory %s: %w", m.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("persistence: committing memory %s: %w", m.ID, err)
	}
	return nil
}

func (b *FileTreeBackend) Get(ctx context.Context, id string) (model.Memory, error) {
	path, err := b.pathFor(id)
	if err != nil {
		return model.Memory{}, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return model.Memory{}, ErrNotFound
	}
	if err != nil {
		return model.Memory{}, fmt.Errorf("persistence: reading memory %s: %w", id, err)
	}

	var m model.Memory
	if err := json.Unmarshal(data, &m); err != nil {
		return model.Memory{}, fmt.Errorf("persistence: decoding memory %s: %w", id, err)
	}
	return m, nil
}

func (b *FileTreeBackend) Remove(ctx context.Context, id string) (bool, error) {
	path, err := b.pathFor(id)
	if err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("persistence: removing memory %s: %w", id, err)
	}
	return true, nil
}

func (b *FileTreeBackend) ListByFilter(ctx context.Context, filter model.SearchFilter, limit int) ([]model.Memory, error) {
	b.mu.RLock()
	entries, err := os.ReadDir(b.root)
	b.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("persistence: listing %s: %w", b.root, err)
	}

	var out []model.Memory
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		m, err := b.Get(ctx, id)
		if err != nil {
			continue
		}
		if filter.Matches(m) {
			out = append(out, m)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (b *FileTreeBackend) Close() error { return nil }

var _ Backend = (*FileTreeBackend)(nil)
