package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/zircote/subcog/internal/model"
)

// SQLiteBackend implements Backend as a single SQLite table, storing the
// embedding as a JSON-encoded array so every field round-trips exactly
// (spec.md §4.4).
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite-backed persistence store at path.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persistence: opening sqlite at %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: setting journal mode: %w", err)
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS memory_records (
	id TEXT PRIMARY KEY,
	namespace TEXT NOT NULL,
	domain_key TEXT NOT NULL,
	domain_org TEXT,
	domain_project TEXT,
	domain_repo TEXT,
	project_id TEXT,
	branch TEXT,
	file_path TEXT,
	status TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	tombstoned_at INTEGER,
	expires_at INTEGER,
	tags TEXT NOT NULL DEFAULT '',
	source TEXT,
	content TEXT NOT NULL,
	embedding TEXT,
	is_summary INTEGER NOT NULL DEFAULT 0,
	source_memory_ids TEXT,
	consolidation_timestamp INTEGER
)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: creating schema: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_memory_records_created_at ON memory_records(created_at)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: creating index: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Put(ctx context.Context, m model.Memory) error {
	var embeddingJSON sql.NullString
	if len(m.Embedding) > 0 {
		data, err := json.Marshal(m.Embedding)
		if err != nil {
			return fmt.Errorf("persistence: encoding embedding for %s: %w", m.ID, err)
		}
		embeddingJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err := b.db.ExecContext(ctx, `
INSERT INTO memory_records (
	id, namespace, domain_key, domain_org, domain_project, domain_repo,
	project_id, branch, file_path, status, created_at, updated_at,
	tombstoned_at, expires_at, tags, source, content, embedding,
	is_summary, source_memory_ids, consolidation_timestamp
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
	namespace=excluded.namespace, domain_key=excluded.domain_key,
	domain_org=excluded.domain_org, domain_project=excluded.domain_project,
	domain_repo=excluded.domain_repo, project_id=excluded.project_id,
	branch=excluded.branch, file_path=excluded.file_path,
	status=excluded.status, created_at=excluded.created_at,
	updated_at=excluded.updated_at, tombstoned_at=excluded.tombstoned_at,
	expires_at=excluded.expires_at, tags=excluded.tags, source=excluded.source,
	content=excluded.content, embedding=excluded.embedding,
	is_summary=excluded.is_summary, source_memory_ids=excluded.source_memory_ids,
	consolidation_timestamp=excluded.consolidation_timestamp
`,
		m.ID, string(m.Namespace), m.Domain.Key(), m.Domain.Organization, m.Domain.Project, m.Domain.Repository,
		m.ProjectID, m.Branch, m.FilePath, string(m.Status), m.CreatedAt, m.UpdatedAt,
		m.TombstonedAt, m.ExpiresAt, m.TagsCSV(), m.Source, m.Content, embeddingJSON,
		boolToInt(m.IsSummary), strings.Join(m.SourceMemoryIDs, ","), m.ConsolidationTimestamp,
	)
	if err != nil {
		return fmt.Errorf("persistence: upserting memory %s: %w", m.ID, err)
	}
	return nil
}

func (b *SQLiteBackend) Get(ctx context.Context, id string) (model.Memory, error) {
	row := b.db.QueryRowContext(ctx, `
SELECT id, namespace, domain_key, domain_org, domain_project, domain_repo,
	project_id, branch, file_path, status, created_at, updated_at,
	tombstoned_at, expires_at, tags, source, content, embedding,
	is_summary, source_memory_ids, consolidation_timestamp
FROM memory_records WHERE id = ?`, id)

	m, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return model.Memory{}, ErrNotFound
	}
	if err != nil {
		return model.Memory{}, fmt.Errorf("persistence: scanning memory %s: %w", id, err)
	}
	return m, nil
}

func (b *SQLiteBackend) Remove(ctx context.Context, id string) (bool, error) {
	res, err := b.db.ExecContext(ctx, `DELETE FROM memory_records WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("persistence: removing memory %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (b *SQLiteBackend) ListByFilter(ctx context.Context, filter model.SearchFilter, limit int) ([]model.Memory, error) {
	// The persistence layer does not implement the index's tag-safe SQL
	// predicate assembly (that is internal/index's specialty); it scans and
	// applies SearchFilter.Matches in memory, since ListByFilter's primary
	// callers (dedup exact-match, reindex) work over modest record counts.
	rows, err := b.db.QueryContext(ctx, `
SELECT id, namespace, domain_key, domain_org, domain_project, domain_repo,
	project_id, branch, file_path, status, created_at, updated_at,
	tombstoned_at, expires_at, tags, source, content, embedding,
	is_summary, source_memory_ids, consolidation_timestamp
FROM memory_records ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("persistence: listing: %w", err)
	}
	defer rows.Close()

	var out []model.Memory
	for rows.Next() {
		m, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("persistence: scanning row: %w", err)
		}
		if filter.Matches(m) {
			out = append(out, m)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) Close() error { return b.db.Close() }

type sqlRowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row sqlRowScanner) (model.Memory, error) {
	var m model.Memory
	var domainOrg, domainProject, domainRepo, projectID, branch, filePath, tags, source, sourceIDs sql.NullString
	var embeddingJSON sql.NullString
	var tombstonedAt, expiresAt, consolidationTS sql.NullInt64
	var isSummary int64
	var domainKey string

	err := row.Scan(
		&m.ID, &m.Namespace, &domainKey, &domainOrg, &domainProject, &domainRepo,
		&projectID, &branch, &filePath, &m.Status, &m.CreatedAt, &m.UpdatedAt,
		&tombstonedAt, &expiresAt, &tags, &source, &m.Content, &embeddingJSON,
		&isSummary, &sourceIDs, &consolidationTS,
	)
	if err != nil {
		return model.Memory{}, err
	}

	m.Domain = model.Domain{
		Organization: domainOrg.String,
		Project:      domainProject.String,
		Repository:   domainRepo.String,
	}
	switch {
	case strings.HasPrefix(domainKey, "project"):
		m.Domain.Scope = model.ScopeProject
	case strings.HasPrefix(domainKey, "org"):
		m.Domain.Scope = model.ScopeOrg
	case domainKey == "user":
		m.Domain.Scope = model.ScopeUser
	}

	m.ProjectID = projectID.String
	m.Branch = branch.String
	m.FilePath = filePath.String
	m.Source = source.String
	m.IsSummary = isSummary != 0

	if tombstonedAt.Valid {
		v := tombstonedAt.Int64
		m.TombstonedAt = &v
	}
	if expiresAt.Valid {
		v := expiresAt.Int64
		m.ExpiresAt = &v
	}
	if consolidationTS.Valid {
		v := consolidationTS.Int64
		m.ConsolidationTimestamp = &v
	}
	if tags.String != "" {
		m.Tags = strings.Split(tags.String, ",")
	}
	if sourceIDs.String != "" {
		m.SourceMemoryIDs = strings.Split(sourceIDs.String, ",")
	}
	if embeddingJSON.Valid && embeddingJSON.String != "" {
		if err := json.Unmarshal([]byte(embeddingJSON.String), &m.Embedding); err != nil {
			return model.Memory{}, fmt.Errorf("decoding embedding: %w", err)
		}
	}
	return m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Backend = (*SQLiteBackend)(nil)
