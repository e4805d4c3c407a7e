package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/zircote/subcog/internal/model"
)

// SQLiteIndex implements Backend on top of modernc.org/sqlite with an FTS5
// virtual table for lexical search (spec.md §4.2, §6.6).
type SQLiteIndex struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite-backed index at path. path may be
// ":memory:" for an ephemeral, process-local index (used by tests and by
// domains with no durable index configured).
func Open(path string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("index: opening sqlite at %s: %w", path, err)
	}
	// The embedded sqlite driver serializes writers; a single connection
	// avoids "database is locked" errors under concurrent access.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("index: setting journal mode: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteIndex{db: db}, nil
}

func (b *SQLiteIndex) Index(ctx context.Context, m model.Memory) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback()

	tags := m.TagsCSV()
	sourceIDs := strings.Join(m.SourceMemoryIDs, ",")

	_, err = tx.ExecContext(ctx, `
INSERT INTO memories (
	id, namespace, domain_key, project_id, branch, file_path, status,
	created_at, updated_at, tombstoned_at, expires_at, tags, source, content,
	is_summary, source_memory_ids, consolidation_timestamp
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
	namespace=excluded.namespace, domain_key=excluded.domain_key,
	project_id=excluded.project_id, branch=excluded.branch,
	file_path=excluded.file_path, status=excluded.status,
	created_at=excluded.created_at, updated_at=excluded.updated_at,
	tombstoned_at=excluded.tombstoned_at, expires_at=excluded.expires_at,
	tags=excluded.tags, source=excluded.source, content=excluded.content,
	is_summary=excluded.is_summary, source_memory_ids=excluded.source_memory_ids,
	consolidation_timestamp=excluded.consolidation_timestamp
`,
		m.ID, string(m.Namespace), m.Domain.Key(), m.ProjectID, m.Branch, m.FilePath, string(m.Status),
		m.CreatedAt, m.UpdatedAt, m.TombstonedAt, m.ExpiresAt, tags, m.Source, m.Content,
		boolToInt(m.IsSummary), sourceIDs, m.ConsolidationTimestamp,
	)
	if err != nil {
		return fmt.Errorf("index: upserting memory %s: %w", m.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM memories_fts WHERE id = ?`, m.ID); err != nil {
		return fmt.Errorf("index: clearing fts row for %s: %w", m.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO memories_fts (id, content, tags) VALUES (?,?,?)`,
		m.ID, m.Content, tags); err != nil {
		return fmt.Errorf("index: inserting fts row for %s: %w", m.ID, err)
	}

	return tx.Commit()
}

func (b *SQLiteIndex) GetMemory(ctx context.Context, id string) (model.Memory, error) {
	row := b.db.QueryRowContext(ctx, `
SELECT id, namespace, domain_key, project_id, branch, file_path, status,
	created_at, updated_at, tombstoned_at, expires_at, tags, source, content,
	is_summary, source_memory_ids, consolidation_timestamp
FROM memories WHERE id = ?`, id)

	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return model.Memory{}, ErrNotFound
	}
	if err != nil {
		return model.Memory{}, fmt.Errorf("index: scanning memory %s: %w", id, err)
	}
	return m, nil
}

func (b *SQLiteIndex) Remove(ctx context.Context, id string) (bool, error) {
	res, err := b.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("index: removing memory %s: %w", id, err)
	}
	if _, err := b.db.ExecContext(ctx, `DELETE FROM memories_fts WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("index: removing fts row %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (b *SQLiteIndex) Search(ctx context.Context, query string, filter model.SearchFilter, limit int) ([]Hit, error) {
	fts := ftsQuery(query)
	if fts == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	whereClause, args := buildFilterClause(filter)
	sqlQuery := fmt.Sprintf(`
SELECT m.id, bm25(memories_fts) AS rank
FROM memories_fts
JOIN memories m ON m.id = memories_fts.id
WHERE memories_fts MATCH ?%s
ORDER BY rank ASC
LIMIT ?`, whereClause)

	queryArgs := append([]interface{}{fts}, args...)
	queryArgs = append(queryArgs, limit)

	rows, err := b.db.QueryContext(ctx, sqlQuery, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("index: fts search: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var id string
		var rank float64
		if err := rows.Scan(&id, &rank); err != nil {
			return nil, fmt.Errorf("index: scanning search hit: %w", err)
		}
		hits = append(hits, Hit{ID: id, Score: normalizeBM25(rank)})
	}
	return hits, rows.Err()
}

func (b *SQLiteIndex) ListAll(ctx context.Context, filter model.SearchFilter, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 1 << 30
	}
	whereClause, args := buildFilterClause(filter)
	sqlQuery := fmt.Sprintf(`SELECT id FROM memories m WHERE 1=1%s ORDER BY created_at DESC LIMIT ?`, whereClause)
	args = append(args, limit)

	rows, err := b.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("index: list_all: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("index: scanning list_all row: %w", err)
		}
		hits = append(hits, Hit{ID: id, Score: 1.0})
	}
	return hits, rows.Err()
}

func (b *SQLiteIndex) Clear(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM memories`); err != nil {
		return fmt.Errorf("index: clearing memories: %w", err)
	}
	if _, err := b.db.ExecContext(ctx, `DELETE FROM memories_fts`); err != nil {
		return fmt.Errorf("index: clearing fts: %w", err)
	}
	return nil
}

func (b *SQLiteIndex) Close() error { return b.db.Close() }

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row rowScanner) (model.Memory, error) {
	var m model.Memory
	var domainKey, projectID, branch, filePath, tags, source, sourceIDs sql.NullString
	var tombstonedAt, expiresAt, consolidationTS sql.NullInt64
	var isSummary int64

	err := row.Scan(
		&m.ID, &m.Namespace, &domainKey, &projectID, &branch, &filePath, &m.Status,
		&m.CreatedAt, &m.UpdatedAt, &tombstonedAt, &expiresAt, &tags, &source, &m.Content,
		&isSummary, &sourceIDs, &consolidationTS,
	)
	if err != nil {
		return model.Memory{}, err
	}

	m.ProjectID = projectID.String
	m.Branch = branch.String
	m.FilePath = filePath.String
	m.Source = source.String
	m.IsSummary = isSummary != 0
	if domainKey.Valid {
		m.Domain = domainFromKey(domainKey.String)
	}
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
	return m, nil
}

// domainFromKey reconstructs an approximate Domain from the stored
// domain_key (spec.md §4.11's Domain.Key()). Exact Organization/Project
// fields are not recoverable from the key alone; callers that need the
// full tuple should keep their own domain context rather than rely on
// round-tripping it through the index.
func domainFromKey(key string) model.Domain {
	switch {
	case key == "user":
		return model.Domain{Scope: model.ScopeUser}
	case strings.HasPrefix(key, "org"):
		org := strings.TrimPrefix(key, "org:")
		if org == "org" {
			org = ""
		}
		return model.Domain{Scope: model.ScopeOrg, Organization: org}
	case strings.HasPrefix(key, "project"):
		rest := strings.TrimPrefix(key, "project:")
		if rest == "project" {
			rest = ""
		}
		return model.Domain{Scope: model.ScopeProject, Repository: rest}
	default:
		return model.Domain{}
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Backend = (*SQLiteIndex)(nil)
