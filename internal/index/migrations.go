package index

import "database/sql"

// Migration is one idempotent schema step, applied in order at open time.
// The Name/Func shape is grounded on the migration-registry pattern used
// elsewhere in the retrieval pack for embedded SQLite schemas.
type Migration struct {
	Name string
	Func func(*sql.DB) error
}

var migrationsList = []Migration{
	{"memories_table", migrateMemoriesTable},
	{"memories_fts", migrateMemoriesFTS},
	{"memories_indexes", migrateMemoriesIndexes},
}

func migrateMemoriesTable(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	namespace TEXT NOT NULL,
	domain_key TEXT NOT NULL,
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
	is_summary INTEGER NOT NULL DEFAULT 0,
	source_memory_ids TEXT,
	consolidation_timestamp INTEGER
)`)
	return err
}

func migrateMemoriesFTS(db *sql.DB) error {
	_, err := db.Exec(`
CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
	id UNINDEXED,
	content,
	tags,
	tokenize = 'porter unicode61'
)`)
	return err
}

func migrateMemoriesIndexes(db *sql.DB) error {
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_memories_namespace ON memories(namespace)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_domain ON memories(domain_key)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_status ON memories(status)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_expires_at ON memories(expires_at)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// runMigrations applies every migration in order; each is idempotent
// (CREATE ... IF NOT EXISTS) so re-opening an existing database is safe.
func runMigrations(db *sql.DB) error {
	for _, m := range migrationsList {
		if err := m.Func(db); err != nil {
			return &migrationError{name: m.Name, cause: err}
		}
	}
	return nil
}

type migrationError struct {
	name  string
	cause error
}

func (e *migrationError) Error() string {
	return "index: migration " + e.name + " failed: " + e.cause.Error()
}

func (e *migrationError) Unwrap() error { return e.cause }
