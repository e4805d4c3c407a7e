package webhooks

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DeliveryStatus classifies the outcome of one webhook delivery attempt
// sequence (spec.md §4.14).
type DeliveryStatus string

const (
	StatusSuccess DeliveryStatus = "success"
	StatusFailed  DeliveryStatus = "failed"
	StatusTimeout DeliveryStatus = "timeout"
)

// DeliveryRecord is one row of the webhook delivery audit log.
type DeliveryRecord struct {
	ID          string
	WebhookName string
	EventType   string
	EventID     string
	Domain      string
	URL         string
	Status      DeliveryStatus
	StatusCode  int // 0 if unavailable
	Attempts    int
	DurationMs  int64
	Error       string
	Timestamp   int64
}

// WebhookStats summarizes delivery history for one endpoint.
type WebhookStats struct {
	Total         int
	Success       int
	Failed        int
	AvgDurationMs float64
}

// AuditBackend is the delivery audit log contract (spec.md §4.14): record
// every attempt, and support GDPR Article 20 export and Article 17 erasure
// by domain.
type AuditBackend interface {
	Store(ctx context.Context, record DeliveryRecord) error
	History(ctx context.Context, webhookName string, limit int) ([]DeliveryRecord, error)
	ExportDomain(ctx context.Context, domain string) ([]DeliveryRecord, error)
	EraseDomain(ctx context.Context, domain string) (int, error)
	CountByStatus(ctx context.Context, webhookName string) (WebhookStats, error)
	Close() error
}

// SQLiteAudit is a modernc.org/sqlite-backed AuditBackend — the same driver
// internal/index and internal/persistence use for their embedded stores.
type SQLiteAudit struct {
	db *sql.DB
}

// OpenSQLiteAudit opens (or creates) the webhook delivery audit database.
func OpenSQLiteAudit(path string) (*SQLiteAudit, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("webhooks: opening audit db at %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("webhooks: configuring audit db: %w", err)
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS webhook_deliveries (
	id TEXT PRIMARY KEY,
	webhook_name TEXT NOT NULL,
	event_type TEXT NOT NULL,
	event_id TEXT NOT NULL,
	domain TEXT NOT NULL,
	url TEXT NOT NULL,
	status TEXT NOT NULL,
	status_code INTEGER,
	attempts INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	error TEXT,
	timestamp INTEGER NOT NULL
)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("webhooks: creating audit schema: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_webhook_deliveries_domain ON webhook_deliveries(domain)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("webhooks: creating audit index: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_webhook_deliveries_name ON webhook_deliveries(webhook_name)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("webhooks: creating audit index: %w", err)
	}

	return &SQLiteAudit{db: db}, nil
}

// Store persists a new delivery record, assigning it an id if absent.
func (a *SQLiteAudit) Store(ctx context.Context, record DeliveryRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	var statusCode sql.NullInt64
	if record.StatusCode != 0 {
		statusCode = sql.NullInt64{Int64: int64(record.StatusCode), Valid: true}
	}
	var errMsg sql.NullString
	if record.Error != "" {
		errMsg = sql.NullString{String: record.Error, Valid: true}
	}

	_, err := a.db.ExecContext(ctx, `
INSERT INTO webhook_deliveries (
	id, webhook_name, event_type, event_id, domain, url, status,
	status_code, attempts, duration_ms, error, timestamp
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		record.ID, record.WebhookName, record.EventType, record.EventID, record.Domain, record.URL,
		string(record.Status), statusCode, record.Attempts, record.DurationMs, errMsg, record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("webhooks: storing delivery record: %w", err)
	}
	return nil
}

func (a *SQLiteAudit) History(ctx context.Context, webhookName string, limit int) ([]DeliveryRecord, error) {
	rows, err := a.db.QueryContext(ctx, `
SELECT id, webhook_name, event_type, event_id, domain, url, status,
	status_code, attempts, duration_ms, error, timestamp
FROM webhook_deliveries WHERE webhook_name = ? ORDER BY timestamp DESC LIMIT ?`, webhookName, limit)
	if err != nil {
		return nil, fmt.Errorf("webhooks: querying history: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ExportDomain returns every delivery record for domain, fulfilling GDPR
// Article 20 data-portability requests (spec.md §4.14).
func (a *SQLiteAudit) ExportDomain(ctx context.Context, domain string) ([]DeliveryRecord, error) {
	rows, err := a.db.QueryContext(ctx, `
SELECT id, webhook_name, event_type, event_id, domain, url, status,
	status_code, attempts, duration_ms, error, timestamp
FROM webhook_deliveries WHERE domain = ? ORDER BY timestamp ASC`, domain)
	if err != nil {
		return nil, fmt.Errorf("webhooks: exporting domain logs: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// EraseDomain deletes every delivery record for domain, fulfilling GDPR
// Article 17 right-to-erasure requests (spec.md §4.14), and returns the
// number of rows removed.
func (a *SQLiteAudit) EraseDomain(ctx context.Context, domain string) (int, error) {
	res, err := a.db.ExecContext(ctx, `DELETE FROM webhook_deliveries WHERE domain = ?`, domain)
	if err != nil {
		return 0, fmt.Errorf("webhooks: erasing domain logs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (a *SQLiteAudit) CountByStatus(ctx context.Context, webhookName string) (WebhookStats, error) {
	var stats WebhookStats
	row := a.db.QueryRowContext(ctx, `
SELECT
	COUNT(*),
	COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
	COALESCE(AVG(duration_ms), 0)
FROM webhook_deliveries WHERE webhook_name = ?`, webhookName)
	if err := row.Scan(&stats.Total, &stats.Success, &stats.Failed, &stats.AvgDurationMs); err != nil {
		return WebhookStats{}, fmt.Errorf("webhooks: counting by status: %w", err)
	}
	return stats, nil
}

func (a *SQLiteAudit) Close() error { return a.db.Close() }

type sqlRowsScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanRecords(rows sqlRowsScanner) ([]DeliveryRecord, error) {
	var out []DeliveryRecord
	for rows.Next() {
		var r DeliveryRecord
		var status string
		var statusCode sql.NullInt64
		var errMsg sql.NullString
		if err := rows.Scan(&r.ID, &r.WebhookName, &r.EventType, &r.EventID, &r.Domain, &r.URL,
			&status, &statusCode, &r.Attempts, &r.DurationMs, &errMsg, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("webhooks: scanning delivery record: %w", err)
		}
		r.Status = DeliveryStatus(status)
		r.StatusCode = int(statusCode.Int64)
		r.Error = errMsg.String
		out = append(out, r)
	}
	return out, rows.Err()
}

var _ AuditBackend = (*SQLiteAudit)(nil)
