package webhooks

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAudit(t *testing.T) *SQLiteAudit {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	a, err := OpenSQLiteAudit(path)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAuditStoreAndHistory(t *testing.T) {
	a := newTestAudit(t)
	ctx := context.Background()

	require.NoError(t, a.Store(ctx, DeliveryRecord{
		WebhookName: "wh1", EventType: "captured", EventID: "e1",
		Domain: "project", URL: "https://example.com", Status: StatusSuccess,
		StatusCode: 200, Attempts: 1, DurationMs: 12, Timestamp: 100,
	}))
	require.NoError(t, a.Store(ctx, DeliveryRecord{
		WebhookName: "wh1", EventType: "deleted", EventID: "e2",
		Domain: "project", URL: "https://example.com", Status: StatusFailed,
		Attempts: 3, DurationMs: 900, Error: "timeout", Timestamp: 200,
	}))

	history, err := a.History(ctx, "wh1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "e2", history[0].EventID, "most recent first")
	assert.Equal(t, "timeout", history[0].Error)
}

func TestAuditExportAndEraseDomain(t *testing.T) {
	a := newTestAudit(t)
	ctx := context.Background()

	require.NoError(t, a.Store(ctx, DeliveryRecord{WebhookName: "wh1", Domain: "project-a", EventID: "e1", Status: StatusSuccess, Timestamp: 1}))
	require.NoError(t, a.Store(ctx, DeliveryRecord{WebhookName: "wh1", Domain: "project-b", EventID: "e2", Status: StatusSuccess, Timestamp: 2}))

	exported, err := a.ExportDomain(ctx, "project-a")
	require.NoError(t, err)
	require.Len(t, exported, 1)
	assert.Equal(t, "e1", exported[0].EventID)

	erased, err := a.EraseDomain(ctx, "project-a")
	require.NoError(t, err)
	assert.Equal(t, 1, erased)

	remaining, err := a.ExportDomain(ctx, "project-a")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	stillThere, err := a.ExportDomain(ctx, "project-b")
	require.NoError(t, err)
	assert.Len(t, stillThere, 1)
}

func TestAuditCountByStatus(t *testing.T) {
	a := newTestAudit(t)
	ctx := context.Background()

	require.NoError(t, a.Store(ctx, DeliveryRecord{WebhookName: "wh1", Domain: "p", EventID: "e1", Status: StatusSuccess, DurationMs: 10, Timestamp: 1}))
	require.NoError(t, a.Store(ctx, DeliveryRecord{WebhookName: "wh1", Domain: "p", EventID: "e2", Status: StatusFailed, DurationMs: 20, Timestamp: 2}))

	stats, err := a.CountByStatus(ctx, "wh1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Success)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 15.0, stats.AvgDurationMs)
}
