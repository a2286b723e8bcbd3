package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAuditLog(t *testing.T) *AuditLog {
	t.Helper()
	log, err := OpenAuditLog(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return log
}

func TestAuditLog_RecordAndRecent(t *testing.T) {
	log := setupAuditLog(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, log.Record(ctx, AuditEntry{
		ID:         "a1",
		Path:       "model",
		ModelID:    "us.anthropic.claude-3-5-sonnet-v2:0",
		Severity:   "critical",
		Confidence: 0.97,
		Duration:   1200 * time.Millisecond,
		CreatedAt:  base,
	}))
	require.NoError(t, log.Record(ctx, AuditEntry{
		ID:                "a2",
		Path:              "agent",
		SessionID:         "sess-2",
		Severity:          "high",
		ForceHighPriority: true,
		FallbackReason:    "agent did not return a structured result",
		Duration:          300 * time.Millisecond,
		CreatedAt:         base.Add(500 * time.Millisecond),
	}))

	entries, err := log.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, AuditEntry{
		ID:                "a2",
		Path:              "agent",
		SessionID:         "sess-2",
		Severity:          "high",
		ForceHighPriority: true,
		FallbackReason:    "agent did not return a structured result",
		Duration:          300 * time.Millisecond,
		CreatedAt:         base.Add(500 * time.Millisecond),
	}, entries[0])
	assert.Equal(t, "a1", entries[1].ID)
	assert.Equal(t, 0.97, entries[1].Confidence)
	assert.False(t, entries[1].ForceHighPriority)
	assert.Empty(t, entries[1].SessionID)
}

func TestAuditLog_AssignsIDAndTime(t *testing.T) {
	log := setupAuditLog(t)
	ctx := context.Background()

	require.NoError(t, log.Record(ctx, AuditEntry{Path: "model", Severity: "low", Confidence: 0.9}))

	entries, err := log.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].CreatedAt.IsZero())
}

func TestAuditLog_RecentLimit(t *testing.T) {
	log := setupAuditLog(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, log.Record(ctx, AuditEntry{
			Path: "model", Severity: "medium", CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	entries, err := log.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, base.Add(4*time.Second), entries[0].CreatedAt)
	assert.Equal(t, base.Add(2*time.Second), entries[2].CreatedAt)
}

func TestAuditLog_Empty(t *testing.T) {
	entries, err := setupAuditLog(t).Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
