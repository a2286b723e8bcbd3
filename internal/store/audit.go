// Package store holds the service's persistence: a local sqlite audit log of
// assessments and a connectivity probe for the Postgres instance.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so created_at sorts as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const auditSchema = `CREATE TABLE IF NOT EXISTS assessments (
	id                  TEXT PRIMARY KEY,
	path                TEXT NOT NULL,
	session_id          TEXT,
	model_id            TEXT,
	severity            TEXT NOT NULL,
	confidence          REAL NOT NULL,
	force_high_priority INTEGER NOT NULL,
	fallback_reason     TEXT,
	duration_ms         INTEGER NOT NULL,
	created_at          TEXT NOT NULL
)`

// AuditEntry is one recorded assessment. It carries no patient data.
type AuditEntry struct {
	ID                string
	Path              string
	SessionID         string
	ModelID           string
	Severity          string
	Confidence        float64
	ForceHighPriority bool
	FallbackReason    string
	Duration          time.Duration
	CreatedAt         time.Time
}

// AuditLog appends assessment outcomes to a sqlite table
type AuditLog struct {
	db *sql.DB
}

// OpenAuditLog opens (creating if needed) the sqlite database at path.
// ":memory:" is accepted for tests.
func OpenAuditLog(ctx context.Context, path string) (*AuditLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, auditSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit table: %w", err)
	}
	return &AuditLog{db: db}, nil
}

// Close releases the database
func (l *AuditLog) Close() error {
	return l.db.Close()
}

// Record writes an entry, assigning an id and timestamp when missing
func (l *AuditLog) Record(ctx context.Context, entry AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO assessments (id, path, session_id, model_id, severity, confidence, force_high_priority, fallback_reason, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Path,
		nullIfEmpty(entry.SessionID),
		nullIfEmpty(entry.ModelID),
		entry.Severity,
		entry.Confidence,
		entry.ForceHighPriority,
		nullIfEmpty(entry.FallbackReason),
		entry.Duration.Milliseconds(),
		entry.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record assessment: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first
func (l *AuditLog) Recent(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT id, path, session_id, model_id, severity, confidence, force_high_priority, fallback_reason, duration_ms, created_at
		 FROM assessments ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query assessments: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var (
			e                            AuditEntry
			sessionID, modelID, fallback sql.NullString
			durationMS                   int64
			createdAt                    string
		)
		if err := rows.Scan(&e.ID, &e.Path, &sessionID, &modelID, &e.Severity, &e.Confidence,
			&e.ForceHighPriority, &fallback, &durationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		e.SessionID = sessionID.String
		e.ModelID = modelID.String
		e.FallbackReason = fallback.String
		e.Duration = time.Duration(durationMS) * time.Millisecond
		if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assessments: %w", err)
	}
	return entries, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
