package store

import (
	"context"
	"fmt"
	"time"
)

// AuditRecord is one stored request/response pair.
type AuditRecord struct {
	ID        int64
	UserID    string
	Message   string
	Response  string
	CreatedAt time.Time
}

// AuditStore keeps audit records in SQLite.
type AuditStore struct {
	db *DB
}

// NewAuditStore creates an audit store using the given database.
func NewAuditStore(db *DB) *AuditStore {
	return &AuditStore{db: db}
}

// Insert stores one record.
func (s *AuditStore) Insert(ctx context.Context, userID, message, response string) error {
	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO audit_entries (user_id, message, response, created_at) VALUES (?, ?, ?, ?)`,
		userID, message, response, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// List returns the newest records for userID, newest first. An empty userID
// lists every user. Limit of 0 defaults to 50.
func (s *AuditStore) List(ctx context.Context, userID string, limit int) ([]AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, user_id, message, response, created_at FROM audit_entries`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var out []AuditRecord
	for rows.Next() {
		var r AuditRecord
		var createdAt string
		if err := rows.Scan(&r.ID, &r.UserID, &r.Message, &r.Response, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}
