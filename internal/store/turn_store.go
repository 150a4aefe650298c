package store

import (
	"context"
	"fmt"
	"time"

	"github.com/soyeahso/linegpt/internal/memory"
)

// TurnStore implements memory.Store backed by SQLite.
type TurnStore struct {
	db *DB
}

// NewTurnStore creates a turn store using the given database.
func NewTurnStore(db *DB) *TurnStore {
	return &TurnStore{db: db}
}

// Recent returns up to limit of the newest turns, oldest first.
// A limit of 0 returns the whole conversation.
func (s *TurnStore) Recent(ctx context.Context, key memory.Key, limit int) ([]memory.Turn, error) {
	query := `SELECT role, content, created_at FROM (
		SELECT id, role, content, created_at FROM conversation_turns
		WHERE collection = ? AND day = ? AND session_id = ?
		ORDER BY id DESC`
	args := []any{key.Collection, key.Partition, key.SessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	query += `) ORDER BY id ASC`

	rows, err := s.db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var turns []memory.Turn
	for rows.Next() {
		var t memory.Turn
		var createdAt string
		if err := rows.Scan(&t.Role, &t.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Append inserts turns in order inside one transaction.
func (s *TurnStore) Append(ctx context.Context, key memory.Key, turns ...memory.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	for _, t := range turns {
		ts := t.CreatedAt
		if ts.IsZero() {
			ts = time.Now()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_turns (collection, day, session_id, role, content, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			key.Collection, key.Partition, key.SessionID, t.Role, t.Content, ts.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("inserting turn: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// Close is a no-op; the owner of the DB closes it.
func (s *TurnStore) Close() error { return nil }

// Prune deletes every partition older than before and returns the number of
// turns removed.
func (s *TurnStore) Prune(ctx context.Context, before string) (int64, error) {
	res, err := s.db.sql.ExecContext(ctx, `DELETE FROM conversation_turns WHERE day < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("pruning turns: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.db.log.Info().Int64("deleted", n).Str("before", before).Msg("pruned old conversation turns")
	}
	return n, nil
}
