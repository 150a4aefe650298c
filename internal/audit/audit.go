// Package audit records one entry per answered message.
package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/soyeahso/linegpt/internal/store"
)

// LoggerName names the audit log stream.
const LoggerName = "gpt_line_bot"

// Entry is one audit record. Response is exactly the text sent to the user.
type Entry struct {
	UserID   string `json:"user_id"`
	Message  string `json:"message"`
	Response string `json:"response"`
}

// Sink receives audit entries.
type Sink interface {
	Write(ctx context.Context, e Entry) error
	Close() error
}

// LogSink writes entries as JSON lines through zerolog.
type LogSink struct {
	zl     zerolog.Logger
	closer io.Closer
}

// NewLogSink writes to w.
func NewLogSink(w io.Writer) *LogSink {
	return &LogSink{zl: zerolog.New(w).With().Timestamp().Str("logger", LoggerName).Logger()}
}

// OpenLogSink writes to path, or to stdout when path is empty.
func OpenLogSink(path string) (*LogSink, error) {
	if path == "" {
		return NewLogSink(os.Stdout), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	s := NewLogSink(f)
	s.closer = f
	return s, nil
}

func (s *LogSink) Write(_ context.Context, e Entry) error {
	s.zl.Log().
		Str("user_id", e.UserID).
		Str("message", e.Message).
		Str("response", e.Response).
		Send()
	return nil
}

func (s *LogSink) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// StoreSink keeps entries in the SQLite audit table.
type StoreSink struct {
	store *store.AuditStore
}

// NewStoreSink wraps an audit store.
func NewStoreSink(s *store.AuditStore) *StoreSink {
	return &StoreSink{store: s}
}

func (s *StoreSink) Write(ctx context.Context, e Entry) error {
	return s.store.Insert(ctx, e.UserID, e.Message, e.Response)
}

// Close is a no-op; the owner of the DB closes it.
func (s *StoreSink) Close() error { return nil }

// Discard drops every entry.
type Discard struct{}

func (Discard) Write(context.Context, Entry) error { return nil }
func (Discard) Close() error { return nil }
