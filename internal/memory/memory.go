// Package memory keeps the per-session, per-day conversation window.
package memory

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Roles of a stored turn.
const (
	RoleHuman = "human"
	RoleAI    = "ai"
)

// PartitionLayout is the calendar-date format of a partition.
const PartitionLayout = "2006-01-02"

// DefaultCollection is the top-level namespace for conversation records.
const DefaultCollection = "gpt_line_bot"

// ErrInvalidWindow is returned by NewWindow for a non-positive size.
var ErrInvalidWindow = errors.New("memory window size must be positive")

// Turn is one stored (role, text) entry.
type Turn struct {
	Role      string    `json:"role" firestore:"role"`
	Content   string    `json:"content" firestore:"content"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}

// Key addresses one conversation: a session within a date partition.
type Key struct {
	Collection string
	Partition  string
	SessionID  string
}

func (k Key) String() string {
	return k.Collection + ":" + k.Partition + ":" + k.SessionID
}

// PartitionFor returns the date partition of t in t's own location.
func PartitionFor(t time.Time) string {
	return t.Format(PartitionLayout)
}

// Store persists conversation turns.
type Store interface {
	// Recent returns up to limit of the newest turns, oldest first.
	Recent(ctx context.Context, key Key, limit int) ([]Turn, error)
	// Append adds turns to the end of the conversation in order.
	Append(ctx context.Context, key Key, turns ...Turn) error
	Close() error
}

// Window bounds what the agent sees of a conversation to the last k turns.
type Window struct {
	store      Store
	collection string
	k          int
	now        func() time.Time
}

// NewWindow creates a window of k turns over store.
func NewWindow(store Store, collection string, k int) (*Window, error) {
	if k <= 0 {
		return nil, ErrInvalidWindow
	}
	if collection == "" {
		collection = DefaultCollection
	}
	return &Window{store: store, collection: collection, k: k, now: time.Now}, nil
}

// Size returns k.
func (w *Window) Size() int { return w.k }

func (w *Window) key(sessionID, partition string) Key {
	return Key{Collection: w.collection, Partition: partition, SessionID: sessionID}
}

// Load returns at most k of the newest turns of the conversation, oldest first.
func (w *Window) Load(ctx context.Context, sessionID, partition string) ([]Turn, error) {
	turns, err := w.store.Recent(ctx, w.key(sessionID, partition), w.k)
	if err != nil {
		return nil, fmt.Errorf("loading memory for %s: %w", sessionID, err)
	}
	if len(turns) > w.k {
		turns = turns[len(turns)-w.k:]
	}
	return turns, nil
}

// Append stores a single turn.
func (w *Window) Append(ctx context.Context, sessionID, partition, role, text string) error {
	turn := Turn{Role: role, Content: text, CreatedAt: w.now()}
	if err := w.store.Append(ctx, w.key(sessionID, partition), turn); err != nil {
		return fmt.Errorf("appending memory for %s: %w", sessionID, err)
	}
	return nil
}

// Record stores the user's input followed by the reply they were sent.
func (w *Window) Record(ctx context.Context, sessionID, partition, input, reply string) error {
	now := w.now()
	turns := []Turn{
		{Role: RoleHuman, Content: input, CreatedAt: now},
		{Role: RoleAI, Content: reply, CreatedAt: now},
	}
	if err := w.store.Append(ctx, w.key(sessionID, partition), turns...); err != nil {
		return fmt.Errorf("recording turn for %s: %w", sessionID, err)
	}
	return nil
}
