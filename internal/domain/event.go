package domain

import "time"

// SourceKind classifies where a LINE event came from.
type SourceKind int

const (
	SourceUnknown SourceKind = iota
	SourceUser
	SourceGroup
	SourceRoom
)

// ParseSourceKind maps the wire value of source.type to a SourceKind.
// Anything that is not user, group or room is SourceUnknown.
func ParseSourceKind(s string) SourceKind {
	switch s {
	case "user":
		return SourceUser
	case "group":
		return SourceGroup
	case "room":
		return SourceRoom
	default:
		return SourceUnknown
	}
}

// String returns the wire value of the kind.
func (k SourceKind) String() string {
	switch k {
	case SourceUser:
		return "user"
	case SourceGroup:
		return "group"
	case SourceRoom:
		return "room"
	default:
		return "unknown"
	}
}

// Source identifies the conversation an event belongs to.
// UserID is the sender and may be set for every kind; GroupID and RoomID
// are only set for their respective kinds.
type Source struct {
	Kind    SourceKind `json:"kind"`
	UserID  string     `json:"userId,omitempty"`
	GroupID string     `json:"groupId,omitempty"`
	RoomID  string     `json:"roomId,omitempty"`
}

// InboundEvent is one text message delivered by the platform webhook.
// It is read-only once parsed and lives for a single request.
type InboundEvent struct {
	ID         string    `json:"id,omitempty"`
	Source     Source    `json:"source"`
	Text       string    `json:"text"`
	ReplyToken string    `json:"replyToken"`
	Timestamp  time.Time `json:"timestamp"`
	Redelivery bool      `json:"redelivery,omitempty"`
}

// SessionID is the stable conversation identity derived from a Source.
type SessionID string

func (s SessionID) String() string { return string(s) }
