package routing

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"

	"github.com/soyeahso/linegpt/internal/domain"
)

// ResolveSessionID builds the session id for an event source.
//
// Kinds:
//   - user:  "user" + userId (one-on-one chat)
//   - group: "group" + groupId (shared by every member)
//   - room:  "room" + roomId (shared by every member)
//   - otherwise a fresh "sess" + 32 hex characters, never reused
func ResolveSessionID(src domain.Source) domain.SessionID {
	switch src.Kind {
	case domain.SourceUser:
		return domain.SessionID("user" + src.UserID)
	case domain.SourceGroup:
		return domain.SessionID("group" + src.GroupID)
	case domain.SourceRoom:
		return domain.SessionID("room" + src.RoomID)
	default:
		return domain.SessionID("sess" + randomHex())
	}
}

// randomHex returns 16 random bytes as 32 lowercase hex characters.
func randomHex() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return hex.EncodeToString(b[:])
}
