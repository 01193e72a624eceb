package entity

import (
	"sort"
	"strings"
	"time"
)

// RoomIDSeparator joins the two sorted participant ids into a room id.
const RoomIDSeparator = "_"

// ChatRoom is the two-party conversation document at chats/{roomId}.
type ChatRoom struct {
	ID           string          `json:"id" firestore:"-"`
	Participants []string        `json:"participants" firestore:"participants"`
	CreatedAt    time.Time       `json:"created_at" firestore:"createdAt"`
	LastMessage  *MessageSummary `json:"last_message" firestore:"lastMessage"`
	Typing       *string         `json:"typing" firestore:"typing"` // nil means nobody is typing
}

// TypingUser returns the id stored in the typing field, or "" when none.
func (r *ChatRoom) TypingUser() string {
	if r == nil || r.Typing == nil {
		return ""
	}
	return *r.Typing
}

func (r *ChatRoom) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// RoomID is the deterministic room key for a pair of users. The order of the
// arguments does not matter.
func RoomID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, RoomIDSeparator)
}
