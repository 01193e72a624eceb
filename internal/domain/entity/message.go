package entity

import "time"

type MessageKind string

const (
	MessageKindText  MessageKind = "text"
	MessageKindImage MessageKind = "image"
	MessageKindMedia MessageKind = "media"
)

// Message lives at chats/{roomId}/messages/{id}. Text holds ciphertext in the
// store and plaintext once it has passed through the message stream.
type Message struct {
	ID                string    `json:"id" firestore:"-"`
	AuthorID          string    `json:"uid" firestore:"uid"`
	AuthorDisplayName string    `json:"display_name" firestore:"displayName"`
	AuthorPhotoURL    string    `json:"photo_url" firestore:"photoURL"`
	CreatedAt         time.Time `json:"created_at" firestore:"createdAt,serverTimestamp"`

	Text     string `json:"text,omitempty" firestore:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty" firestore:"imageUrl,omitempty"`

	MediaType   string `json:"media_type,omitempty" firestore:"mediaType,omitempty"`
	MediaURL    string `json:"media_url,omitempty" firestore:"mediaUrl,omitempty"`
	MediaWidth  int    `json:"media_width,omitempty" firestore:"mediaWidth,omitempty"`
	MediaHeight int    `json:"media_height,omitempty" firestore:"mediaHeight,omitempty"`

	DecryptionFailed bool `json:"decryption_failed,omitempty" firestore:"-"`
}

func (m *Message) Kind() MessageKind {
	switch {
	case m.MediaURL != "":
		return MessageKindMedia
	case m.ImageURL != "":
		return MessageKindImage
	default:
		return MessageKindText
	}
}

// MessageSummary is the room's lastMessage field. Text stays encrypted.
type MessageSummary struct {
	ID        string      `json:"id" firestore:"id"`
	AuthorID  string      `json:"uid" firestore:"uid"`
	Kind      MessageKind `json:"kind" firestore:"kind"`
	Text      string      `json:"text,omitempty" firestore:"text,omitempty"`
	CreatedAt time.Time   `json:"created_at" firestore:"createdAt"`
}

func (m *Message) Summary() *MessageSummary {
	return &MessageSummary{
		ID:        m.ID,
		AuthorID:  m.AuthorID,
		Kind:      m.Kind(),
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
	}
}
