package repository

import (
	"context"

	"chatcore/internal/domain/entity"
)

type ChatRepository interface {
	GetRoom(ctx context.Context, roomID string) (*entity.ChatRoom, error)
	// CreateRoom writes the room only when it does not exist yet. It returns
	// false, and leaves the stored document untouched, when another writer won.
	CreateRoom(ctx context.Context, room *entity.ChatRoom) (bool, error)
	UpdateLastMessage(ctx context.Context, roomID string, summary *entity.MessageSummary) error

	// SetTyping writes typing=userID, creating the room in the same write when absent.
	SetTyping(ctx context.Context, roomID string, participants []string, userID string) error
	// ClearTyping resets typing to none only while it still holds userID.
	ClearTyping(ctx context.Context, roomID, userID string) error

	CreateMessage(ctx context.Context, roomID string, message *entity.Message) error

	// WatchMessages yields the full message list ordered by createdAt on every change.
	WatchMessages(ctx context.Context, roomID string) (Feed[[]*entity.Message], error)
	// WatchRoom yields the room document on every change, nil while it does not exist.
	WatchRoom(ctx context.Context, roomID string) (Feed[*entity.ChatRoom], error)
}
