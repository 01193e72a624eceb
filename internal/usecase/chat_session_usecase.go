package usecase

import (
	"context"
	"log"

	"chatcore/internal/domain/entity"
	"chatcore/internal/domain/repository"
	"chatcore/pkg/errors"
)

type ChatSessionUseCase struct {
	chatRepo repository.ChatRepository
	userRepo repository.UserRepository
}

func NewChatSessionUseCase(chatRepo repository.ChatRepository, userRepo repository.UserRepository) *ChatSessionUseCase {
	return &ChatSessionUseCase{
		chatRepo: chatRepo,
		userRepo: userRepo,
	}
}

// ChatSession is the resolved identity of one open conversation.
type ChatSession struct {
	RoomID string             `json:"room_id"`
	Local  entity.Participant `json:"local"`
	Remote entity.Participant `json:"remote"`
	Room   *entity.ChatRoom   `json:"room"`
}

func (s *ChatSession) Participants() []string {
	return []string{s.Local.ID, s.Remote.ID}
}

func (uc *ChatSessionUseCase) ResolveRoomID(a, b string) string {
	return entity.RoomID(a, b)
}

// EnsureRoom returns the room, creating it first when it does not exist. When
// both participants race, the losing create is a no-op and the stored room is
// returned unchanged.
func (uc *ChatSessionUseCase) EnsureRoom(ctx context.Context, roomID string, participants []string) (*entity.ChatRoom, error) {
	room, err := uc.chatRepo.GetRoom(ctx, roomID)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, errors.CodeNotFound) {
		log.Printf("EnsureRoom Error: failed to read room %s: %v", roomID, err)
		return nil, err
	}

	created, err := uc.chatRepo.CreateRoom(ctx, &entity.ChatRoom{
		ID:           roomID,
		Participants: participants,
	})
	if err != nil {
		log.Printf("EnsureRoom Error: failed to create room %s: %v", roomID, err)
		return nil, err
	}
	if !created {
		log.Printf("EnsureRoom: room %s was created concurrently", roomID)
	}

	return uc.chatRepo.GetRoom(ctx, roomID)
}

// OpenSession resolves the remote participant and guarantees the room exists
// before any message or typing operation runs against it.
func (uc *ChatSessionUseCase) OpenSession(ctx context.Context, local entity.Participant, remoteID string) (*ChatSession, error) {
	if remoteID == "" {
		return nil, errors.BadRequest("Remote user is required", nil)
	}
	if remoteID == local.ID {
		return nil, errors.BadRequest("Cannot open a chat with yourself", nil)
	}

	remote, err := uc.userRepo.GetByID(ctx, remoteID)
	if err != nil {
		return nil, err
	}

	roomID := uc.ResolveRoomID(local.ID, remoteID)
	room, err := uc.EnsureRoom(ctx, roomID, []string{local.ID, remoteID})
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(local.ID) {
		return nil, errors.Forbidden("You are not a participant in this chat", nil)
	}

	return &ChatSession{
		RoomID: roomID,
		Local:  local,
		Remote: remote.Participant(),
		Room:   room,
	}, nil
}
