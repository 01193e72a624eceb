package usecase

import (
	"context"
	"sync"

	"chatcore/internal/domain/entity"
)

// ChatViewUseCase composes the session, message stream and typing presence
// of one open conversation.
type ChatViewUseCase struct {
	sessions *ChatSessionUseCase
	messages *MessageUseCase
	typing   *TypingUseCase
}

func NewChatViewUseCase(sessions *ChatSessionUseCase, messages *MessageUseCase, typing *TypingUseCase) *ChatViewUseCase {
	return &ChatViewUseCase{
		sessions: sessions,
		messages: messages,
		typing:   typing,
	}
}

// ChatView is an open conversation. Close must be called on teardown or when
// the remote participant changes.
type ChatView struct {
	session  *ChatSession
	messages *Subscription[MessageEvent]
	presence *Subscription[TypingEvent]

	messageUC *MessageUseCase
	typingUC  *TypingUseCase
	closeOnce sync.Once
}

// Open resolves the room first, then starts the message and typing
// subscriptions side by side.
func (uc *ChatViewUseCase) Open(ctx context.Context, local entity.Participant, remoteID string) (*ChatView, error) {
	session, err := uc.sessions.OpenSession(ctx, local, remoteID)
	if err != nil {
		return nil, err
	}
	session.Room.LastMessage = uc.messages.DecryptSummary(session.Room.LastMessage)

	return &ChatView{
		session:   session,
		messages:  uc.messages.Subscribe(ctx, session.RoomID),
		presence:  uc.typing.Observe(ctx, session.RoomID, session.Remote.ID),
		messageUC: uc.messages,
		typingUC:  uc.typing,
	}, nil
}

func (v *ChatView) Session() *ChatSession {
	return v.session
}

func (v *ChatView) Messages() <-chan MessageEvent {
	return v.messages.Events()
}

func (v *ChatView) Typing() <-chan TypingEvent {
	return v.presence.Events()
}

func (v *ChatView) Send(ctx context.Context, input SendMessageInput) (*entity.Message, error) {
	return v.messageUC.Send(ctx, v.session.RoomID, v.session.Local, input)
}

func (v *ChatView) NotifyTyping(ctx context.Context) {
	v.typingUC.NotifyTyping(ctx, v.session.RoomID, v.session.Participants(), v.session.Local.ID)
}

// Close stops both subscriptions and clears the local user's typing state.
func (v *ChatView) Close() {
	v.closeOnce.Do(func() {
		v.messages.Close()
		v.presence.Close()
		v.typingUC.Flush(v.session.RoomID, v.session.Local.ID)
	})
}
