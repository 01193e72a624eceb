package repository

import (
	"context"
	"log"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"chatcore/internal/domain/entity"
	"chatcore/internal/domain/repository"
	"chatcore/pkg/errors"
)

const (
	chatsCollection    = "chats"
	messagesCollection = "messages"
)

type firestoreChatRepository struct {
	client *firestore.Client
}

func NewFirestoreChatRepository(client *firestore.Client) repository.ChatRepository {
	return &firestoreChatRepository{
		client: client,
	}
}

func (r *firestoreChatRepository) room(roomID string) *firestore.DocumentRef {
	return r.client.Collection(chatsCollection).Doc(roomID)
}

func (r *firestoreChatRepository) messages(roomID string) *firestore.CollectionRef {
	return r.room(roomID).Collection(messagesCollection)
}

func (r *firestoreChatRepository) GetRoom(ctx context.Context, roomID string) (*entity.ChatRoom, error) {
	doc, err := r.room(roomID).Get(ctx)
	if err != nil {
		return nil, storeError("Chat room", "Failed to get chat room", err)
	}
	return decodeRoom(doc)
}

func (r *firestoreChatRepository) CreateRoom(ctx context.Context, room *entity.ChatRoom) (bool, error) {
	_, err := r.room(room.ID).Create(ctx, newRoomData(room.Participants, nil))
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return false, nil
		}
		return false, storeError("Chat room", "Failed to create chat room", err)
	}
	return true, nil
}

func (r *firestoreChatRepository) UpdateLastMessage(ctx context.Context, roomID string, summary *entity.MessageSummary) error {
	_, err := r.room(roomID).Update(ctx, []firestore.Update{
		{Path: "lastMessage", Value: summary},
	})
	if err != nil {
		return storeError("Chat room", "Failed to update last message", err)
	}
	return nil
}

func (r *firestoreChatRepository) SetTyping(ctx context.Context, roomID string, participants []string, userID string) error {
	ref := r.room(roomID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return tx.Create(ref, newRoomData(participants, &userID))
			}
			return err
		}
		if !doc.Exists() {
			return tx.Create(ref, newRoomData(participants, &userID))
		}
		return tx.Update(ref, []firestore.Update{{Path: "typing", Value: userID}})
	})
	if err != nil {
		return storeError("Chat room", "Failed to set typing state", err)
	}
	return nil
}

func (r *firestoreChatRepository) ClearTyping(ctx context.Context, roomID, userID string) error {
	ref := r.room(roomID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return err
		}
		room, err := decodeRoom(doc)
		if err != nil {
			return err
		}
		// A newer writer owns the field now.
		if room.TypingUser() != userID {
			return nil
		}
		return tx.Update(ref, []firestore.Update{{Path: "typing", Value: nil}})
	})
	if err != nil {
		return storeError("Chat room", "Failed to clear typing state", err)
	}
	return nil
}

func (r *firestoreChatRepository) CreateMessage(ctx context.Context, roomID string, message *entity.Message) error {
	ref := r.messages(roomID).NewDoc()
	result, err := ref.Create(ctx, message)
	if err != nil {
		return storeError("Message", "Failed to create message", err)
	}

	message.ID = ref.ID
	message.CreatedAt = result.UpdateTime
	return nil
}

func (r *firestoreChatRepository) WatchMessages(ctx context.Context, roomID string) (repository.Feed[[]*entity.Message], error) {
	it := r.messages(roomID).OrderBy("createdAt", firestore.Asc).Snapshots(ctx)
	return &messageFeed{it: it, roomID: roomID}, nil
}

func (r *firestoreChatRepository) WatchRoom(ctx context.Context, roomID string) (repository.Feed[*entity.ChatRoom], error) {
	return &roomFeed{it: r.room(roomID).Snapshots(ctx)}, nil
}

func newRoomData(participants []string, typing *string) map[string]interface{} {
	var typingValue interface{}
	if typing != nil {
		typingValue = *typing
	}
	return map[string]interface{}{
		"participants": participants,
		"createdAt":    firestore.ServerTimestamp,
		"lastMessage":  nil,
		"typing":       typingValue,
	}
}

func decodeRoom(doc *firestore.DocumentSnapshot) (*entity.ChatRoom, error) {
	var room entity.ChatRoom
	if err := doc.DataTo(&room); err != nil {
		return nil, errors.Internal("Failed to parse chat room data", err)
	}
	room.ID = doc.Ref.ID
	return &room, nil
}

type messageFeed struct {
	it     *firestore.QuerySnapshotIterator
	roomID string
}

// Next returns the whole ordered result set. Ties on createdAt keep the
// store's own order.
func (f *messageFeed) Next() ([]*entity.Message, error) {
	snap, err := f.it.Next()
	if err != nil {
		return nil, feedError(err)
	}

	docs, err := snap.Documents.GetAll()
	if err != nil {
		return nil, feedError(err)
	}

	messages := make([]*entity.Message, 0, len(docs))
	for _, doc := range docs {
		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			log.Printf("WatchMessages Warning: skipping malformed message %s in chat %s: %v", doc.Ref.ID, f.roomID, err)
			continue
		}
		message.ID = doc.Ref.ID
		messages = append(messages, &message)
	}
	return messages, nil
}

func (f *messageFeed) Stop() {
	f.it.Stop()
}

type roomFeed struct {
	it *firestore.DocumentSnapshotIterator
}

func (f *roomFeed) Next() (*entity.ChatRoom, error) {
	doc, err := f.it.Next()
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, feedError(err)
	}
	if !doc.Exists() {
		return nil, nil
	}
	return decodeRoom(doc)
}

func (f *roomFeed) Stop() {
	f.it.Stop()
}
