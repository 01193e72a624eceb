package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"

	"chatcore/internal/domain/entity"
	"chatcore/internal/domain/repository"
	"chatcore/internal/domain/service"
	"chatcore/internal/infrastructure/ratelimit"
	"chatcore/pkg/errors"
	"chatcore/pkg/logger"
)

// DecryptionPlaceholder replaces text that cannot be decrypted.
const DecryptionPlaceholder = "Message cannot be decrypted"

type MessageUseCase struct {
	chatRepo    repository.ChatRepository
	cipher      service.MessageCipher
	media       *MediaUseCase
	rateLimiter RateLimiter
	retry       retryPolicy
}

func NewMessageUseCase(
	chatRepo repository.ChatRepository,
	cipher service.MessageCipher,
	media *MediaUseCase,
	rateLimiter RateLimiter,
) *MessageUseCase {
	if rateLimiter == nil {
		rateLimiter = noLimit{}
	}
	return &MessageUseCase{
		chatRepo:    chatRepo,
		cipher:      cipher,
		media:       media,
		rateLimiter: rateLimiter,
		retry:       defaultRetry,
	}
}

// SendMessageInput carries at most one of Image and Media next to the text.
type SendMessageInput struct {
	Text  string
	Image *entity.Attachment
	Media *entity.Media
}

// Validate rejects a send without any I/O.
func (uc *MessageUseCase) Validate(input SendMessageInput) error {
	if strings.TrimSpace(input.Text) == "" && input.Image == nil && input.Media == nil {
		return errors.EmptyMessage()
	}
	if input.Image != nil && input.Media != nil {
		return errors.InvalidAttachment("A message carries either an image or a picked media item")
	}
	if input.Media != nil && (!input.Media.Type.Valid() || input.Media.URL == "") {
		return errors.InvalidAttachment("Media reference needs a type and a url")
	}
	if input.Image != nil {
		if _, err := uc.media.ValidateImage(input.Image); err != nil {
			return err
		}
	}
	return nil
}

// Send validates, uploads any image, encrypts the text and appends the
// message to the room. The returned message has its store id and timestamp.
func (uc *MessageUseCase) Send(ctx context.Context, roomID string, author entity.Participant, input SendMessageInput) (*entity.Message, error) {
	if err := uc.Validate(input); err != nil {
		return nil, err
	}

	if allowed, wait := uc.rateLimiter.Allow(author.ID, ratelimit.ActionSendMessage); !allowed {
		log.Printf("SendMessage Rate Limited: User %s must wait %v", author.ID, wait)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before sending another message", fmt.Errorf("retry after %v", wait))
	}

	message := &entity.Message{
		AuthorID:          author.ID,
		AuthorDisplayName: author.DisplayName,
		AuthorPhotoURL:    author.PhotoURL,
	}

	// Upload completes before anything is written to the room.
	if input.Image != nil {
		url, err := uc.media.UploadImage(ctx, input.Image)
		if err != nil {
			return nil, err
		}
		message.ImageURL = url
	}
	if input.Media != nil {
		message.MediaType = string(input.Media.Type)
		message.MediaURL = input.Media.URL
		message.MediaWidth = input.Media.Width
		message.MediaHeight = input.Media.Height
	}

	// Empty text is encrypted too so attachment-only messages keep the same shape.
	ciphertext, err := uc.cipher.Encrypt(input.Text)
	if err != nil {
		uc.media.DiscardImage(ctx, message.ImageURL)
		return nil, errors.Internal("Failed to encrypt message", err)
	}
	message.Text = ciphertext

	if err := uc.chatRepo.CreateMessage(ctx, roomID, message); err != nil {
		log.Printf("SendMessage Error: failed to write message to room %s: %v", roomID, err)
		uc.media.DiscardImage(ctx, message.ImageURL)
		return nil, err
	}

	if err := uc.chatRepo.UpdateLastMessage(ctx, roomID, message.Summary()); err != nil {
		log.Printf("SendMessage Warning: failed to update last message of room %s: %v", roomID, err)
	}

	sent := *message
	sent.Text = input.Text
	return &sent, nil
}

// MessageEvent is one delivery of the message stream. Initial marks the first
// full snapshot; later events carry only messages not delivered before. A
// non-nil Err reports a broken store connection while the stream reconnects.
type MessageEvent struct {
	RoomID   string
	Messages []*entity.Message
	Initial  bool
	Err      error
}

// Subscribe opens the live, ordered, decrypted message stream of a room.
// The stream survives store reconnects and never redelivers a message.
func (uc *MessageUseCase) Subscribe(ctx context.Context, roomID string) *Subscription[MessageEvent] {
	return startSubscription(ctx, "SubscribeMessages", func(ctx context.Context, emit func(MessageEvent) bool) {
		seen := make(map[string]struct{})
		initial := true

		followFeed(ctx, "SubscribeMessages", uc.retry,
			func(ctx context.Context) (repository.Feed[[]*entity.Message], error) {
				return uc.chatRepo.WatchMessages(ctx, roomID)
			},
			func(snapshot []*entity.Message) bool {
				fresh := make([]*entity.Message, 0, len(snapshot))
				for _, message := range snapshot {
					if _, ok := seen[message.ID]; ok {
						continue
					}
					seen[message.ID] = struct{}{}
					fresh = append(fresh, uc.decrypt(roomID, message))
				}
				if len(fresh) == 0 && !initial {
					return true
				}
				event := MessageEvent{RoomID: roomID, Messages: fresh, Initial: initial}
				initial = false
				return emit(event)
			},
			func(err error) bool {
				return emit(MessageEvent{RoomID: roomID, Err: errors.StoreUnavailable("Message stream interrupted", err)})
			},
		)
	})
}

// decrypt replaces the ciphertext with plaintext, or with the placeholder
// when it cannot be decrypted. Image and media fields pass through.
func (uc *MessageUseCase) decrypt(roomID string, message *entity.Message) (out *entity.Message) {
	if message.Text == "" {
		return message
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Warn("Decrypt Warning: message %s in room %s: %v", message.ID, roomID, errors.DecryptionFailure(fmt.Errorf("panic: %v", r)))
			message.Text = DecryptionPlaceholder
			message.DecryptionFailed = true
			out = message
		}
	}()

	plaintext, err := uc.cipher.Decrypt(message.Text)
	if err != nil {
		logger.Warn("Decrypt Warning: message %s in room %s: %v", message.ID, roomID, errors.DecryptionFailure(err))
		message.Text = DecryptionPlaceholder
		message.DecryptionFailed = true
		return message
	}
	message.Text = plaintext
	return message
}

// DecryptSummary returns the plaintext of a room's lastMessage summary.
func (uc *MessageUseCase) DecryptSummary(summary *entity.MessageSummary) *entity.MessageSummary {
	if summary == nil || summary.Text == "" {
		return summary
	}
	out := *summary
	plaintext, err := uc.cipher.Decrypt(summary.Text)
	if err != nil {
		out.Text = DecryptionPlaceholder
	} else {
		out.Text = plaintext
	}
	return &out
}
