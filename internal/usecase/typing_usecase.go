package usecase

import (
	"context"
	"log"
	"sync"
	"time"

	"chatcore/internal/domain/entity"
	"chatcore/internal/domain/repository"
	"chatcore/internal/infrastructure/ratelimit"
	"chatcore/pkg/errors"
)

// DefaultTypingQuietPeriod is how long typing stays set after the last keystroke.
const DefaultTypingQuietPeriod = 2 * time.Second

type typingTimer struct {
	token uint64
	timer Timer
}

// TypingUseCase publishes and observes the room's typing field. Every
// keystroke takes a new token; an expiry only clears the field while its
// token is still the latest one for that room and user.
type TypingUseCase struct {
	chatRepo    repository.ChatRepository
	clock       Clock
	quietPeriod time.Duration
	rateLimiter RateLimiter
	retry       retryPolicy

	mutex     sync.Mutex
	nextToken uint64
	pending   map[string]*typingTimer
}

func NewTypingUseCase(chatRepo repository.ChatRepository, clock Clock, quietPeriod time.Duration, rateLimiter RateLimiter) *TypingUseCase {
	if clock == nil {
		clock = SystemClock
	}
	if quietPeriod <= 0 {
		quietPeriod = DefaultTypingQuietPeriod
	}
	if rateLimiter == nil {
		rateLimiter = noLimit{}
	}
	return &TypingUseCase{
		chatRepo:    chatRepo,
		clock:       clock,
		quietPeriod: quietPeriod,
		rateLimiter: rateLimiter,
		retry:       defaultRetry,
		pending:     make(map[string]*typingTimer),
	}
}

func typingKey(roomID, userID string) string {
	return roomID + "|" + userID
}

// NotifyTyping records a keystroke: it cancels the pending expiry, writes
// typing=userID (creating the room if needed) and arms a fresh expiry.
// Write failures are logged and swallowed.
func (uc *TypingUseCase) NotifyTyping(ctx context.Context, roomID string, participants []string, userID string) {
	key := typingKey(roomID, userID)

	uc.mutex.Lock()
	if current, ok := uc.pending[key]; ok {
		current.timer.Stop()
		delete(uc.pending, key)
	}
	uc.nextToken++
	token := uc.nextToken
	uc.mutex.Unlock()

	if allowed, _ := uc.rateLimiter.Allow(userID, ratelimit.ActionTyping); allowed {
		if err := uc.chatRepo.SetTyping(ctx, roomID, participants, userID); err != nil {
			log.Printf("NotifyTyping Error: room %s user %s: %v", roomID, userID, err)
		}
	}

	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	if current, ok := uc.pending[key]; ok {
		// A newer keystroke finished first and owns the timer.
		if current.token > token {
			return
		}
		current.timer.Stop()
	}
	uc.pending[key] = &typingTimer{
		token: token,
		timer: uc.clock.AfterFunc(uc.quietPeriod, func() {
			uc.expire(roomID, userID, token)
		}),
	}
}

func (uc *TypingUseCase) expire(roomID, userID string, token uint64) {
	key := typingKey(roomID, userID)

	uc.mutex.Lock()
	current, ok := uc.pending[key]
	if !ok || current.token != token {
		uc.mutex.Unlock()
		return
	}
	delete(uc.pending, key)
	uc.mutex.Unlock()

	uc.clear(roomID, userID)
}

func (uc *TypingUseCase) clear(roomID, userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := uc.chatRepo.ClearTyping(ctx, roomID, userID); err != nil {
		log.Printf("ClearTyping Error: room %s user %s: %v", roomID, userID, err)
	}
}

// Flush cancels the pending expiry of userID in roomID and clears the field
// right away. Used when a chat view is torn down.
func (uc *TypingUseCase) Flush(roomID, userID string) {
	key := typingKey(roomID, userID)

	uc.mutex.Lock()
	current, ok := uc.pending[key]
	if ok {
		current.timer.Stop()
		delete(uc.pending, key)
	}
	uc.mutex.Unlock()

	if ok {
		uc.clear(roomID, userID)
	}
}

// TypingEvent reports whether the remote participant is typing.
type TypingEvent struct {
	RoomID   string
	IsTyping bool
	Err      error
}

// Observe emits IsTyping=typing==remoteID whenever that value changes. The
// local user's own typing state never shows up as true.
func (uc *TypingUseCase) Observe(ctx context.Context, roomID, remoteID string) *Subscription[TypingEvent] {
	return startSubscription(ctx, "ObserveTyping", func(ctx context.Context, emit func(TypingEvent) bool) {
		var last *bool

		followFeed(ctx, "ObserveTyping", uc.retry,
			func(ctx context.Context) (repository.Feed[*entity.ChatRoom], error) {
				return uc.chatRepo.WatchRoom(ctx, roomID)
			},
			func(room *entity.ChatRoom) bool {
				isTyping := room.TypingUser() == remoteID && remoteID != ""
				if last != nil && *last == isTyping {
					return true
				}
				last = &isTyping
				return emit(TypingEvent{RoomID: roomID, IsTyping: isTyping})
			},
			func(err error) bool {
				return emit(TypingEvent{RoomID: roomID, Err: errors.StoreUnavailable("Typing presence interrupted", err)})
			},
		)
	})
}
