package usecase

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var roomParticipants = []string{"alice", "bob"}

func TestNotifyTyping_DebouncesExpiry(t *testing.T) {
	repo := newFakeChatRepo()
	clock := newFakeClock()
	uc := NewTypingUseCase(repo, clock, 2*time.Second, nil)
	ctx := context.Background()

	uc.NotifyTyping(ctx, "alice_bob", roomParticipants, "alice")
	clock.Advance(time.Second)
	uc.NotifyTyping(ctx, "alice_bob", roomParticipants, "alice")

	// t=1s .. t=3s-1ns: the first keystroke's expiry was canceled.
	clock.Advance(2*time.Second - time.Nanosecond)
	_, _, clears := repo.counts()
	assert.Zero(t, clears)
	assert.Equal(t, "alice", repo.room("alice_bob").TypingUser())

	clock.Advance(time.Nanosecond)
	_, _, clears = repo.counts()
	assert.Equal(t, 1, clears)
	assert.Equal(t, "", repo.room("alice_bob").TypingUser())
	assert.Zero(t, clock.activeTimers())
}

func TestNotifyTyping_CreatesRoomInSameWrite(t *testing.T) {
	repo := newFakeChatRepo()
	uc := NewTypingUseCase(repo, newFakeClock(), 0, nil)

	uc.NotifyTyping(context.Background(), "alice_bob", roomParticipants, "bob")

	room := repo.room("alice_bob")
	require.NotNil(t, room)
	assert.Equal(t, roomParticipants, room.Participants)
	assert.Equal(t, "bob", room.TypingUser())
}

func TestNotifyTyping_WriteFailureIsSwallowed(t *testing.T) {
	repo := newFakeChatRepo()
	repo.setTypingErr = stderrors.New("unavailable")
	clock := newFakeClock()
	uc := NewTypingUseCase(repo, clock, 2*time.Second, nil)

	assert.NotPanics(t, func() {
		uc.NotifyTyping(context.Background(), "alice_bob", roomParticipants, "alice")
	})
	assert.Equal(t, 1, clock.activeTimers())
}

func TestExpiry_DoesNotClobberOtherTyper(t *testing.T) {
	repo := newFakeChatRepo()
	clock := newFakeClock()
	uc := NewTypingUseCase(repo, clock, 2*time.Second, nil)
	ctx := context.Background()

	uc.NotifyTyping(ctx, "alice_bob", roomParticipants, "alice")
	clock.Advance(time.Second)
	uc.NotifyTyping(ctx, "alice_bob", roomParticipants, "bob")

	clock.Advance(time.Second)
	assert.Equal(t, "bob", repo.room("alice_bob").TypingUser())

	clock.Advance(time.Second)
	assert.Equal(t, "", repo.room("alice_bob").TypingUser())
}

func TestFlush_ClearsImmediately(t *testing.T) {
	repo := newFakeChatRepo()
	clock := newFakeClock()
	uc := NewTypingUseCase(repo, clock, 2*time.Second, nil)

	uc.NotifyTyping(context.Background(), "alice_bob", roomParticipants, "alice")
	uc.Flush("alice_bob", "alice")

	assert.Equal(t, "", repo.room("alice_bob").TypingUser())
	assert.Zero(t, clock.activeTimers())

	uc.Flush("alice_bob", "alice")
	_, _, clears := repo.counts()
	assert.Equal(t, 1, clears)
}

func TestObserve_ReflectsOnlyRemoteTyping(t *testing.T) {
	repo := newFakeChatRepo()
	uc := NewTypingUseCase(repo, newFakeClock(), 2*time.Second, nil)
	ctx := context.Background()

	sub := uc.Observe(ctx, "alice_bob", "bob")
	defer sub.Close()

	assert.False(t, receive(t, sub.Events()).IsTyping)

	require.NoError(t, repo.SetTyping(ctx, "alice_bob", roomParticipants, "alice"))
	expectNone(t, sub.Events(), 50*time.Millisecond)

	require.NoError(t, repo.SetTyping(ctx, "alice_bob", roomParticipants, "bob"))
	assert.True(t, receive(t, sub.Events()).IsTyping)

	require.NoError(t, repo.ClearTyping(ctx, "alice_bob", "bob"))
	assert.False(t, receive(t, sub.Events()).IsTyping)
}
