package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatcore/internal/domain/entity"
	"chatcore/pkg/errors"
)

func TestResolveRoomID_IsSymmetric(t *testing.T) {
	uc := NewChatSessionUseCase(newFakeChatRepo(), newFakeUserRepo())

	pairs := [][2]string{
		{"alice", "bob"},
		{"bob", "alice"},
		{"U2", "u1"},
		{"same-prefix", "same"},
		{"", "x"},
	}
	for _, p := range pairs {
		assert.Equal(t, uc.ResolveRoomID(p[0], p[1]), uc.ResolveRoomID(p[1], p[0]), "pair %v", p)
	}
	assert.Equal(t, "alice_bob", uc.ResolveRoomID("bob", "alice"))
}

func TestEnsureRoom_ConcurrentCallsCreateOneRoom(t *testing.T) {
	repo := newFakeChatRepo()
	uc := NewChatSessionUseCase(repo, newFakeUserRepo())
	roomID := uc.ResolveRoomID("alice", "bob")

	var wg sync.WaitGroup
	rooms := make([]*entity.ChatRoom, 2)
	errs := make([]error, 2)
	for i, participants := range [][]string{{"alice", "bob"}, {"bob", "alice"}} {
		wg.Add(1)
		go func(i int, participants []string) {
			defer wg.Done()
			rooms[i], errs[i] = uc.EnsureRoom(context.Background(), roomID, participants)
		}(i, participants)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Len(t, repo.rooms, 1)
	assert.Equal(t, rooms[0].Participants, rooms[1].Participants)
	assert.ElementsMatch(t, []string{"alice", "bob"}, rooms[0].Participants)
}

func TestEnsureRoom_ExistingRoomIsNotRewritten(t *testing.T) {
	repo := newFakeChatRepo()
	uc := NewChatSessionUseCase(repo, newFakeUserRepo())
	roomID := uc.ResolveRoomID("alice", "bob")

	require.NoError(t, repo.SetTyping(context.Background(), roomID, []string{"alice", "bob"}, "alice"))

	room, err := uc.EnsureRoom(context.Background(), roomID, []string{"bob", "alice"})
	require.NoError(t, err)

	createCalls, _, _ := repo.counts()
	assert.Zero(t, createCalls)
	assert.Equal(t, "alice", room.TypingUser())
}

func TestEnsureRoom_StoreUnavailable(t *testing.T) {
	repo := newFakeChatRepo()
	repo.getRoomErr = errors.StoreUnavailable("Failed to get chat room", nil)
	uc := NewChatSessionUseCase(repo, newFakeUserRepo())

	_, err := uc.EnsureRoom(context.Background(), "a_b", []string{"a", "b"})
	assert.True(t, errors.Is(err, errors.CodeStoreUnavailable))
}

func TestOpenSession(t *testing.T) {
	users := newFakeUserRepo(&entity.User{ID: "bob", DisplayName: "Bob", PhotoURL: "https://img/bob.png"})
	repo := newFakeChatRepo()
	uc := NewChatSessionUseCase(repo, users)
	alice := entity.Participant{ID: "alice", DisplayName: "Alice"}

	t.Run("resolves remote and creates room", func(t *testing.T) {
		session, err := uc.OpenSession(context.Background(), alice, "bob")
		require.NoError(t, err)
		assert.Equal(t, "alice_bob", session.RoomID)
		assert.Equal(t, "Bob", session.Remote.DisplayName)
		assert.Equal(t, "https://img/bob.png", session.Remote.PhotoURL)
		assert.NotNil(t, repo.room("alice_bob"))
	})

	t.Run("unknown remote", func(t *testing.T) {
		_, err := uc.OpenSession(context.Background(), alice, "carol")
		assert.True(t, errors.Is(err, errors.CodeNotFound))
	})

	t.Run("self chat", func(t *testing.T) {
		_, err := uc.OpenSession(context.Background(), alice, "alice")
		assert.True(t, errors.Is(err, errors.CodeBadRequest))
	})
}
