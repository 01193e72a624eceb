package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_ExhaustsAndRefills(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter()
	rl.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		allowed, _ := rl.Allow("u1", ActionCallInitiate)
		assert.True(t, allowed, "attempt %d", i)
	}

	allowed, wait := rl.Allow("u1", ActionCallInitiate)
	assert.False(t, allowed)
	assert.Equal(t, 30*time.Second, wait)

	now = now.Add(30 * time.Second)
	allowed, _ = rl.Allow("u1", ActionCallInitiate)
	assert.True(t, allowed)
}

func TestRateLimiter_KeysByUserAndAction(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < 5; i++ {
		rl.Allow("u1", ActionCallInitiate)
	}

	allowed, _ := rl.Allow("u2", ActionCallInitiate)
	assert.True(t, allowed)
	allowed, _ = rl.Allow("u1", ActionSendMessage)
	assert.True(t, allowed)

	tokens, maxTokens := rl.GetStatus("u1", ActionSendMessage)
	assert.Equal(t, 29, tokens)
	assert.Equal(t, 30, maxTokens)
}

func TestRateLimiter_CleanupDropsIdleBuckets(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter()
	rl.now = func() time.Time { return now }

	rl.Allow("u1", ActionTyping)
	now = now.Add(2 * time.Hour)
	rl.Cleanup()

	tokens, maxTokens := rl.GetStatus("u1", ActionTyping)
	assert.Zero(t, tokens)
	assert.Zero(t, maxTokens)
}
