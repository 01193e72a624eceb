package ratelimit

import (
	"sync"
	"time"
)

const (
	ActionSendMessage  = "send_message"
	ActionTyping       = "typing"
	ActionCallInitiate = "call_initiate"
	ActionMediaSearch  = "media_search"
)

// TokenBucket represents a token bucket for rate limiting
type TokenBucket struct {
	tokens     int
	maxTokens  int
	refillRate int
	refillTime time.Duration
	lastRefill time.Time
	lastUsed   time.Time
	mutex      sync.Mutex
}

// RateLimiter manages rate limiting for different users and actions
type RateLimiter struct {
	buckets map[string]*TokenBucket
	mutex   sync.RWMutex
	now     func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*TokenBucket),
		now:     time.Now,
	}
}

func NewTokenBucket(maxTokens, refillRate int, refillTime time.Duration, now time.Time) *TokenBucket {
	return &TokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		refillTime: refillTime,
		lastRefill: now,
		lastUsed:   now,
	}
}

// take consumes a token if one is available, otherwise reports the wait
// until the next refill.
func (tb *TokenBucket) take(now time.Time) (bool, time.Duration) {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.lastUsed = now

	elapsed := now.Sub(tb.lastRefill)
	if refills := int(elapsed / tb.refillTime); refills > 0 {
		tb.tokens += refills * tb.refillRate
		if tb.tokens > tb.maxTokens {
			tb.tokens = tb.maxTokens
		}
		tb.lastRefill = tb.lastRefill.Add(time.Duration(refills) * tb.refillTime)
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true, 0
	}

	return false, tb.lastRefill.Add(tb.refillTime).Sub(now)
}

func (tb *TokenBucket) GetTokens() int {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()
	return tb.tokens
}

func bucketFor(action string, now time.Time) *TokenBucket {
	switch action {
	case ActionSendMessage:
		// 30 messages, one more every 2 seconds
		return NewTokenBucket(30, 1, 2*time.Second, now)
	case ActionTyping:
		// 30 typing writes, one more every 2 seconds
		return NewTokenBucket(30, 1, 2*time.Second, now)
	case ActionCallInitiate:
		// 5 call attempts, one more every 30 seconds
		return NewTokenBucket(5, 1, 30*time.Second, now)
	case ActionMediaSearch:
		// 20 searches, one more every 3 seconds
		return NewTokenBucket(20, 1, 3*time.Second, now)
	default:
		return NewTokenBucket(20, 1, 3*time.Second, now)
	}
}

// Allow checks if a user action is allowed
func (rl *RateLimiter) Allow(userID, action string) (bool, time.Duration) {
	key := userID + ":" + action
	now := rl.now()

	rl.mutex.RLock()
	bucket, exists := rl.buckets[key]
	rl.mutex.RUnlock()

	if !exists {
		rl.mutex.Lock()
		if bucket, exists = rl.buckets[key]; !exists {
			bucket = bucketFor(action, now)
			rl.buckets[key] = bucket
		}
		rl.mutex.Unlock()
	}

	return bucket.take(now)
}

// GetStatus returns current rate limit status for a user action
func (rl *RateLimiter) GetStatus(userID, action string) (tokens int, maxTokens int) {
	rl.mutex.RLock()
	bucket, exists := rl.buckets[userID+":"+action]
	rl.mutex.RUnlock()

	if !exists {
		return 0, 0
	}
	return bucket.GetTokens(), bucket.maxTokens
}

// Cleanup removes buckets that have not been used for an hour.
func (rl *RateLimiter) Cleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	for key, bucket := range rl.buckets {
		bucket.mutex.Lock()
		idle := now.Sub(bucket.lastUsed)
		bucket.mutex.Unlock()
		if idle > time.Hour {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanupRoutine runs Cleanup every 30 minutes until done is closed.
func (rl *RateLimiter) StartCleanupRoutine(done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-done:
				return
			}
		}
	}()
}
