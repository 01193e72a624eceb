package usecase

import "time"

// RateLimiter is satisfied by ratelimit.RateLimiter.
type RateLimiter interface {
	Allow(userID, action string) (bool, time.Duration)
}

// Timer is a pending callback armed through a Clock.
type Timer interface {
	Stop() bool
}

// Clock supplies time and delayed callbacks so debounce behavior can be
// driven manually in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

type noLimit struct{}

func (noLimit) Allow(string, string) (bool, time.Duration) { return true, 0 }
