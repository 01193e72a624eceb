package repository

import "errors"

// ErrFeedStopped is returned by Feed.Next once the feed was stopped or its
// context was canceled. Any other error means the store connection broke and
// the feed may be reopened.
var ErrFeedStopped = errors.New("feed stopped")

// Feed is a live change subscription: the first Next returns the current state
// of the query, every later call blocks until the next change.
type Feed[T any] interface {
	Next() (T, error)
	Stop()
}
