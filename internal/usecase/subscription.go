package usecase

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"chatcore/internal/domain/repository"
	"chatcore/pkg/logger"
)

// Subscription is a cancelable live event sequence. Events is closed once the
// subscription has stopped.
type Subscription[E any] struct {
	events chan E
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *Subscription[E]) Events() <-chan E {
	return s.events
}

// Close cancels the subscription and waits for its goroutine to exit.
func (s *Subscription[E]) Close() {
	s.cancel()
	<-s.done
}

// startSubscription runs produce in its own goroutine. emit blocks until the
// consumer takes the event and returns false once the subscription is canceled.
func startSubscription[E any](ctx context.Context, name string, produce func(ctx context.Context, emit func(E) bool)) *Subscription[E] {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription[E]{
		events: make(chan E),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	emit := func(event E) bool {
		select {
		case s.events <- event:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(s.done)
		defer close(s.events)
		defer func() {
			if r := recover(); r != nil {
				logger.Error("%s Error: subscription panicked: %v", name, r)
			}
		}()
		produce(ctx, emit)
	}()

	return s
}

// retryPolicy bounds the exponential backoff used to reopen a broken feed.
type retryPolicy struct {
	initial time.Duration
	max     time.Duration
}

var defaultRetry = retryPolicy{initial: 500 * time.Millisecond, max: 30 * time.Second}

func (p retryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initial
	b.MaxInterval = p.max
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// followFeed reads feed values into handle and reopens the feed with backoff
// whenever the store connection breaks. fail is told about every break and
// may stop the loop by returning false. It returns once ctx is done or handle
// returns false.
func followFeed[T any](
	ctx context.Context,
	name string,
	policy retryPolicy,
	open func(ctx context.Context) (repository.Feed[T], error),
	handle func(value T) bool,
	fail func(err error) bool,
) {
	retry := policy.backOff()
	for {
		feed, err := open(ctx)
		if err == nil {
			err = drainFeed(feed, handle, retry.Reset)
			feed.Stop()
			if err == nil {
				return
			}
		}
		if ctx.Err() != nil {
			return
		}

		delay := retry.NextBackOff()
		if stderrors.Is(err, repository.ErrFeedStopped) {
			logger.Warn("%s Warning: feed closed unexpectedly, reopening in %v", name, delay)
		} else {
			logger.Warn("%s Warning: feed interrupted, retrying in %v: %v", name, delay, err)
		}
		if !fail(err) {
			return
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func drainFeed[T any](feed repository.Feed[T], handle func(T) bool, healthy func()) error {
	for {
		value, err := feed.Next()
		if err != nil {
			return err
		}
		healthy()
		if !handle(value) {
			return nil
		}
	}
}
