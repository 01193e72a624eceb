package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"chatcore/internal/domain/entity"
	"chatcore/internal/domain/repository"
	"chatcore/internal/infrastructure/ratelimit"
	"chatcore/pkg/errors"
	"chatcore/pkg/logger"
)

type CallUseCase struct {
	callRepo    repository.CallRepository
	clock       Clock
	rateLimiter RateLimiter
	retry       retryPolicy
}

func NewCallUseCase(callRepo repository.CallRepository, clock Clock, rateLimiter RateLimiter) *CallUseCase {
	if clock == nil {
		clock = SystemClock
	}
	if rateLimiter == nil {
		rateLimiter = noLimit{}
	}
	return &CallUseCase{
		callRepo:    callRepo,
		clock:       clock,
		rateLimiter: rateLimiter,
		retry:       defaultRetry,
	}
}

// IsIncomingFor reports whether call is a pending call placed to userID by
// someone else. It depends only on the record's own fields, so redelivery
// does not change the answer.
func IsIncomingFor(call *entity.CallSession, userID string) bool {
	return call != nil &&
		call.HasParticipant(userID) &&
		call.Status == entity.CallStatusPending &&
		call.CreatedBy != userID
}

// Initiate writes a new pending call from localID to remoteID.
func (uc *CallUseCase) Initiate(ctx context.Context, localID, remoteID string) (*entity.CallSession, error) {
	if remoteID == "" || remoteID == localID {
		return nil, errors.BadRequest("A call needs another participant", nil)
	}
	if allowed, wait := uc.rateLimiter.Allow(localID, ratelimit.ActionCallInitiate); !allowed {
		log.Printf("InitiateCall Rate Limited: User %s must wait %v", localID, wait)
		return nil, errors.TooManyRequests("Too many call attempts, please wait", fmt.Errorf("retry after %v", wait))
	}

	now := uc.clock.Now()
	call := &entity.CallSession{
		ID:           entity.NewCallID(now, localID, remoteID),
		Participants: []string{localID, remoteID},
		Status:       entity.CallStatusPending,
		CreatedBy:    localID,
		CreatedAt:    now,
	}
	if err := call.Validate(); err != nil {
		return nil, errors.BadRequest(err.Error(), err)
	}

	if err := uc.callRepo.Create(ctx, call); err != nil {
		log.Printf("InitiateCall Error: %s -> %s: %v", localID, remoteID, err)
		return nil, err
	}
	return call, nil
}

// Accept marks a pending call accepted so the caller can follow along. A call
// that already left pending is left untouched.
func (uc *CallUseCase) Accept(ctx context.Context, callID string) error {
	return uc.transition(ctx, callID, "accept", []entity.CallStatus{entity.CallStatusPending}, entity.CallStatusAccepted, false)
}

// Reject writes status=rejected and endedAt from pending only.
func (uc *CallUseCase) Reject(ctx context.Context, callID string) error {
	return uc.transition(ctx, callID, "reject", []entity.CallStatus{entity.CallStatusPending}, entity.CallStatusRejected, true)
}

// End writes status=ended and endedAt from pending or accepted.
func (uc *CallUseCase) End(ctx context.Context, callID string) error {
	return uc.transition(ctx, callID, "end", []entity.CallStatus{entity.CallStatusPending, entity.CallStatusAccepted}, entity.CallStatusEnded, true)
}

// EndPending writes status=ended and endedAt only while the call is still
// pending, so a call answered elsewhere stays up.
func (uc *CallUseCase) EndPending(ctx context.Context, callID string) error {
	return uc.transition(ctx, callID, "end_pending", []entity.CallStatus{entity.CallStatusPending}, entity.CallStatusEnded, true)
}

// transition treats a stale predecessor state as a logged no-op.
func (uc *CallUseCase) transition(ctx context.Context, callID, action string, from []entity.CallStatus, next entity.CallStatus, stamp bool) error {
	var endedAt *time.Time
	if stamp {
		now := uc.clock.Now()
		endedAt = &now
	}

	applied, err := uc.callRepo.Transition(ctx, callID, from, next, endedAt)
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			logger.LogCallTransition(callID, action, err)
			return nil
		}
		log.Printf("CallTransition Error: action=%s callID=%s: %v", action, callID, err)
		return err
	}
	if !applied {
		logger.LogCallTransition(callID, action, errors.CallStateConflict(fmt.Sprintf("call is no longer %v", from)))
	}
	return nil
}

// IncomingCallEvent carries one call placed to the observing user, or a
// broken-feed error while the observer reconnects.
type IncomingCallEvent struct {
	Call *entity.CallSession
	Err  error
}

// ObserveIncoming emits every newly added call that IsIncomingFor localID,
// once per call id.
func (uc *CallUseCase) ObserveIncoming(ctx context.Context, localID string) *Subscription[IncomingCallEvent] {
	return startSubscription(ctx, "ObserveIncomingCalls", func(ctx context.Context, emit func(IncomingCallEvent) bool) {
		seen := make(map[string]struct{})

		followFeed(ctx, "ObserveIncomingCalls", uc.retry,
			func(ctx context.Context) (repository.Feed[[]*entity.CallSession], error) {
				return uc.callRepo.WatchAdded(ctx, localID)
			},
			func(added []*entity.CallSession) bool {
				for _, call := range added {
					if !IsIncomingFor(call, localID) {
						continue
					}
					if _, ok := seen[call.ID]; ok {
						continue
					}
					seen[call.ID] = struct{}{}
					if !emit(IncomingCallEvent{Call: call}) {
						return false
					}
				}
				return true
			},
			func(err error) bool {
				return emit(IncomingCallEvent{Err: errors.StoreUnavailable("Call feed interrupted", err)})
			},
		)
	})
}

// CallUpdate is one state of a watched call record; Call is nil once the
// record is gone.
type CallUpdate struct {
	CallID string
	Call   *entity.CallSession
	Err    error
}

// WatchCall follows a single call record until it reaches a terminal status
// or disappears.
func (uc *CallUseCase) WatchCall(ctx context.Context, callID string) *Subscription[CallUpdate] {
	return startSubscription(ctx, "WatchCall", func(ctx context.Context, emit func(CallUpdate) bool) {
		followFeed(ctx, "WatchCall", uc.retry,
			func(ctx context.Context) (repository.Feed[*entity.CallSession], error) {
				return uc.callRepo.WatchCall(ctx, callID)
			},
			func(call *entity.CallSession) bool {
				if !emit(CallUpdate{CallID: callID, Call: call}) {
					return false
				}
				return call != nil && !call.Status.Terminal()
			},
			func(err error) bool {
				return emit(CallUpdate{CallID: callID, Err: errors.StoreUnavailable("Call watch interrupted", err)})
			},
		)
	})
}
