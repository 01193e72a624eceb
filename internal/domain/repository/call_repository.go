package repository

import (
	"context"
	"time"

	"chatcore/internal/domain/entity"
)

type CallRepository interface {
	Create(ctx context.Context, call *entity.CallSession) error
	GetByID(ctx context.Context, callID string) (*entity.CallSession, error)
	// Transition moves the call to next if its stored status is one of from.
	// It returns false without writing when the stored status is not a legal
	// predecessor.
	Transition(ctx context.Context, callID string, from []entity.CallStatus, next entity.CallStatus, endedAt *time.Time) (bool, error)

	// WatchAdded yields the call records newly added to the feed visible to userID.
	// Modifications and removals are not reported.
	WatchAdded(ctx context.Context, userID string) (Feed[[]*entity.CallSession], error)
	// WatchCall yields one call record on every change, nil once it is gone.
	WatchCall(ctx context.Context, callID string) (Feed[*entity.CallSession], error)
}
