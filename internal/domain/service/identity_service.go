package service

import (
	"context"

	"chatcore/internal/domain/entity"
)

// IdentityProvider verifies session tokens and supplies the local user's display fields.
type IdentityProvider interface {
	VerifyToken(ctx context.Context, token string) (string, error)
	GetParticipant(ctx context.Context, uid string) (*entity.Participant, error)
}
