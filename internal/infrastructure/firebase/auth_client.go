package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"chatcore/internal/domain/entity"
	"chatcore/pkg/errors"
)

// FirebaseAuthClient is the authenticated-user provider: it verifies ID tokens
// and supplies the display fields stamped on outgoing messages.
type FirebaseAuthClient struct {
	client *auth.Client
}

func NewFirebaseAuthClient(client *auth.Client) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

func (f *FirebaseAuthClient) VerifyToken(ctx context.Context, token string) (string, error) {
	result, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", errors.Unauthorized("Invalid or expired token", err)
	}

	return result.UID, nil
}

func (f *FirebaseAuthClient) GetParticipant(ctx context.Context, uid string) (*entity.Participant, error) {
	user, err := f.client.GetUser(ctx, uid)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return nil, errors.NotFound("User", err)
		}
		return nil, errors.Internal("Failed to load user profile", err)
	}

	return &entity.Participant{
		ID:          user.UID,
		DisplayName: user.DisplayName,
		PhotoURL:    user.PhotoURL,
	}, nil
}

// TestConnection performs a cheap lookup; an unknown user still proves the
// Auth backend answered.
func (f *FirebaseAuthClient) TestConnection(ctx context.Context) error {
	_, err := f.client.GetUser(ctx, "health-check")
	if err != nil && !auth.IsUserNotFound(err) {
		return err
	}
	return nil
}
