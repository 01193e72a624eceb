package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatcore/internal/domain/entity"
)

type stubIdentity struct{}

func (stubIdentity) VerifyToken(ctx context.Context, token string) (string, error) {
	if token == "good" {
		return "alice", nil
	}
	return "", fmt.Errorf("bad token")
}

func (stubIdentity) GetParticipant(ctx context.Context, uid string) (*entity.Participant, error) {
	return &entity.Participant{ID: uid}, nil
}

func echoUID(c echo.Context) error {
	return c.String(http.StatusOK, c.Get("uid").(string))
}

func TestAuthenticate(t *testing.T) {
	e := echo.New()
	m := NewAuthMiddleware(stubIdentity{})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "valid bearer", header: "Bearer good", status: http.StatusOK},
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good", status: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer bad", status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			err := m.Authenticate(echoUID)(e.NewContext(req, rec))
			if tt.status == http.StatusOK {
				require.NoError(t, err)
				assert.Equal(t, "alice", rec.Body.String())
				return
			}
			var httpErr *echo.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.status, httpErr.Code)
		})
	}
}

func TestAuthenticateWebSocket_AcceptsQueryToken(t *testing.T) {
	e := echo.New()
	m := NewAuthMiddleware(stubIdentity{})

	req := httptest.NewRequest(http.MethodGet, "/ws?token=good", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, m.AuthenticateWebSocket(echoUID)(e.NewContext(req, rec)))
	assert.Equal(t, "alice", rec.Body.String())
}

func TestIPRateLimiter_BlocksAfterBurst(t *testing.T) {
	e := echo.New()
	limiter := NewIPRateLimiter(2, time.Minute)
	handler := limiter.Middleware()(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		require.NoError(t, handler(e.NewContext(req, rec)))
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
