package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"chatcore/internal/domain/service"
)

type AuthMiddleware struct {
	identity service.IdentityProvider
}

func NewAuthMiddleware(identity service.IdentityProvider) *AuthMiddleware {
	return &AuthMiddleware{
		identity: identity,
	}
}

func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header is required")
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
		}

		return m.verify(c, parts[1], next)
	}
}

// AuthenticateWebSocket also accepts the token as a query parameter, since
// browsers cannot set headers on the upgrade request.
func (m *AuthMiddleware) AuthenticateWebSocket(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if token := c.QueryParam("token"); token != "" {
			return m.verify(c, token, next)
		}
		return m.Authenticate(next)(c)
	}
}

func (m *AuthMiddleware) verify(c echo.Context, token string, next echo.HandlerFunc) error {
	uid, err := m.identity.VerifyToken(c.Request().Context(), token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
	}

	c.Set("uid", uid)
	return next(c)
}
