package router

import (
	"github.com/labstack/echo/v4"

	"chatcore/internal/adapter/api/handler"
	"chatcore/internal/adapter/api/middleware"
)

type Handlers struct {
	Chat      *handler.ChatHandler
	Media     *handler.MediaHandler
	WebSocket *handler.WebSocketHandler
	Health    *handler.HealthHandler
}

func Setup(e *echo.Echo, h Handlers, authMiddleware *middleware.AuthMiddleware, limiter *middleware.IPRateLimiter) {
	SetupHealthRouter(e, h.Health)
	SetupChatRouter(e, h.Chat, authMiddleware, limiter)
	SetupMediaRouter(e, h.Media, authMiddleware, limiter)
	SetupWebSocketRouter(e, h.WebSocket, authMiddleware)
}
