package router

import (
	"github.com/labstack/echo/v4"

	"chatcore/internal/adapter/api/handler"
	"chatcore/internal/adapter/api/middleware"
)

// SetupWebSocketRouter sets up WebSocket routes
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler, authMiddleware *middleware.AuthMiddleware) {
	e.GET("/ws", wsHandler.HandleWebSocket, authMiddleware.AuthenticateWebSocket)
}
