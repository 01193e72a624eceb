package router

import (
	"github.com/labstack/echo/v4"

	"chatcore/internal/adapter/api/handler"
	"chatcore/internal/adapter/api/middleware"
)

// SetupChatRouter sets up the one-shot chat endpoints; live updates go over /ws.
func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware, limiter *middleware.IPRateLimiter) {
	chatGroup := e.Group("/v1/chats")
	chatGroup.Use(limiter.Middleware())
	chatGroup.Use(authMiddleware.Authenticate)

	chatGroup.POST("/:remoteId/open", chatHandler.OpenChat)
	chatGroup.POST("/:remoteId/messages", chatHandler.SendMessage)
	chatGroup.POST("/:remoteId/images", chatHandler.UploadImage)
}
