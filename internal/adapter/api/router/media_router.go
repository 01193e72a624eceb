package router

import (
	"github.com/labstack/echo/v4"

	"chatcore/internal/adapter/api/handler"
	"chatcore/internal/adapter/api/middleware"
)

func SetupMediaRouter(e *echo.Echo, mediaHandler *handler.MediaHandler, authMiddleware *middleware.AuthMiddleware, limiter *middleware.IPRateLimiter) {
	mediaGroup := e.Group("/v1/media")
	mediaGroup.Use(limiter.Middleware())
	mediaGroup.Use(authMiddleware.Authenticate)

	mediaGroup.GET("/search", mediaHandler.Search)
}
