package router

import (
	"github.com/labstack/echo/v4"

	"chatcore/internal/adapter/api/handler"
)

func SetupHealthRouter(e *echo.Echo, healthHandler *handler.HealthHandler) {
	e.GET("/health", healthHandler.CheckHealth)
	e.GET("/health/firebase", healthHandler.CheckFirebaseHealth)
}
