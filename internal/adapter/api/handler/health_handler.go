package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// ConnectionTester is satisfied by firebase.FirebaseAuthClient.
type ConnectionTester interface {
	TestConnection(ctx context.Context) error
}

// ConnectionCounter is satisfied by the websocket manager.
type ConnectionCounter interface {
	ConnectionCount() int
}

type HealthHandler struct {
	firebaseAuth ConnectionTester
	connections  ConnectionCounter
}

func NewHealthHandler(firebaseAuth ConnectionTester, connections ConnectionCounter) *HealthHandler {
	return &HealthHandler{
		firebaseAuth: firebaseAuth,
		connections:  connections,
	}
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	body := map[string]interface{}{
		"status": "Server is running",
		"time":   time.Now().Format(time.RFC3339),
	}
	if h.connections != nil {
		body["websocket_connections"] = h.connections.ConnectionCount()
	}
	return c.JSON(http.StatusOK, body)
}

func (h *HealthHandler) CheckFirebaseHealth(c echo.Context) error {
	err := h.firebaseAuth.TestConnection(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"status": "Firebase Auth connection failed",
			"error":  err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "Firebase Auth connected successfully",
	})
}
