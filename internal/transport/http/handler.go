package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/readyup/internal/domain"
	"github.com/xiaot623/readyup/internal/service"
)

// Controller starts and reports readiness sessions.
type Controller interface {
	Start(ctx context.Context, params domain.SessionParams) (*service.Run, error)
	Active() (domain.SessionView, error)
}

// History reads recorded sessions.
type History interface {
	GetReadyUp(ctx context.Context, sessionID string) (*domain.Record, error)
	ListReadyUps(ctx context.Context, limit int) ([]domain.Record, error)
}

// Dispatcher routes control activations to their prompt.
type Dispatcher interface {
	Dispatch(h domain.PromptHandle, resp domain.Response) error
}

// ConnectionCounter reports live chat connections.
type ConnectionCounter interface {
	GetConnectionCount() int
}

// Handler handles HTTP requests.
type Handler struct {
	controller Controller
	history    History
	prompts    Dispatcher
	gateway    ConnectionCounter
}

// NewHandler creates a new handler. gateway may be nil.
func NewHandler(controller Controller, history History, prompts Dispatcher, gateway ConnectionCounter) *Handler {
	return &Handler{
		controller: controller,
		history:    history,
		prompts:    prompts,
		gateway:    gateway,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/readyups", h.StartReadyUp)
	e.GET("/v1/readyups", h.ListReadyUps)
	e.GET("/v1/readyups/active", h.GetActive)
	e.GET("/v1/readyups/:session_id", h.GetReadyUp)

	e.POST("/v1/interactions", h.PostInteraction)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	resp := map[string]interface{}{
		"status":  "healthy",
		"version": "0.1.0",
	}
	if h.gateway != nil {
		resp["connections"] = h.gateway.GetConnectionCount()
	}
	if view, err := h.controller.Active(); err == nil {
		resp["active_session_id"] = view.SessionID
	}
	return c.JSON(http.StatusOK, resp)
}
