package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/readyup/internal/domain"
	"github.com/xiaot623/readyup/internal/service"
)

const defaultListLimit = 20

// ParticipantRequest identifies a chat user.
type ParticipantRequest struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
}

// StartReadyUpRequest is the start command.
type StartReadyUpRequest struct {
	EventLabel        string             `json:"event_label,omitempty"`
	TimeWindowLabel   string             `json:"time_window_label,omitempty"`
	TimeoutSeconds    int                `json:"timeout_seconds,omitempty"`
	ReadyThreshold    int                `json:"ready_threshold,omitempty"`
	NotReadyThreshold int                `json:"not_ready_threshold,omitempty"`
	Organizer         ParticipantRequest `json:"organizer"`
	OrganizerReady    bool               `json:"organizer_ready,omitempty"`
}

// StartReadyUp opens a session, superseding the open one.
// POST /v1/readyups
func (h *Handler) StartReadyUp(c echo.Context) error {
	ctx := c.Request().Context()

	var req StartReadyUpRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.OrganizerReady && req.Organizer.ID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "organizer.id is required when organizer_ready is set"})
	}

	timeout, err := domain.TimeoutFromSeconds(req.TimeoutSeconds)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	params := domain.SessionParams{
		EventLabel:        req.EventLabel,
		TimeWindowLabel:   req.TimeWindowLabel,
		ReadyThreshold:    req.ReadyThreshold,
		NotReadyThreshold: req.NotReadyThreshold,
		Timeout:           timeout,
		OrganizerReady:    req.OrganizerReady,
	}
	if req.Organizer.ID != "" {
		params.Organizer = domain.NewParticipant(req.Organizer.ID, req.Organizer.DisplayName)
	}

	run, err := h.controller.Start(ctx, params)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidThreshold), errors.Is(err, domain.ErrInvalidTimeout):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrPolicyDenied):
			return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	}

	return c.JSON(http.StatusCreated, run.View())
}

// GetActive returns the open session.
// GET /v1/readyups/active
func (h *Handler) GetActive(c echo.Context) error {
	view, err := h.controller.Active()
	if errors.Is(err, service.ErrNoActiveSession) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no active readyup"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, view)
}

// GetReadyUp returns a recorded session with its responses.
// GET /v1/readyups/:session_id
func (h *Handler) GetReadyUp(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	record, err := h.history.GetReadyUp(ctx, sessionID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if record == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "readyup not found"})
	}
	return c.JSON(http.StatusOK, record)
}

// ListReadyUps returns the most recent sessions.
// GET /v1/readyups?limit=N
func (h *Handler) ListReadyUps(c echo.Context) error {
	ctx := c.Request().Context()

	limit := defaultListLimit
	if l := c.QueryParam("limit"); l != "" {
		val, err := strconv.Atoi(l)
		if err != nil || val <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
		}
		limit = val
	}

	records, err := h.history.ListReadyUps(ctx, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if records == nil {
		records = []domain.Record{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"readyups": records,
	})
}
