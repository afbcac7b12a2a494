package http

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/readyup/internal/chat"
	"github.com/xiaot623/readyup/internal/domain"
)

// InteractionRequest is a control activation delivered by webhook.
type InteractionRequest struct {
	PromptID      string             `json:"prompt_id"`
	CustomID      string             `json:"custom_id"`
	InteractionID string             `json:"interaction_id,omitempty"`
	User          ParticipantRequest `json:"user"`
}

// PostInteraction forwards an activation to the prompt it was made on.
// POST /v1/interactions
func (h *Handler) PostInteraction(c echo.Context) error {
	var req InteractionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.PromptID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "prompt_id is required"})
	}
	if req.User.ID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user.id is required"})
	}
	if req.InteractionID == "" {
		req.InteractionID = uuid.New().String()
	}

	resp := domain.Response{
		Participant: domain.NewParticipant(req.User.ID, req.User.DisplayName),
		Token:       req.CustomID,
		Origin: domain.Origin{
			Kind:          domain.OriginComponent,
			InteractionID: req.InteractionID,
		},
	}

	if err := h.prompts.Dispatch(domain.PromptHandle(req.PromptID), resp); err != nil {
		switch {
		case errors.Is(err, chat.ErrPromptClosed), errors.Is(err, chat.ErrUnknownPrompt):
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, chat.ErrInboxFull):
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"ok":             true,
		"interaction_id": req.InteractionID,
	})
}
