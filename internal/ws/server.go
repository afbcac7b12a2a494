// Package ws provides the WebSocket chat gateway for participant clients.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/readyup/internal/chat"
	"github.com/xiaot623/readyup/internal/config"
	"github.com/xiaot623/readyup/internal/domain"
	"github.com/xiaot623/readyup/internal/hub"
	"github.com/xiaot623/readyup/internal/protocol"
	"github.com/xiaot623/readyup/internal/service"
)

// Prompts routes control activations to the prompt they were made on.
type Prompts interface {
	Dispatch(h domain.PromptHandle, resp domain.Response) error
	OpenPrompts() []protocol.PromptMessage
}

// Starter opens readiness sessions.
type Starter interface {
	Start(ctx context.Context, params domain.SessionParams) (*service.Run, error)
}

// Server handles WebSocket connections.
type Server struct {
	cfg      *config.Config
	hub      *hub.Hub
	prompts  Prompts
	starter  Starter
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, h *hub.Hub, prompts Prompts, starter Starter) *Server {
	return &Server{
		cfg:     cfg,
		hub:     h,
		prompts: prompts,
		starter: starter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes mounts the gateway on e.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", s.HandleWebSocket)
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return err
	}

	conn := s.hub.NewConnection(ws)
	s.hub.Register(conn)

	ws.SetReadLimit(s.cfg.MaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump reads messages from the WebSocket connection.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		s.handleMessage(conn, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming messages to appropriate handlers.
func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	var baseMsg protocol.BaseMessage
	if err := json.Unmarshal(data, &baseMsg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch baseMsg.Type {
	case protocol.TypeHello:
		s.handleHello(conn, data)
	case protocol.TypeInteraction:
		s.handleInteraction(conn, data)
	case protocol.TypeStartReadyUp:
		s.handleStartReadyUp(conn, data)
	default:
		s.sendError(conn, baseMsg.RequestID, protocol.ErrorCodeInvalidMessage, "unknown message type: "+baseMsg.Type)
	}
}

// handleHello binds the connection to a participant and replays open prompts.
func (s *Server) handleHello(conn *hub.Connection, data []byte) {
	var msg protocol.HelloMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid hello message")
		return
	}

	if s.cfg.APIKey != "" && msg.APIKey != s.cfg.APIKey {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeUnauthorized, "invalid api_key")
		return
	}
	if msg.UserID == "" {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeInvalidMessage, "user_id is required")
		return
	}

	participant := domain.NewParticipant(msg.UserID, msg.DisplayName)
	s.hub.BindParticipant(conn, msg.UserID, participant.DisplayName)

	s.hub.SendJSONToConnection(conn, protocol.HelloAckMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeHelloAck,
			Ts:        time.Now().UnixMilli(),
			RequestID: msg.RequestID,
		},
		ParticipantID: msg.UserID,
	})
	for _, p := range s.prompts.OpenPrompts() {
		s.hub.SendJSONToConnection(conn, p)
	}

	log.Printf("Hello handshake completed for participant: %s", msg.UserID)
}

// handleInteraction forwards a control activation to its prompt.
func (s *Server) handleInteraction(conn *hub.Connection, data []byte) {
	var msg protocol.InteractionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid interaction message")
		return
	}

	if conn.ParticipantID == "" {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeParticipantRequired, "must send hello first")
		return
	}
	if msg.PromptID == "" {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeInvalidMessage, "prompt_id is required")
		return
	}

	interactionID := msg.InteractionID
	if interactionID == "" {
		interactionID = uuid.New().String()
	}
	resp := domain.Response{
		Participant: domain.NewParticipant(conn.ParticipantID, conn.DisplayName),
		Token:       msg.CustomID,
		Origin: domain.Origin{
			Kind:          domain.OriginComponent,
			InteractionID: interactionID,
		},
	}

	if err := s.prompts.Dispatch(domain.PromptHandle(msg.PromptID), resp); err != nil {
		switch {
		case errors.Is(err, chat.ErrPromptClosed):
			s.sendError(conn, msg.RequestID, protocol.ErrorCodePromptClosed, err.Error())
		case errors.Is(err, chat.ErrUnknownPrompt):
			s.sendError(conn, msg.RequestID, protocol.ErrorCodeInvalidMessage, err.Error())
		default:
			log.Printf("WARN: failed to dispatch interaction %s: %v", interactionID, err)
			s.sendError(conn, msg.RequestID, protocol.ErrorCodeInternalError, err.Error())
		}
	}
}

// handleStartReadyUp opens a session with the sender as organizer.
func (s *Server) handleStartReadyUp(conn *hub.Connection, data []byte) {
	var msg protocol.StartReadyUpMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid start_readyup message")
		return
	}

	if conn.ParticipantID == "" {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeParticipantRequired, "must send hello first")
		return
	}

	timeout, err := domain.TimeoutFromSeconds(msg.TimeoutSeconds)
	if err != nil {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeInvalidParams, err.Error())
		return
	}

	params := domain.SessionParams{
		EventLabel:        msg.EventLabel,
		TimeWindowLabel:   msg.TimeWindowLabel,
		ReadyThreshold:    msg.ReadyThreshold,
		NotReadyThreshold: msg.NotReadyThreshold,
		Timeout:           timeout,
		Organizer:         domain.NewParticipant(conn.ParticipantID, conn.DisplayName),
		OrganizerReady:    msg.OrganizerReady,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		run, err := s.starter.Start(ctx, params)
		if err != nil {
			log.Printf("Start readyup failed: %v", err)
			s.sendError(conn, msg.RequestID, StartErrorCode(err), err.Error())
			return
		}

		s.hub.SendJSONToConnection(conn, protocol.ReadyUpStartedMessage{
			BaseMessage: protocol.BaseMessage{
				Type:      protocol.TypeReadyUpStarted,
				Ts:        time.Now().UnixMilli(),
				RequestID: msg.RequestID,
			},
			Session: run.View(),
		})
	}()
}

// StartErrorCode maps a start failure to a protocol error code.
func StartErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidThreshold), errors.Is(err, domain.ErrInvalidTimeout):
		return protocol.ErrorCodeInvalidParams
	case errors.Is(err, service.ErrPolicyDenied):
		return protocol.ErrorCodePolicyDenied
	default:
		return protocol.ErrorCodeInternalError
	}
}

// sendError sends an error message to a connection.
func (s *Server) sendError(conn *hub.Connection, requestID, code, message string) {
	errMsg := protocol.ErrorMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeError,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
		},
		Code:    code,
		Message: message,
	}
	s.hub.SendJSONToConnection(conn, errMsg)
}
