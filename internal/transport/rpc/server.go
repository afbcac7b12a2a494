// Package rpc exposes the readiness controller to chat bot bridges over JSON-RPC.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/readyup/internal/domain"
	"github.com/xiaot623/readyup/internal/service"
)

// Controller starts and reports readiness sessions.
type Controller interface {
	Start(ctx context.Context, params domain.SessionParams) (*service.Run, error)
	Active() (domain.SessionView, error)
}

// Dispatcher routes control activations to their prompt.
type Dispatcher interface {
	Dispatch(h domain.PromptHandle, resp domain.Response) error
}

// Server exposes readyup RPC endpoints.
type Server struct {
	listener  net.Listener
	rpcServer *rpc.Server
	done      chan struct{}
}

// NewServer creates a new RPC server bound to the controller.
func NewServer(ctrl Controller, prompts Dispatcher) (*Server, error) {
	rpcServer := rpc.NewServer()
	handler := &Handler{controller: ctrl, prompts: prompts}
	if err := rpcServer.RegisterName("ReadyUp", handler); err != nil {
		return nil, fmt.Errorf("register rpc handler: %w", err)
	}

	return &Server{
		rpcServer: rpcServer,
		done:      make(chan struct{}),
	}, nil
}

// Start begins accepting RPC connections on the given address.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts RPC connections on ln until it is closed.
func (s *Server) Serve(ln net.Listener) error {
	s.listener = ln

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				close(s.done)
				return nil
			}
			log.Printf("RPC accept error: %v", err)
			continue
		}

		go s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

// Shutdown stops accepting new RPC connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}

	if err := s.listener.Close(); err != nil {
		return err
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler implements readyup RPC methods.
type Handler struct {
	controller Controller
	prompts    Dispatcher
}

// StartRequest is the start command issued by a bot bridge.
type StartRequest struct {
	EventLabel        string `json:"event_label,omitempty"`
	TimeWindowLabel   string `json:"time_window_label,omitempty"`
	TimeoutSeconds    int    `json:"timeout_seconds,omitempty"`
	ReadyThreshold    int    `json:"ready_threshold,omitempty"`
	NotReadyThreshold int    `json:"not_ready_threshold,omitempty"`
	OrganizerID       string `json:"organizer_id,omitempty"`
	OrganizerName     string `json:"organizer_name,omitempty"`
	OrganizerReady    bool   `json:"organizer_ready,omitempty"`
}

// StartResponse carries the opened session.
type StartResponse struct {
	Session domain.SessionView `json:"session"`
}

// Start opens a session, superseding the open one.
func (h *Handler) Start(req *StartRequest, resp *StartResponse) error {
	if req == nil {
		return errors.New("start request is required")
	}
	if req.OrganizerReady && req.OrganizerID == "" {
		return errors.New("organizer_id is required when organizer_ready is set")
	}

	timeout, err := domain.TimeoutFromSeconds(req.TimeoutSeconds)
	if err != nil {
		return err
	}

	params := domain.SessionParams{
		EventLabel:        req.EventLabel,
		TimeWindowLabel:   req.TimeWindowLabel,
		ReadyThreshold:    req.ReadyThreshold,
		NotReadyThreshold: req.NotReadyThreshold,
		Timeout:           timeout,
		OrganizerReady:    req.OrganizerReady,
	}
	if req.OrganizerID != "" {
		params.Organizer = domain.NewParticipant(req.OrganizerID, req.OrganizerName)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	run, err := h.controller.Start(ctx, params)
	if err != nil {
		return err
	}
	if resp != nil {
		resp.Session = run.View()
	}
	return nil
}

// RespondRequest is a control activation relayed by a bot bridge.
type RespondRequest struct {
	PromptID      string `json:"prompt_id"`
	CustomID      string `json:"custom_id"`
	InteractionID string `json:"interaction_id,omitempty"`
	UserID        string `json:"user_id"`
	DisplayName   string `json:"display_name,omitempty"`
}

// RespondResponse acknowledges a relayed activation.
type RespondResponse struct {
	OK            bool   `json:"ok"`
	InteractionID string `json:"interaction_id"`
}

// Respond forwards an activation to the prompt it was made on.
func (h *Handler) Respond(req *RespondRequest, resp *RespondResponse) error {
	if req == nil {
		return errors.New("respond request is required")
	}
	if req.PromptID == "" {
		return errors.New("prompt_id is required")
	}
	if req.UserID == "" {
		return errors.New("user_id is required")
	}

	interactionID := req.InteractionID
	if interactionID == "" {
		interactionID = uuid.New().String()
	}
	err := h.prompts.Dispatch(domain.PromptHandle(req.PromptID), domain.Response{
		Participant: domain.NewParticipant(req.UserID, req.DisplayName),
		Token:       req.CustomID,
		Origin: domain.Origin{
			Kind:          domain.OriginComponent,
			InteractionID: interactionID,
		},
	})
	if err != nil {
		return err
	}

	if resp != nil {
		resp.OK = true
		resp.InteractionID = interactionID
	}
	return nil
}

// ActiveRequest is empty; net/rpc requires an argument.
type ActiveRequest struct{}

// ActiveResponse carries the open session, if any.
type ActiveResponse struct {
	Active  bool               `json:"active"`
	Session domain.SessionView `json:"session"`
}

// Active reports the open session.
func (h *Handler) Active(req *ActiveRequest, resp *ActiveResponse) error {
	view, err := h.controller.Active()
	if errors.Is(err, service.ErrNoActiveSession) {
		return nil
	}
	if err != nil {
		return err
	}
	resp.Active = true
	resp.Session = view
	return nil
}
