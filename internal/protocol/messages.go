// Package protocol defines the WebSocket message protocol between chat clients and readyup.
package protocol

import "github.com/xiaot623/readyup/internal/domain"

// Message types from client to server
const (
	TypeHello        = "hello"
	TypeInteraction  = "interaction"
	TypeStartReadyUp = "start_readyup"
)

// Message types from server to client
const (
	TypeHelloAck       = "hello_ack"
	TypePromptPosted   = "prompt_posted"
	TypePromptEdited   = "prompt_edited"
	TypePromptClosed   = "prompt_closed"
	TypeMessage        = "message"
	TypeEphemeral      = "ephemeral"
	TypeReadyUpStarted = "readyup_started"
	TypeError          = "error"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
}

// HelloMessage is sent by client to identify the participant behind the connection.
type HelloMessage struct {
	BaseMessage
	UserID      string            `json:"user_id"`
	DisplayName string            `json:"display_name,omitempty"`
	APIKey      string            `json:"api_key,omitempty"`
	ClientMeta  map[string]string `json:"client_meta,omitempty"`
}

// HelloAckMessage is sent by server after successful hello.
type HelloAckMessage struct {
	BaseMessage
	ParticipantID string `json:"participant_id"`
}

// InteractionMessage is sent by client when a control is activated.
type InteractionMessage struct {
	BaseMessage
	PromptID      string `json:"prompt_id"`
	CustomID      string `json:"custom_id"`
	InteractionID string `json:"interaction_id,omitempty"`
}

// StartReadyUpMessage is the organizer's start command.
type StartReadyUpMessage struct {
	BaseMessage
	EventLabel        string `json:"event_label,omitempty"`
	TimeWindowLabel   string `json:"time_window_label,omitempty"`
	TimeoutSeconds    int    `json:"timeout_seconds,omitempty"`
	ReadyThreshold    int    `json:"ready_threshold,omitempty"`
	NotReadyThreshold int    `json:"not_ready_threshold,omitempty"`
	OrganizerReady    bool   `json:"organizer_ready,omitempty"`
}

// PromptMessage carries a prompt as posted, edited or closed. Closed prompts
// have no controls.
type PromptMessage struct {
	BaseMessage
	PromptID string           `json:"prompt_id"`
	Text     string           `json:"text"`
	Controls []domain.Control `json:"controls"`
}

// ChatMessage is a plain channel message.
type ChatMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// EphemeralMessage is visible only to the participant it answers.
type EphemeralMessage struct {
	BaseMessage
	InteractionID string `json:"interaction_id,omitempty"`
	Text          string `json:"text"`
}

// ReadyUpStartedMessage acknowledges a start command.
type ReadyUpStartedMessage struct {
	BaseMessage
	Session domain.SessionView `json:"session"`
}

// ErrorMessage is sent by server when an error occurs.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage      = "invalid_message"
	ErrorCodeUnauthorized        = "unauthorized"
	ErrorCodeParticipantRequired = "participant_required"
	ErrorCodePromptClosed        = "prompt_closed"
	ErrorCodeInvalidParams       = "invalid_params"
	ErrorCodePolicyDenied        = "policy_denied"
	ErrorCodeInternalError       = "internal_error"
)
