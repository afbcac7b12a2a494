// Package chat is the chat platform the readiness controller talks through.
// Prompts are fanned out to connected clients and control activations are
// routed back to the waiting session by prompt ID.
package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/readyup/internal/domain"
	"github.com/xiaot623/readyup/internal/protocol"
)

const (
	inboxSize        = 64
	maxClosedPrompts = 32
)

var (
	// ErrUnknownPrompt is returned for a prompt ID that was never posted or
	// has been forgotten.
	ErrUnknownPrompt = errors.New("unknown prompt")
	// ErrPromptClosed is returned when a prompt no longer accepts responses.
	ErrPromptClosed = errors.New("prompt is closed")
	// ErrInboxFull is returned when responses arrive faster than the session
	// consumes them.
	ErrInboxFull = errors.New("prompt inbox is full")
)

// Transport delivers frames to connected clients.
type Transport interface {
	BroadcastJSON(v interface{}) error
	SendJSONToParticipant(participantID string, v interface{}) error
}

type prompt struct {
	handle   domain.PromptHandle
	text     string
	controls []domain.Control
	inbox    chan domain.Response
	closed   chan struct{}
}

func (p *prompt) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

// Channel is a single chat channel shared by all connected participants.
type Channel struct {
	transport Transport
	now       func() time.Time

	mu          sync.Mutex
	prompts     map[domain.PromptHandle]*prompt
	closedOrder []domain.PromptHandle
}

// NewChannel creates a channel delivering through transport.
func NewChannel(transport Transport) *Channel {
	return &Channel{
		transport: transport,
		now:       time.Now,
		prompts:   make(map[domain.PromptHandle]*prompt),
	}
}

// PostPrompt publishes a new prompt with its controls.
func (c *Channel) PostPrompt(ctx context.Context, text string, controls []domain.Control) (domain.PromptHandle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p := &prompt{
		handle:   domain.PromptHandle(uuid.New().String()),
		text:     text,
		controls: controls,
		inbox:    make(chan domain.Response, inboxSize),
		closed:   make(chan struct{}),
	}

	c.mu.Lock()
	c.prompts[p.handle] = p
	msg := c.promptMessage(protocol.TypePromptPosted, p)
	c.mu.Unlock()

	if err := c.transport.BroadcastJSON(msg); err != nil {
		return "", err
	}
	return p.handle, nil
}

// EditPrompt replaces the text of an open prompt.
func (c *Channel) EditPrompt(ctx context.Context, h domain.PromptHandle, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	p, ok := c.prompts[h]
	if !ok {
		c.mu.Unlock()
		return ErrUnknownPrompt
	}
	if p.isClosed() {
		c.mu.Unlock()
		return ErrPromptClosed
	}
	p.text = text
	msg := c.promptMessage(protocol.TypePromptEdited, p)
	c.mu.Unlock()

	return c.transport.BroadcastJSON(msg)
}

// ClosePrompt replaces the text of a prompt and removes its controls. Any
// waiter on the prompt is released.
func (c *Channel) ClosePrompt(ctx context.Context, h domain.PromptHandle, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	p, ok := c.prompts[h]
	if !ok {
		c.mu.Unlock()
		return ErrUnknownPrompt
	}
	if p.isClosed() {
		c.mu.Unlock()
		return ErrPromptClosed
	}
	p.text = text
	p.controls = nil
	close(p.closed)
	c.retainClosedLocked(h)
	msg := c.promptMessage(protocol.TypePromptClosed, p)
	c.mu.Unlock()

	return c.transport.BroadcastJSON(msg)
}

// retainClosedLocked keeps a bounded number of closed prompts around so late
// interactions are answered with ErrPromptClosed rather than ErrUnknownPrompt.
func (c *Channel) retainClosedLocked(h domain.PromptHandle) {
	c.closedOrder = append(c.closedOrder, h)
	for len(c.closedOrder) > maxClosedPrompts {
		delete(c.prompts, c.closedOrder[0])
		c.closedOrder = c.closedOrder[1:]
	}
}

// AwaitNextResponse blocks until a control on the prompt is activated, the
// prompt is closed or ctx is done.
func (c *Channel) AwaitNextResponse(ctx context.Context, h domain.PromptHandle) (domain.Response, error) {
	c.mu.Lock()
	p, ok := c.prompts[h]
	c.mu.Unlock()
	if !ok {
		return domain.Response{}, ErrUnknownPrompt
	}
	// Queued responses never win against an expired context.
	if err := ctx.Err(); err != nil {
		return domain.Response{}, err
	}

	select {
	case resp := <-p.inbox:
		return resp, nil
	case <-p.closed:
		return domain.Response{}, ErrPromptClosed
	case <-ctx.Done():
		return domain.Response{}, ctx.Err()
	}
}

// SendEphemeralReply answers the responder only.
func (c *Channel) SendEphemeralReply(ctx context.Context, r domain.Response, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.transport.SendJSONToParticipant(string(r.Participant.ID), protocol.EphemeralMessage{
		BaseMessage: protocol.BaseMessage{
			Type: protocol.TypeEphemeral,
			Ts:   c.now().UnixMilli(),
		},
		InteractionID: r.Origin.InteractionID,
		Text:          text,
	})
}

// PostFinalMessage posts a plain message to the channel.
func (c *Channel) PostFinalMessage(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.transport.BroadcastJSON(protocol.ChatMessage{
		BaseMessage: protocol.BaseMessage{
			Type: protocol.TypeMessage,
			Ts:   c.now().UnixMilli(),
		},
		Text: text,
	})
}

// Dispatch hands a control activation to the session waiting on the prompt.
func (c *Channel) Dispatch(h domain.PromptHandle, resp domain.Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.prompts[h]
	if !ok {
		return ErrUnknownPrompt
	}
	if p.isClosed() {
		return ErrPromptClosed
	}
	select {
	case p.inbox <- resp:
		return nil
	default:
		return ErrInboxFull
	}
}

// OpenPrompts returns the prompts still accepting responses, for clients that
// join after they were posted.
func (c *Channel) OpenPrompts() []protocol.PromptMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []protocol.PromptMessage
	for _, p := range c.prompts {
		if !p.isClosed() {
			out = append(out, c.promptMessage(protocol.TypePromptPosted, p))
		}
	}
	return out
}

func (c *Channel) promptMessage(msgType string, p *prompt) protocol.PromptMessage {
	controls := make([]domain.Control, len(p.controls))
	copy(controls, p.controls)
	return protocol.PromptMessage{
		BaseMessage: protocol.BaseMessage{
			Type: msgType,
			Ts:   c.now().UnixMilli(),
		},
		PromptID: string(p.handle),
		Text:     p.text,
		Controls: controls,
	}
}
