package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xiaot623/readyup/internal/domain"
	"github.com/xiaot623/readyup/internal/protocol"
)

// Client represents a WebSocket client.
type Client struct {
	conn          *websocket.Conn
	participantID string
	done          chan struct{}

	mu     sync.Mutex
	prompt *protocol.PromptMessage
}

// NewClient creates a new client and connects to the server.
func NewClient(addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &Client{
		conn: conn,
		done: make(chan struct{}),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	close(c.done)
	return c.conn.Close()
}

// SendHello sends a hello message and waits for hello_ack.
func (c *Client) SendHello(userID, displayName, apiKey string) error {
	if userID == "" {
		return fmt.Errorf("--user is required")
	}
	msg := protocol.HelloMessage{
		BaseMessage: protocol.BaseMessage{
			Type: protocol.TypeHello,
			Ts:   time.Now().UnixMilli(),
		},
		UserID:      userID,
		DisplayName: displayName,
		APIKey:      apiKey,
		ClientMeta: map[string]string{
			"client": "readyup-cli",
		},
	}

	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read hello_ack: %w", err)
	}

	var ack protocol.HelloAckMessage
	if err := json.Unmarshal(data, &ack); err != nil {
		return fmt.Errorf("unmarshal hello_ack: %w", err)
	}

	if ack.Type == protocol.TypeError {
		var errMsg protocol.ErrorMessage
		json.Unmarshal(data, &errMsg)
		return fmt.Errorf("hello failed: %s - %s", errMsg.Code, errMsg.Message)
	}

	if ack.Type != protocol.TypeHelloAck {
		return fmt.Errorf("expected hello_ack, got: %s", ack.Type)
	}

	c.participantID = ack.ParticipantID
	return nil
}

// SendStart sends a start_readyup command.
func (c *Client) SendStart(msg protocol.StartReadyUpMessage) error {
	msg.Type = protocol.TypeStartReadyUp
	msg.Ts = time.Now().UnixMilli()
	if msg.RequestID == "" {
		msg.RequestID = fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return c.conn.WriteJSON(msg)
}

// Answer activates the control of the current prompt matching action.
func (c *Client) Answer(action domain.Action) error {
	c.mu.Lock()
	prompt := c.prompt
	c.mu.Unlock()
	if prompt == nil {
		return fmt.Errorf("no open prompt")
	}

	token, ok := controlFor(prompt.Controls, action)
	if !ok {
		return fmt.Errorf("prompt %s has no %s control", prompt.PromptID, action)
	}

	return c.conn.WriteJSON(protocol.InteractionMessage{
		BaseMessage: protocol.BaseMessage{
			Type: protocol.TypeInteraction,
			Ts:   time.Now().UnixMilli(),
		},
		PromptID:      prompt.PromptID,
		CustomID:      token,
		InteractionID: fmt.Sprintf("cli_%d", time.Now().UnixNano()),
	})
}

func controlFor(controls []domain.Control, action domain.Action) (string, bool) {
	for _, ctl := range controls {
		if domain.Classify(ctl.Token) == action {
			return ctl.Token, true
		}
	}
	return "", false
}

// ReadMessages prints frames from the server until the connection closes.
// It calls stop, when set, on each frame and returns once stop reports true.
func (c *Client) ReadMessages(stop func(base protocol.BaseMessage, data []byte) bool) error {
	for {
		select {
		case <-c.done:
			return nil
		default:
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}

		var base protocol.BaseMessage
		if err := json.Unmarshal(data, &base); err != nil {
			fmt.Printf("unreadable frame: %v\n", err)
			continue
		}
		c.track(base.Type, data)
		if line := render(base.Type, data); line != "" {
			fmt.Println(line)
		}
		if stop != nil && stop(base, data) {
			return nil
		}
	}
}

// track remembers the prompt that answers go to.
func (c *Client) track(msgType string, data []byte) {
	switch msgType {
	case protocol.TypePromptPosted, protocol.TypePromptEdited, protocol.TypePromptClosed:
	default:
		return
	}
	var p protocol.PromptMessage
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case msgType == protocol.TypePromptPosted:
		c.prompt = &p
	case c.prompt != nil && c.prompt.PromptID == p.PromptID:
		if msgType == protocol.TypePromptClosed {
			c.prompt = nil
		} else {
			p.Controls = c.prompt.Controls
			c.prompt = &p
		}
	}
}

// render formats a frame for the terminal. Frames with nothing to show
// render as an empty string.
func render(msgType string, data []byte) string {
	switch msgType {
	case protocol.TypePromptPosted, protocol.TypePromptEdited, protocol.TypePromptClosed:
		var p protocol.PromptMessage
		if err := json.Unmarshal(data, &p); err != nil {
			return ""
		}
		var labels []string
		for _, ctl := range p.Controls {
			labels = append(labels, "["+ctl.Label+"]")
		}
		out := fmt.Sprintf("--- %s ---\n%s", strings.TrimPrefix(msgType, "prompt_"), p.Text)
		if len(labels) > 0 {
			out += "\n" + strings.Join(labels, " ") + "  (r = ready, n = not ready)"
		}
		return out
	case protocol.TypeMessage:
		var m protocol.ChatMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return ""
		}
		return ">>> " + m.Text
	case protocol.TypeEphemeral:
		var m protocol.EphemeralMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return ""
		}
		return "(only you) " + m.Text
	case protocol.TypeReadyUpStarted:
		var m protocol.ReadyUpStartedMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return ""
		}
		return fmt.Sprintf("readyup %s started (ready %d / not ready %d, %ds)",
			m.Session.SessionID, m.Session.ReadyThreshold, m.Session.NotReadyThreshold, m.Session.TimeoutMs/1000)
	case protocol.TypeError:
		var m protocol.ErrorMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return ""
		}
		return fmt.Sprintf("error: %s - %s", m.Code, m.Message)
	default:
		return ""
	}
}
