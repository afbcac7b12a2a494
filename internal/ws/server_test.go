package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/readyup/internal/chat"
	"github.com/xiaot623/readyup/internal/config"
	"github.com/xiaot623/readyup/internal/domain"
	"github.com/xiaot623/readyup/internal/hub"
	"github.com/xiaot623/readyup/internal/policy"
	"github.com/xiaot623/readyup/internal/protocol"
	"github.com/xiaot623/readyup/internal/service"
)

type frame struct {
	protocol.BaseMessage
	PromptID      string             `json:"prompt_id"`
	Text          string             `json:"text"`
	Controls      []domain.Control   `json:"controls"`
	Code          string             `json:"code"`
	ParticipantID string             `json:"participant_id"`
	Session       domain.SessionView `json:"session"`
}

func newTestGateway(t *testing.T) string {
	t.Helper()
	cfg := &config.Config{
		APIKey:                   "secret",
		DefaultTimeout:           time.Minute,
		DefaultReadyThreshold:    3,
		DefaultNotReadyThreshold: 1,
		MaxTimeout:               time.Hour,
		MaxThreshold:             50,
		PingInterval:             time.Minute,
		WriteTimeout:             time.Second,
		ReadTimeout:              time.Minute,
		MaxMessageSize:           65536,
	}

	h := hub.NewHub()
	done := make(chan struct{})
	go h.Run(done)

	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)

	channel := chat.NewChannel(h)
	ctrl := service.New(channel, nil, cfg, engine)

	e := echo.New()
	NewServer(cfg, h, channel, ctrl).RegisterRoutes(e)
	srv := httptest.NewServer(e)

	t.Cleanup(func() {
		ctrl.Shutdown(context.Background())
		srv.Close()
		close(done)
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

// readUntil skips frames until one of type msgType arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", msgType, err)
		}
		var f frame
		require.NoError(t, json.Unmarshal(data, &f))
		if f.Type == msgType {
			return f
		}
	}
}

func hello(t *testing.T, conn *websocket.Conn, userID, name string) {
	t.Helper()
	send(t, conn, protocol.HelloMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.TypeHello},
		UserID:      userID,
		DisplayName: name,
		APIKey:      "secret",
	})
	ack := readUntil(t, conn, protocol.TypeHelloAck)
	assert.Equal(t, userID, ack.ParticipantID)
}

func TestHelloRejectsBadAPIKey(t *testing.T) {
	conn := dial(t, newTestGateway(t))

	send(t, conn, protocol.HelloMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.TypeHello},
		UserID:      "u1",
		APIKey:      "wrong",
	})

	errFrame := readUntil(t, conn, protocol.TypeError)
	assert.Equal(t, protocol.ErrorCodeUnauthorized, errFrame.Code)
}

func TestInteractionRequiresHello(t *testing.T) {
	conn := dial(t, newTestGateway(t))

	send(t, conn, protocol.InteractionMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.TypeInteraction, RequestID: "r1"},
		PromptID:    "p",
		CustomID:    "ready$x",
	})

	errFrame := readUntil(t, conn, protocol.TypeError)
	assert.Equal(t, protocol.ErrorCodeParticipantRequired, errFrame.Code)
	assert.Equal(t, "r1", errFrame.RequestID)
}

func TestUnknownMessageType(t *testing.T) {
	conn := dial(t, newTestGateway(t))

	send(t, conn, protocol.BaseMessage{Type: "bogus"})

	errFrame := readUntil(t, conn, protocol.TypeError)
	assert.Equal(t, protocol.ErrorCodeInvalidMessage, errFrame.Code)
}

func TestReadyUpOverWebSocket(t *testing.T) {
	url := newTestGateway(t)
	organizer := dial(t, url)
	member := dial(t, url)
	hello(t, organizer, "org", "Organizer")
	hello(t, member, "m1", "Member")

	send(t, organizer, protocol.StartReadyUpMessage{
		BaseMessage:       protocol.BaseMessage{Type: protocol.TypeStartReadyUp, RequestID: "start-1"},
		EventLabel:        "raid",
		ReadyThreshold:    2,
		NotReadyThreshold: 1,
		OrganizerReady:    true,
	})

	started := readUntil(t, organizer, protocol.TypeReadyUpStarted)
	assert.Equal(t, "start-1", started.RequestID)
	assert.Equal(t, "raid", started.Session.EventLabel)

	posted := readUntil(t, member, protocol.TypePromptPosted)
	require.Len(t, posted.Controls, 2)
	assert.True(t, strings.HasPrefix(posted.Text, "are you ready for raid?"))

	send(t, member, protocol.InteractionMessage{
		BaseMessage:   protocol.BaseMessage{Type: protocol.TypeInteraction},
		PromptID:      posted.PromptID,
		CustomID:      posted.Controls[0].Token,
		InteractionID: "click-1",
	})

	reply := readUntil(t, member, protocol.TypeEphemeral)
	assert.Equal(t, "Status: **Organizer** and **Member** are ready", reply.Text)

	closed := readUntil(t, member, protocol.TypePromptClosed)
	assert.Equal(t, posted.PromptID, closed.PromptID)
	assert.Empty(t, closed.Controls)

	final := readUntil(t, member, protocol.TypeMessage)
	assert.Equal(t, "**<@org>** and **<@m1>**\neveryone is ready!", final.Text)
}

func TestStartPolicyDenied(t *testing.T) {
	conn := dial(t, newTestGateway(t))
	hello(t, conn, "org", "Organizer")

	send(t, conn, protocol.StartReadyUpMessage{
		BaseMessage:    protocol.BaseMessage{Type: protocol.TypeStartReadyUp},
		TimeoutSeconds: 7200,
	})

	errFrame := readUntil(t, conn, protocol.TypeError)
	assert.Equal(t, protocol.ErrorCodePolicyDenied, errFrame.Code)
}

func TestStartRejectsOverflowingTimeout(t *testing.T) {
	conn := dial(t, newTestGateway(t))
	hello(t, conn, "org", "Organizer")

	send(t, conn, protocol.StartReadyUpMessage{
		BaseMessage:    protocol.BaseMessage{Type: protocol.TypeStartReadyUp, RequestID: "big"},
		TimeoutSeconds: 18446744074,
	})

	errFrame := readUntil(t, conn, protocol.TypeError)
	assert.Equal(t, protocol.ErrorCodeInvalidParams, errFrame.Code)
	assert.Equal(t, "big", errFrame.RequestID)
}

func TestStartErrorCode(t *testing.T) {
	assert.Equal(t, protocol.ErrorCodeInvalidParams, StartErrorCode(domain.ErrInvalidThreshold))
	assert.Equal(t, protocol.ErrorCodeInvalidParams, StartErrorCode(domain.ErrInvalidTimeout))
	assert.Equal(t, protocol.ErrorCodePolicyDenied, StartErrorCode(service.ErrPolicyDenied))
	assert.Equal(t, protocol.ErrorCodeInternalError, StartErrorCode(assert.AnError))
}
