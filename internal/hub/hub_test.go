package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub()
	done := make(chan struct{})
	go h.Run(done)
	t.Cleanup(func() { close(done) })
	return h
}

func receive(t *testing.T, conn *Connection) map[string]string {
	t.Helper()
	select {
	case data := <-conn.Send:
		var out map[string]string
		require.NoError(t, json.Unmarshal(data, &out))
		return out
	case <-time.After(time.Second):
		t.Fatalf("connection %s received nothing", conn.ID)
		return nil
	}
}

func assertSilent(t *testing.T, conn *Connection) {
	t.Helper()
	select {
	case data := <-conn.Send:
		t.Fatalf("unexpected frame on %s: %s", conn.ID, data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastReachesOnlyBoundConnections(t *testing.T) {
	h := startHub(t)
	bound := h.NewConnection(nil)
	anonymous := h.NewConnection(nil)
	h.Register(bound)
	h.Register(anonymous)
	h.BindParticipant(bound, "u1", "Alice")

	require.NoError(t, h.BroadcastJSON(map[string]string{"type": "prompt_posted"}))

	assert.Equal(t, "prompt_posted", receive(t, bound)["type"])
	assertSilent(t, anonymous)
}

func TestSendToParticipantTargetsAllItsConnections(t *testing.T) {
	h := startHub(t)
	a1 := h.NewConnection(nil)
	a2 := h.NewConnection(nil)
	b := h.NewConnection(nil)
	for _, c := range []*Connection{a1, a2, b} {
		h.Register(c)
	}
	h.BindParticipant(a1, "a", "A")
	h.BindParticipant(a2, "a", "A")
	h.BindParticipant(b, "b", "B")

	require.NoError(t, h.SendJSONToParticipant("a", map[string]string{"type": "ephemeral"}))

	assert.Equal(t, "ephemeral", receive(t, a1)["type"])
	assert.Equal(t, "ephemeral", receive(t, a2)["type"])
	assertSilent(t, b)
	assert.True(t, h.IsConnected("a"))
	assert.Equal(t, 2, h.GetParticipantCount())
}

func TestRebindMovesConnection(t *testing.T) {
	h := startHub(t)
	c := h.NewConnection(nil)
	h.Register(c)
	h.BindParticipant(c, "old", "Old")
	h.BindParticipant(c, "new", "New")

	assert.False(t, h.IsConnected("old"))
	assert.True(t, h.IsConnected("new"))
	assert.Equal(t, "New", c.DisplayName)
}

func TestUnregisterClosesSendChannel(t *testing.T) {
	h := startHub(t)
	c := h.NewConnection(nil)
	h.Register(c)
	h.BindParticipant(c, "u1", "U")
	h.Unregister(c)
	h.Unregister(c)

	assert.Equal(t, 0, h.GetConnectionCount())
	_, ok := <-c.Send
	assert.False(t, ok)
	assert.False(t, h.IsConnected("u1"))
	assert.ErrorIs(t, h.SendToConnection(c, []byte("x")), ErrConnectionClosed)
}

func TestSendToConnectionBufferFull(t *testing.T) {
	h := NewHub()
	c := h.NewConnection(nil)
	h.Register(c)
	for i := 0; i < cap(c.Send); i++ {
		require.NoError(t, h.SendToConnection(c, []byte("x")))
	}
	assert.ErrorIs(t, h.SendToConnection(c, []byte("x")), ErrBufferFull)
}
