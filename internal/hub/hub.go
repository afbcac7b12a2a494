// Package hub provides connection management for WebSocket chat clients.
package hub

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Connection represents a single WebSocket connection.
type Connection struct {
	ID            string
	ParticipantID string
	DisplayName   string
	Conn          *websocket.Conn
	Send          chan []byte
	hub           *Hub
	mu            sync.Mutex
}

// Hub manages all WebSocket connections.
type Hub struct {
	// Connections indexed by connection ID
	connections map[string]*Connection

	// Participants maps participant_id to set of connection IDs
	participants map[string]map[string]bool

	// Outbound frames; an empty ParticipantID fans out to every bound connection
	outbound chan *Envelope

	mu sync.RWMutex
}

// Envelope addresses a frame to one participant or to the whole channel.
type Envelope struct {
	ParticipantID string
	Data          []byte
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections:  make(map[string]*Connection),
		participants: make(map[string]map[string]bool),
		outbound:     make(chan *Envelope, 256),
	}
}

// Run starts the hub's delivery loop. It returns when done is closed.
func (h *Hub) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case env := <-h.outbound:
			h.deliver(env)
		}
	}
}

func (h *Hub) deliver(env *Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var targets []*Connection
	if env.ParticipantID == "" {
		for _, conn := range h.connections {
			if conn.ParticipantID != "" {
				targets = append(targets, conn)
			}
		}
	} else {
		for connID := range h.participants[env.ParticipantID] {
			if conn, ok := h.connections[connID]; ok {
				targets = append(targets, conn)
			}
		}
	}

	for _, conn := range targets {
		select {
		case conn.Send <- env.Data:
		default:
			// Buffer full, close the connection
			log.Printf("Connection %s buffer full, closing", conn.ID)
			go h.Unregister(conn)
		}
	}
}

// NewConnection creates a new connection. Call Register to start routing to it.
func (h *Hub) NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ID:   uuid.New().String(),
		Conn: ws,
		Send: make(chan []byte, 256),
		hub:  h,
	}
}

// Register registers a connection with the hub.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	h.connections[conn.ID] = conn
	h.mu.Unlock()
	log.Printf("Connection registered: %s", conn.ID)
}

// Unregister removes a connection and closes its send channel. It is safe to
// call more than once.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return
	}
	delete(h.connections, conn.ID)
	h.unbindLocked(conn)
	close(conn.Send)
	log.Printf("Connection unregistered: %s", conn.ID)
}

// BindParticipant binds a connection to a participant identity.
func (h *Hub) BindParticipant(conn *Connection, participantID, displayName string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.unbindLocked(conn)

	conn.ParticipantID = participantID
	conn.DisplayName = displayName
	if h.participants[participantID] == nil {
		h.participants[participantID] = make(map[string]bool)
	}
	h.participants[participantID][conn.ID] = true
}

func (h *Hub) unbindLocked(conn *Connection) {
	if conn.ParticipantID == "" || h.participants[conn.ParticipantID] == nil {
		return
	}
	delete(h.participants[conn.ParticipantID], conn.ID)
	if len(h.participants[conn.ParticipantID]) == 0 {
		delete(h.participants, conn.ParticipantID)
	}
}

// BroadcastJSON sends a JSON message to every connection bound to a participant.
func (h *Hub) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.outbound <- &Envelope{Data: data}
	return nil
}

// SendJSONToParticipant sends a JSON message to all connections of one participant.
func (h *Hub) SendJSONToParticipant(participantID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.outbound <- &Envelope{ParticipantID: participantID, Data: data}
	return nil
}

// SendToConnection sends a message to a specific connection.
func (h *Hub) SendToConnection(conn *Connection, data []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return ErrConnectionClosed
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// SendJSONToConnection sends a JSON message to a specific connection.
func (h *Hub) SendJSONToConnection(conn *Connection, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.SendToConnection(conn, data)
}

// GetConnectionCount returns the number of active connections.
func (h *Hub) GetConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// GetParticipantCount returns the number of participants with a live connection.
func (h *Hub) GetParticipantCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.participants)
}

// IsConnected reports whether a participant has any active connections.
func (h *Hub) IsConnected(participantID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	connIDs, ok := h.participants[participantID]
	return ok && len(connIDs) > 0
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// ErrConnectionClosed is returned when sending to an unregistered connection.
var ErrConnectionClosed = errors.New("connection closed")

// ErrBufferFull is returned when the send buffer is full.
var ErrBufferFull = &BufferFullError{}

// BufferFullError represents a buffer full error.
type BufferFullError struct{}

func (e *BufferFullError) Error() string {
	return "send buffer full"
}
