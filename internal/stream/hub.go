// Package stream pushes session events to websocket clients.
package stream

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"promptscan-backend/internal/sessions"
	"promptscan-backend/internal/shared/telemetry"
)

const sendBuffer = 256

// Connection is one websocket client subscribed to a lane.
type Connection struct {
	ID   string
	Lane string
	Conn *websocket.Conn
	Send chan []byte

	snapshot func() []byte
}

type laneMessage struct {
	lane string
	data []byte
}

// Hub fans lane events out to the connections watching that lane.
type Hub struct {
	connections map[string]*Connection
	lanes       map[string]map[string]bool

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan laneMessage
	done       chan struct{}

	mu sync.RWMutex
}

// NewHub creates a new Hub. Call Run to start delivery.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		lanes:       make(map[string]map[string]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan laneMessage, sendBuffer),
		done:        make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			if h.lanes[conn.Lane] == nil {
				h.lanes[conn.Lane] = make(map[string]bool)
			}
			h.lanes[conn.Lane][conn.ID] = true
			h.mu.Unlock()
			if conn.snapshot != nil {
				if data := conn.snapshot(); data != nil {
					conn.Send <- data
				}
			}
			telemetry.Debug("stream.connected", map[string]any{"connection_id": conn.ID, "lane": conn.Lane})

		case conn := <-h.unregister:
			h.remove(conn)

		case msg := <-h.broadcast:
			var slow []*Connection
			h.mu.RLock()
			for connID := range h.lanes[msg.lane] {
				conn := h.connections[connID]
				if conn == nil {
					continue
				}
				select {
				case conn.Send <- msg.data:
				default:
					slow = append(slow, conn)
				}
			}
			h.mu.RUnlock()
			for _, conn := range slow {
				telemetry.Warn("stream.slow_consumer", map[string]any{"connection_id": conn.ID, "lane": conn.Lane})
				h.remove(conn)
			}
		}
	}
}

// NewConnection wraps ws for lane.
func (h *Hub) NewConnection(ws *websocket.Conn, lane string) *Connection {
	return &Connection{
		ID:   uuid.NewString(),
		Lane: lane,
		Conn: ws,
		Send: make(chan []byte, sendBuffer),
	}
}

// Register adds conn to the hub. After Run has stopped the connection is
// closed right away.
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
		close(conn.Send)
	}
}

// RegisterWithSnapshot adds conn and queues snapshot() as its first message.
// snapshot runs on the hub loop, so every event broadcast after it is
// delivered after the snapshot and none falls between the two.
func (h *Hub) RegisterWithSnapshot(conn *Connection, snapshot func() []byte) {
	conn.snapshot = snapshot
	h.Register(conn)
}

// Unregister removes conn and closes its send channel.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Publish queues ev for every connection on its lane. It never blocks the
// caller; events are dropped when the queue is full.
func (h *Hub) Publish(ev sessions.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		telemetry.Error("stream.encode_failed", map[string]any{"error": err.Error()})
		return
	}
	select {
	case h.broadcast <- laneMessage{lane: ev.Lane, data: data}:
	default:
		telemetry.Warn("stream.dropped", map[string]any{"lane": ev.Lane, "type": string(ev.Type)})
	}
}

// ConnectionCount returns the number of registered connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

func (h *Hub) remove(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return
	}
	delete(h.connections, conn.ID)
	if ids := h.lanes[conn.Lane]; ids != nil {
		delete(ids, conn.ID)
		if len(ids) == 0 {
			delete(h.lanes, conn.Lane)
		}
	}
	close(conn.Send)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, conn := range h.connections {
		close(conn.Send)
		delete(h.connections, id)
	}
	h.lanes = make(map[string]map[string]bool)
}
