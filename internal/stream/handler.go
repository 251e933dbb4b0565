package stream

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"promptscan-backend/internal/sessions"
	"promptscan-backend/internal/shared/server/respond"
	"promptscan-backend/internal/shared/telemetry"
)

const (
	writeTimeout   = 10 * time.Second
	readTimeout    = 60 * time.Second
	pingInterval   = 50 * time.Second
	maxMessageSize = 4096
)

// Handler upgrades HTTP requests into lane event streams.
type Handler struct {
	Hub      *Hub
	Managers map[string]*sessions.Manager
	upgrader websocket.Upgrader
}

// NewHandler constructs a Handler. allowOrigin decides cross-origin upgrades.
func NewHandler(hub *Hub, managers map[string]*sessions.Manager, allowOrigin func(origin string) bool) *Handler {
	return &Handler{
		Hub:      hub,
		Managers: managers,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowOrigin == nil {
					return true
				}
				return allowOrigin(origin)
			},
		},
	}
}

// RegisterRoutes attaches the stream route.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stream", h.serve)
}

func (h *Handler) serve(c *gin.Context) {
	lane := c.DefaultQuery("lane", sessions.LaneManual)
	manager, ok := h.Managers[lane]
	if !ok {
		respond.Error(c, http.StatusBadRequest, "validation_error", "lane must be manual or batch", nil)
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		telemetry.Warn("stream.upgrade_failed", map[string]any{"error": err.Error()})
		return
	}
	ws.SetReadLimit(maxMessageSize)

	conn := h.Hub.NewConnection(ws, lane)
	h.Hub.RegisterWithSnapshot(conn, func() []byte {
		current, ok := manager.Current()
		if !ok {
			return nil
		}
		data, err := json.Marshal(sessions.SnapshotEvent(lane, current))
		if err != nil {
			return nil
		}
		return data
	})

	go h.writePump(conn)
	go h.readPump(conn)
}

// readPump only drains control frames; clients do not send commands.
func (h *Handler) readPump(conn *Connection) {
	defer func() {
		h.Hub.Unregister(conn)
		_ = conn.Conn.Close()
	}()
	_ = conn.Conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		return conn.Conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				telemetry.Debug("stream.read_error", map[string]any{"connection_id": conn.ID, "error": err.Error()})
			}
			return
		}
	}
}

func (h *Handler) writePump(conn *Connection) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-conn.Send:
			_ = conn.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
