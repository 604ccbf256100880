package control

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/beaconsentry/engine/internal/domain"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// notificationMessage is the wire shape pushed to WebSocket subscribers
// for each violation materialized by component H.
type notificationMessage struct {
	MonitorType string `json:"monitor_type"`
	MAC         string `json:"mac_address"`
	UUID        string `json:"uuid"`
	Timestamp   string `json:"violation_timestamp"`
}

// Hub is the live notification broadcast hub of component K, grounded on
// the teacher's WSManager (internal/adapters/web/websocket) but narrowed
// to one message type instead of graph/log/alert multiplexing.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	log     *slog.Logger
}

// NewHub constructs an empty Hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{clients: make(map[*websocket.Conn]struct{}), log: log}
}

// HandleWebSocket upgrades the connection and registers it for broadcast
// until the client disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err.Error())
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	go func() {
		defer conn.Close()
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast pushes a notification to every connected client.
func (h *Hub) Broadcast(n domain.Notification) {
	msg := notificationMessage{
		MonitorType: n.MonitorType.String(),
		MAC:         n.MAC,
		UUID:        n.UUID,
		Timestamp:   n.ViolationTS.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Warn("failed to marshal notification for broadcast", "error", err.Error())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// ClientCount reports the number of currently connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
