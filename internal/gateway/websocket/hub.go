// Package websocket streams session logs to connected front-ends. Each
// client picks the sessions it wants; delivery per client is in log order
// and a slow client only loses its own frames.
package websocket

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/agentware/maestro/internal/common/logger"
	"github.com/agentware/maestro/internal/orchestrator/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The gateway sits behind the deployment's own origin policy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub tracks connected clients and hands them session streams.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]bool

	manager *session.Manager
	logger  *logger.Logger
}

// NewHub creates a hub over the session manager.
func NewHub(manager *session.Manager, log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		manager: manager,
		logger:  log.WithFields(zap.String("component", "ws-gateway")),
	}
}

// HandleConnection upgrades the request and runs the client's pumps.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(h, conn, h.logger)
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	go client.writePump()
	go client.readPump()
}

// Unregister drops the client and closes its session streams.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	registered := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()
	if registered {
		client.closeStreams()
		close(client.send)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		h.Unregister(client)
		client.conn.Close()
	}
}
