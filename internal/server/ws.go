package server

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub broadcasts emitted transcript fragments to connected websocket
// clients. It implements the pipeline's FragmentSink interface, so every
// fragment reaches live listeners the moment it is emitted.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	clients map[*websocket.Conn]bool
	mu      sync.Mutex
}

// NewHub creates an empty websocket hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Monitoring surface, same-origin policy is not enforced
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
	}
}

// ServeWS upgrades the request and registers the client for the live feed
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed",
			slog.String("remote", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("Websocket client connected",
		slog.String("remote", conn.RemoteAddr().String()),
		slog.Int("clients", count),
	)

	// Reader loop exists only to observe the close handshake
	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// WriteFragment broadcasts one emitted fragment to all connected clients.
// Clients that fail to receive are dropped.
func (h *Hub) WriteFragment(text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
			h.logger.Debug("Dropping websocket client",
				slog.String("remote", conn.RemoteAddr().String()),
				slog.String("error", err.Error()),
			)
			conn.Close()
			delete(h.clients, conn)
		}
	}

	return nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[conn] {
		conn.Close()
		delete(h.clients, conn)
	}
}
