package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vitos/trade_signal_bot/internal/domain"
	"go.uber.org/zap"
)

const writeWait = 5 * time.Second

// stateUpdate is the websocket frame pushed after every orchestration cycle.
type stateUpdate struct {
	Type string          `json:"type"`
	Data domain.Snapshot `json:"data"`
}

// client wraps a connection with a write lock: the initial snapshot send and
// the per-tick publishes run on different goroutines, and gorilla/websocket
// allows only one concurrent writer per connection.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(update stateUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(update)
}

// Hub fans the per-tick snapshot out to connected dashboard clients. It
// implements domain.Broadcaster. A client that cannot keep up is dropped
// rather than allowed to stall the others.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	// snapshotFn supplies the current state for a freshly connected client
	// so it does not have to wait for the next tick.
	snapshotFn func() domain.Snapshot

	mu      sync.Mutex
	clients map[*client]bool
}

func NewHub(snapshotFn func() domain.Snapshot, logger *zap.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		snapshotFn: snapshotFn,
		logger:     logger,
		clients:    make(map[*client]bool),
	}
}

var _ domain.Broadcaster = (*Hub)(nil)

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn}

	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("dashboard client connected", zap.Int("clients", count))

	if h.snapshotFn != nil {
		h.send(c, stateUpdate{Type: "STATE_UPDATE", Data: h.snapshotFn()})
	}

	// Reader loop only detects disconnects; clients send nothing.
	go func() {
		defer h.drop(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Publish pushes the snapshot to every connected client. It never blocks the
// tick loop on a slow client beyond the write deadline.
func (h *Hub) Publish(snapshot domain.Snapshot) {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	update := stateUpdate{Type: "STATE_UPDATE", Data: snapshot}
	for _, c := range clients {
		h.send(c, update)
	}
}

func (h *Hub) send(c *client, update stateUpdate) {
	if err := c.write(update); err != nil {
		h.logger.Warn("websocket write failed, dropping client", zap.Error(err))
		h.drop(c)
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.conn.Close()
	}
	h.mu.Unlock()
}

// ClientCount reports the number of connected dashboard clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
