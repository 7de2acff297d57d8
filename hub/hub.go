package hub

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"locshare-relay/domain"
)

type client struct {
	conn        domain.Connection
	connectedAt time.Time
}

// Hub is the connection registry. All methods are safe for concurrent use.
type Hub struct {
	clients map[string]*client
	mu      sync.RWMutex
	newID   func() string
}

type Option func(*Hub)

// WithIDGenerator replaces the uuid generator used for connection ids.
func WithIDGenerator(fn func() string) Option {
	return func(h *Hub) { h.newID = fn }
}

func New(opts ...Option) *Hub {
	h := &Hub{
		clients: make(map[string]*client),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds conn under a fresh id. A connection implementing
// domain.Greeter is greeted before it becomes visible to IsLive and AllExcept.
func (h *Hub) Register(conn domain.Connection) string {
	h.mu.Lock()
	id := h.newID()
	for _, taken := h.clients[id]; taken; _, taken = h.clients[id] {
		id = h.newID()
	}
	if g, ok := conn.(domain.Greeter); ok {
		g.Greet(id)
	}
	h.clients[id] = &client{conn: conn, connectedAt: time.Now()}
	count := len(h.clients)
	h.mu.Unlock()

	slog.Info("client connected", "clientId", id, "clients", count)
	return id
}

func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	c, exists := h.clients[id]
	if exists {
		delete(h.clients, id)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if !exists {
		return
	}
	slog.Info("client disconnected", "clientId", id, "clients", count,
		"connectedFor", time.Since(c.connectedAt).Round(time.Millisecond))
}

func (h *Hub) IsLive(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[id]
	return ok
}

func (h *Hub) AllExcept(id string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.clients))
	for other := range h.clients {
		if other == id {
			continue
		}
		ids = append(ids, other)
	}
	return ids
}

// ConnectedAt reports when a live connection registered.
func (h *Hub) ConnectedAt(id string) (time.Time, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	if !ok {
		return time.Time{}, false
	}
	return c.connectedAt, true
}

// Deliver hands data to the connection's outbound queue. A connection that
// cannot accept the frame is dropped from the registry and closed.
func (h *Hub) Deliver(id string, data []byte) error {
	h.mu.RLock()
	c, exists := h.clients[id]
	h.mu.RUnlock()

	if !exists {
		return domain.ErrNotLive
	}
	if err := c.conn.Send(data); err != nil {
		go func() {
			h.Unregister(id)
			c.conn.Close()
		}()
		return fmt.Errorf("deliver to %s: %w", id, err)
	}
	return nil
}

func (h *Hub) Stats() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for id, c := range clients {
		if err := c.conn.Close(); err != nil {
			slog.Debug("close error", "clientId", id, "error", err)
		}
	}
	slog.Info("all clients closed", "clients", len(clients))
}
