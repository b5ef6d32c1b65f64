package gateway

import (
	"log"
	"sync"
)

// Hub tracks the connected chart clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	// OnChange, if set, receives the client count after every change.
	OnChange func(n int)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]bool)}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	log.Printf("[gateway] ws client connected (%d total)", n)
	h.notify(n)
}

// RemoveClient drops c. Unknown clients are ignored.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		log.Printf("[gateway] ws client disconnected (%d left)", n)
		h.notify(n)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll disconnects every client, disposing their charts.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) notify(n int) {
	if h.OnChange != nil {
		h.OnChange(n)
	}
}
