package websocket

import (
	"log"
	"sync"
)

// Hub tracks every connected client by player id. Room membership lives
// elsewhere; the hub only answers "deliver this to that player".
type Hub struct {
	mu      sync.Mutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.ID] = c
	log.Printf("Client %s connected", c.ID)
}

// Remove drops the client and closes its send channel, ending the
// write pump.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, exists := h.clients[id]
	if !exists {
		return
	}
	delete(h.clients, id)
	close(c.Send)
	log.Printf("Client %s disconnected", id)
}

// SendToClient queues a message for one player. Returns false if the
// player is not connected or their send buffer is full.
func (h *Hub) SendToClient(id string, message []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, exists := h.clients[id]
	if !exists {
		return false
	}

	select {
	case c.Send <- message:
		return true
	default:
		return false
	}
}

// Count reports the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
