package realtime

import (
	"log"
	"sync"
)

// Hub is the registry of connections attached to this instance, plus their
// room subscriptions. It only knows about local connections; anything that
// has to reach other instances goes through the ClusterFanout.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Client
	rooms map[string]map[string]*Client
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]*Client),
		rooms: make(map[string]map[string]*Client),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.conns[c.id] = c
	total := len(h.conns)
	h.mu.Unlock()

	log.Printf("connection %s registered (%d local)", c.id, total)
}

// Unregister removes the connection from the registry and every room it
// joined, then closes its outbound channel so the write pump drains and exits.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.conns[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c.id)
	for tag, members := range h.rooms {
		delete(members, c.id)
		if len(members) == 0 {
			delete(h.rooms, tag)
		}
	}
	c.closed = true
	total := len(h.conns)
	h.mu.Unlock()

	close(c.send)
	log.Printf("connection %s unregistered (%d local)", c.id, total)
}

func (h *Hub) JoinRoom(c *Client, tag string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[tag]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[tag] = members
	}
	members[c.id] = c
}

// SendToConnection delivers to a single local connection. Reports false when
// the connection is not attached to this instance.
func (h *Hub) SendToConnection(connectionID string, env Envelope) bool {
	h.mu.RLock()
	c, ok := h.conns[connectionID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	h.deliver(c, env)
	return true
}

// Broadcast delivers to every local connection except the excluded one.
func (h *Hub) Broadcast(env Envelope, excludeConnectionID string) {
	for _, c := range h.snapshot() {
		if c.id == excludeConnectionID {
			continue
		}
		h.deliver(c, env)
	}
}

// SendToRoom delivers to every local connection subscribed to the tag.
func (h *Hub) SendToRoom(tag string, env Envelope) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[tag]))
	for _, c := range h.rooms[tag] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		h.deliver(c, env)
	}
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.conns)
}

// CloseAll closes every local connection; used during shutdown.
func (h *Hub) CloseAll() {
	for _, c := range h.snapshot() {
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

func (h *Hub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := make([]*Client, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	return conns
}

// deliver hands an envelope to the client's write pump without blocking the
// caller. A full buffer means a stalled client; the event is dropped since
// everything pushed this way is best-effort. The read lock is held across the
// send so Unregister cannot close the channel mid-send.
func (h *Hub) deliver(c *Client, env Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if c.closed {
		return
	}

	select {
	case c.send <- env:
	default:
		log.Printf("connection %s send buffer full, dropping %s", c.id, env.Event)
	}
}
