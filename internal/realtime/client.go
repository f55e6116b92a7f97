package realtime

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"roomsync/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 54 * time.Second
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

// Client is one WebSocket connection. Identity is bound at most once, during
// the handshake, and never changes afterwards; an anonymous connection keeps
// a nil identity for its whole life.
type Client struct {
	id          string
	identity    *models.Identity
	conn        *websocket.Conn
	send        chan Envelope
	connectedAt time.Time
	closed      bool // guarded by the hub's mutex
}

func newClient(id string, identity *models.Identity, conn *websocket.Conn) *Client {
	if conn != nil {
		conn.SetReadLimit(maxMessageSize)
	}
	return &Client{
		id:          id,
		identity:    identity,
		conn:        conn,
		send:        make(chan Envelope, sendBufferSize),
		connectedAt: time.Now(),
	}
}

func (c *Client) userID() string {
	if c.identity == nil {
		return ""
	}
	return c.identity.UserID
}

// readPump decodes inbound envelopes and hands them to the server's
// dispatcher. It owns the read side of the connection; when it returns the
// server tears the connection down.
func (c *Client) readPump(s *Server) {
	defer s.handleDisconnect(c)

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("connection %s read error: %v", c.id, err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("connection %s sent invalid envelope: %v", c.id, err)
			continue
		}

		s.dispatch(c, env)
	}
}

// writePump serializes outbound envelopes and keeps the connection alive with
// pings. The ticker is stopped on exit; it is the one timer tied to the
// connection's lifetime.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				log.Printf("connection %s write error: %v", c.id, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ack replies to a request envelope. Requests without an ack id get no reply.
func (c *Client) ack(h *Hub, ackID string, payload any) {
	if ackID == "" {
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("connection %s failed to marshal ack: %v", c.id, err)
		return
	}
	h.deliver(c, Envelope{Event: EventAck, AckID: ackID, Data: raw})
}
