package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"roomsync/internal/models"
)

// TokenVerifier checks a bearer token and returns the identity it encodes.
type TokenVerifier interface {
	VerifyToken(token string) (*models.Identity, error)
}

// Server is the connection gateway: it upgrades HTTP requests to WebSocket
// connections, binds an identity during the handshake, and dispatches inbound
// events to the presence coordinator and messaging router.
type Server struct {
	hub       *Hub
	presence  *PresenceCoordinator
	messaging *MessagingRouter
	verifier  TokenVerifier
	upgrader  websocket.Upgrader
}

func NewServer(hub *Hub, presence *PresenceCoordinator, messaging *MessagingRouter, verifier TokenVerifier, corsOrigin string) *Server {
	return &Server{
		hub:       hub,
		presence:  presence,
		messaging: messaging,
		verifier:  verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if corsOrigin == "*" {
					return true
				}
				return r.Header.Get("Origin") == corsOrigin
			},
		},
	}
}

// ServeWS handles the WebSocket handshake. Authentication happens here and
// only here; the identity bound now is immutable for the connection's life.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity := s.authenticate(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	c := newClient(uuid.New().String(), identity, conn)
	s.hub.Register(c)

	if err := s.presence.HandleConnect(r.Context(), c); err != nil {
		// The store hiccupped; the connection stays up without presence.
		log.Printf("%v", err)
	}

	go c.writePump()
	go c.readPump(s)
}

// authenticate extracts a bearer token from the token query parameter or the
// Authorization header. No token means an anonymous connection. A token that
// fails verification is logged and also treated as anonymous: invalid
// behaves identically to absent, the documented fail-open policy.
func (s *Server) authenticate(r *http.Request) *models.Identity {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("Authorization")
	}
	token = strings.TrimPrefix(token, "Bearer ")
	if token == "" {
		return nil
	}

	identity, err := s.verifier.VerifyToken(token)
	if err != nil {
		log.Printf("warning: socket authentication failed: %v", err)
		return nil
	}
	return identity
}

func (s *Server) handleDisconnect(c *Client) {
	s.hub.Unregister(c)
	c.conn.Close()

	if err := s.presence.HandleDisconnect(context.Background(), c); err != nil {
		log.Printf("%v", err)
	}
}

// PresenceStats exposes the presence snapshot for the operational HTTP
// endpoint.
func (s *Server) PresenceStats(ctx context.Context) (models.PresenceStats, error) {
	return s.presence.SnapshotStats(ctx)
}

// CloseAll closes every connection attached to this instance.
func (s *Server) CloseAll() {
	s.hub.CloseAll()
}

// dispatch routes one inbound envelope. Validation failures and store errors
// terminate here as ack payloads or log lines; nothing closes the connection.
func (s *Server) dispatch(c *Client, env Envelope) {
	ctx := context.Background()

	switch env.Event {
	case EventGetOnlineUsers:
		c.ack(s.hub, env.AckID, s.presence.OnlineUsers(ctx))

	case EventCheckUserOnline:
		var req checkUserOnlineRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			c.ack(s.hub, env.AckID, ackError("invalid payload"))
			return
		}
		c.ack(s.hub, env.AckID, s.presence.CheckOnline(ctx, req.TargetUserID))

	case EventGetPresenceStats:
		c.ack(s.hub, env.AckID, s.presence.Stats(ctx))

	case EventPresenceHeartbeat:
		s.presence.Heartbeat(ctx, c.userID())

	case EventPrivateSend:
		var req privateSendRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			c.ack(s.hub, env.AckID, ackError("invalid payload"))
			return
		}
		c.ack(s.hub, env.AckID, s.messaging.PrivateSend(ctx, c.userID(), req.To, req.Content))

	case EventSendNotification:
		var req sendNotificationRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			c.ack(s.hub, env.AckID, ackError("invalid payload"))
			return
		}
		note := models.Notification{
			TargetUserID: req.TargetUserID,
			From:         c.userID(),
			Payload:      req.Notification,
		}
		c.ack(s.hub, env.AckID, s.messaging.SendNotification(ctx, note))

	case EventJoinRoomByCode:
		var req joinRoomRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			c.ack(s.hub, env.AckID, ackError("invalid payload"))
			return
		}
		c.ack(s.hub, env.AckID, s.messaging.JoinRoom(ctx, c, req.Code))

	case EventSendRoomMessage:
		var req roomMessageRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			c.ack(s.hub, env.AckID, ackError("invalid payload"))
			return
		}
		c.ack(s.hub, env.AckID, s.messaging.RoomMessage(ctx, req.RoomID, req.Message))

	default:
		log.Printf("connection %s sent unknown event %q", c.id, env.Event)
	}
}
