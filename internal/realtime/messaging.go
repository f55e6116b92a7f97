package realtime

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"roomsync/internal/models"
	"roomsync/internal/repositories"
)

// MessagingRouter routes private messages, notifications, and room broadcasts.
// Nothing is persisted and nothing is queued: delivery goes to whatever
// connections are registered right now, and a recipient with none is still a
// successful send.
type MessagingRouter struct {
	store  repositories.PresenceStore
	fanout Fanout
	hub    *Hub
}

func NewMessagingRouter(store repositories.PresenceStore, fanout Fanout, hub *Hub) *MessagingRouter {
	return &MessagingRouter{store: store, fanout: fanout, hub: hub}
}

// PrivateSend delivers a direct message to every connection of the recipient
// and every connection of the sender, so the sender's other devices mirror
// the conversation.
func (m *MessagingRouter) PrivateSend(ctx context.Context, from, to, content string) privateSendResult {
	if from == "" || to == "" || content == "" {
		return privateSendResult{ackResult: ackError("from, to and content are required")}
	}

	msg := models.PrivateMessage{
		ConversationID: models.ConversationID(from, to),
		From:           from,
		To:             to,
		Content:        content,
		CreatedAt:      time.Now(),
	}

	env, err := newEnvelope(EventPrivateMessage, msg)
	if err != nil {
		log.Printf("%v", err)
		return privateSendResult{ackResult: ackError("failed to encode message")}
	}

	if err := m.emitToUsers(ctx, env, to, from); err != nil {
		log.Printf("failed to deliver private message %s: %v", msg.ConversationID, err)
		return privateSendResult{ackResult: ackError("presence store unavailable")}
	}

	return privateSendResult{ackResult: ackOK(), Message: &msg}
}

// SendNotification pushes an ephemeral notification to the target user's
// connections. Unlike private messages it does not mirror to the sender.
func (m *MessagingRouter) SendNotification(ctx context.Context, note models.Notification) ackResult {
	if note.TargetUserID == "" || len(note.Payload) == 0 {
		return ackError("targetUserId and notification are required")
	}

	env, err := newEnvelope(EventNewNotification, newNotificationEvent{From: note.From, Notification: note.Payload})
	if err != nil {
		log.Printf("%v", err)
		return ackError("failed to encode notification")
	}

	if err := m.emitToUsers(ctx, env, note.TargetUserID); err != nil {
		log.Printf("failed to deliver notification to %s: %v", note.TargetUserID, err)
		return ackError("presence store unavailable")
	}

	return ackOK()
}

// JoinRoom subscribes the connection to the room tag. Any non-empty code is
// accepted; the tag is a transport-level group, not a membership check
// against the room registry.
func (m *MessagingRouter) JoinRoom(ctx context.Context, c *Client, code string) joinRoomResult {
	if code == "" {
		return joinRoomResult{ackResult: ackError("invalid code")}
	}

	m.hub.JoinRoom(c, code)

	env, err := newEnvelope(EventParticipantsUpdated, participantsUpdatedEvent{Participants: []string{}})
	if err == nil {
		if err := m.fanout.EmitToRoom(ctx, code, env); err != nil {
			log.Printf("failed to announce join to room %s: %v", code, err)
		}
	}

	return joinRoomResult{ackResult: ackOK(), RoomID: code}
}

// RoomMessage broadcasts to every connection subscribed to the room tag,
// across all instances, with no filtering.
func (m *MessagingRouter) RoomMessage(ctx context.Context, roomID string, message json.RawMessage) ackResult {
	if roomID == "" {
		return ackError("roomId is required")
	}

	env, err := newEnvelope(EventNewMessage, roomMessageEvent{Message: message})
	if err != nil {
		log.Printf("%v", err)
		return ackError("failed to encode message")
	}

	if err := m.fanout.EmitToRoom(ctx, roomID, env); err != nil {
		log.Printf("failed to deliver room message to %s: %v", roomID, err)
	}
	return ackOK()
}

// emitToUsers resolves the users' registered connections and emits the
// envelope to each, deduplicated across users.
func (m *MessagingRouter) emitToUsers(ctx context.Context, env Envelope, userIDs ...string) error {
	seen := make(map[string]struct{})
	for _, userID := range userIDs {
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}

		connIDs, err := m.store.ConnectionsFor(ctx, userID)
		if err != nil {
			return err
		}
		for _, connID := range connIDs {
			if err := m.fanout.EmitToConnection(ctx, connID, env); err != nil {
				log.Printf("failed to emit %s to connection %s: %v", env.Event, connID, err)
			}
		}
	}
	return nil
}
