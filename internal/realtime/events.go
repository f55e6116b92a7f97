package realtime

import (
	"encoding/json"
	"fmt"

	"roomsync/internal/models"
)

// Event names shared with clients.
const (
	EventAck = "ack"

	EventOnlineUsers       = "online_users"
	EventUserConnected     = "user_connected"
	EventUserDisconnected  = "user_disconnected"
	EventGetOnlineUsers    = "get_online_users"
	EventCheckUserOnline   = "check_user_online"
	EventGetPresenceStats  = "get_presence_stats"
	EventPresenceHeartbeat = "presence_heartbeat"

	EventPrivateSend    = "private_send"
	EventPrivateMessage = "private_message"

	EventSendNotification = "send_notification"
	EventNewNotification  = "new_notification"

	EventJoinRoomByCode      = "join_room_by_code"
	EventSendRoomMessage     = "send_room_message"
	EventNewMessage          = "new_message"
	EventParticipantsUpdated = "participants_updated"
)

// Envelope is the unit of the wire protocol, both directions. Requests that
// want a reply set AckID; the reply comes back as an EventAck envelope
// carrying the same id.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	AckID string          `json:"ack_id,omitempty"`
}

func newEnvelope(event string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: raw}, nil
}

// Client-originated request payloads.

type checkUserOnlineRequest struct {
	TargetUserID string `json:"targetUserId"`
}

type privateSendRequest struct {
	To      string `json:"to"`
	Content string `json:"content"`
}

type sendNotificationRequest struct {
	TargetUserID string          `json:"targetUserId"`
	Notification json.RawMessage `json:"notification"`
}

type joinRoomRequest struct {
	Code string `json:"code"`
}

type roomMessageRequest struct {
	RoomID  string          `json:"roomId"`
	Message json.RawMessage `json:"message"`
}

// Server-originated push payloads.

type userEvent struct {
	UserID    string `json:"userId"`
	Timestamp int64  `json:"timestamp"`
}

type newNotificationEvent struct {
	From         string          `json:"from"`
	Notification json.RawMessage `json:"notification"`
}

type roomMessageEvent struct {
	Message json.RawMessage `json:"message"`
}

type participantsUpdatedEvent struct {
	Participants []string `json:"participants"`
}

// Acknowledgment payloads. Every ack carries ok plus an error string when
// ok is false.

type ackResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func ackOK() ackResult {
	return ackResult{OK: true}
}

func ackError(msg string) ackResult {
	return ackResult{OK: false, Error: msg}
}

type onlineUsersResult struct {
	ackResult
	Users []string `json:"users"`
	Count int      `json:"count"`
}

type userOnlineResult struct {
	ackResult
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

type presenceStatsResult struct {
	ackResult
	Stats models.PresenceStats `json:"stats"`
}

type privateSendResult struct {
	ackResult
	Message *models.PrivateMessage `json:"message,omitempty"`
}

type joinRoomResult struct {
	ackResult
	RoomID string `json:"roomId,omitempty"`
}
