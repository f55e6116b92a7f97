package models

import (
	"encoding/json"
	"time"
)

// PrivateMessage is the payload delivered for direct user-to-user chat.
// It is never persisted; delivery is best-effort to whoever is connected.
type PrivateMessage struct {
	ConversationID string    `json:"conversationId"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ConversationID derives the identifier for a pair of users' private
// exchange. The pair is ordered lexicographically so both participants
// compute the same id regardless of who sends first.
func ConversationID(a, b string) string {
	if a < b {
		return a + ":" + b
	}
	return b + ":" + a
}

// Notification is an ephemeral payload pushed to a single target user.
type Notification struct {
	TargetUserID string          `json:"targetUserId"`
	From         string          `json:"from"`
	Payload      json.RawMessage `json:"notification"`
}
