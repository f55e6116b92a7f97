package models

// Identity is the authenticated principal bound to a connection at handshake
// time. A connection without one is anonymous and invisible to presence.
type Identity struct {
	UserID string `json:"userId"`
}
