package models

// PresenceStats is a point-in-time snapshot of who is online.
type PresenceStats struct {
	TotalOnline int      `json:"totalOnline"`
	Users       []string `json:"users"`
	Timestamp   int64    `json:"timestamp"`
}
