package repositories

import (
	"context"
	"time"
)

// PresenceStore answers "who is online". The memory implementation is correct
// within a single process; the Redis implementation is shared by every server
// instance pointed at the same Redis. Callers never mutate presence state
// except through these operations.
type PresenceStore interface {
	// AddConnection registers a connection for the user and reports whether
	// it took the user from offline to online.
	AddConnection(ctx context.Context, userID, connectionID string) (wasOffline bool, err error)

	// RemoveConnection drops a single connection and reports whether the
	// user now has zero connections. Removing a connection that was never
	// added is a no-op and reports false.
	RemoveConnection(ctx context.Context, userID, connectionID string) (becameOffline bool, err error)

	IsOnline(ctx context.Context, userID string) (bool, error)
	ListOnline(ctx context.Context) ([]string, error)
	CountOnline(ctx context.Context) (int, error)
	ConnectionsFor(ctx context.Context, userID string) ([]string, error)

	TouchLastSeen(ctx context.Context, userID string) error
	// LastSeenAt returns the zero time for a user that has never been seen.
	LastSeenAt(ctx context.Context, userID string) (time.Time, error)

	// PurgeInactive removes online users whose last-seen timestamp is older
	// than maxIdle and returns how many were removed. The store never
	// schedules this itself; an external timer must drive it.
	PurgeInactive(ctx context.Context, maxIdle time.Duration) (int, error)

	// Clear wipes all presence state. Intended for tests and dev resets.
	Clear(ctx context.Context) error
}
