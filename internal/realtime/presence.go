package realtime

import (
	"context"
	"fmt"
	"log"
	"time"

	"roomsync/internal/models"
	"roomsync/internal/repositories"
)

// PresenceCoordinator ties connection lifecycle to the presence store and
// announces transitions cluster-wide. Per user the state machine is
// OFFLINE -> ONLINE on the first connection and back on the last removal;
// additional connections for an already-online user cause no transition.
// Anonymous connections never touch the store.
type PresenceCoordinator struct {
	store  repositories.PresenceStore
	fanout Fanout
}

func NewPresenceCoordinator(store repositories.PresenceStore, fanout Fanout) *PresenceCoordinator {
	return &PresenceCoordinator{store: store, fanout: fanout}
}

// HandleConnect registers the connection and announces the result: a
// user_connected event to everyone else if the user just came online, and a
// refreshed online_users snapshot to every client either way.
func (p *PresenceCoordinator) HandleConnect(ctx context.Context, c *Client) error {
	if c.identity == nil {
		return nil
	}
	userID := c.identity.UserID

	wasOffline, err := p.store.AddConnection(ctx, userID, c.id)
	if err != nil {
		return fmt.Errorf("failed to register connection for %s: %w", userID, err)
	}

	if wasOffline {
		p.announce(ctx, EventUserConnected, userID, c.id)
	}
	p.broadcastSnapshot(ctx)
	return nil
}

// HandleDisconnect removes only this connection; the user stays online while
// other devices remain connected.
func (p *PresenceCoordinator) HandleDisconnect(ctx context.Context, c *Client) error {
	if c.identity == nil {
		return nil
	}
	userID := c.identity.UserID

	becameOffline, err := p.store.RemoveConnection(ctx, userID, c.id)
	if err != nil {
		return fmt.Errorf("failed to remove connection for %s: %w", userID, err)
	}

	if becameOffline {
		p.announce(ctx, EventUserDisconnected, userID, c.id)
	}
	p.broadcastSnapshot(ctx)
	return nil
}

// OnlineUsers answers a get_online_users request.
func (p *PresenceCoordinator) OnlineUsers(ctx context.Context) onlineUsersResult {
	users, err := p.store.ListOnline(ctx)
	if err != nil {
		log.Printf("failed to list online users: %v", err)
		return onlineUsersResult{ackResult: ackError("presence store unavailable")}
	}
	return onlineUsersResult{ackResult: ackOK(), Users: users, Count: len(users)}
}

// CheckOnline answers a check_user_online request.
func (p *PresenceCoordinator) CheckOnline(ctx context.Context, userID string) userOnlineResult {
	if userID == "" {
		return userOnlineResult{ackResult: ackError("targetUserId is required")}
	}

	online, err := p.store.IsOnline(ctx, userID)
	if err != nil {
		log.Printf("failed to check presence of %s: %v", userID, err)
		return userOnlineResult{ackResult: ackError("presence store unavailable")}
	}
	return userOnlineResult{ackResult: ackOK(), UserID: userID, IsOnline: online}
}

// Stats answers a get_presence_stats request.
func (p *PresenceCoordinator) Stats(ctx context.Context) presenceStatsResult {
	stats, err := p.snapshotStats(ctx)
	if err != nil {
		log.Printf("failed to collect presence stats: %v", err)
		return presenceStatsResult{ackResult: ackError("presence store unavailable")}
	}
	return presenceStatsResult{ackResult: ackOK(), Stats: stats}
}

// SnapshotStats exposes the stats snapshot outside the event protocol, for
// the operational HTTP endpoint.
func (p *PresenceCoordinator) SnapshotStats(ctx context.Context) (models.PresenceStats, error) {
	return p.snapshotStats(ctx)
}

// Heartbeat refreshes the user's liveness timestamp. Fire-and-forget: no ack,
// failures are only logged.
func (p *PresenceCoordinator) Heartbeat(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	if err := p.store.TouchLastSeen(ctx, userID); err != nil {
		log.Printf("failed to touch last seen for %s: %v", userID, err)
	}
}

// PurgeInactive evicts users whose last heartbeat is older than maxIdle and
// pushes a fresh snapshot when anyone was dropped. Called from an external
// timer, never self-scheduled.
func (p *PresenceCoordinator) PurgeInactive(ctx context.Context, maxIdle time.Duration) (int, error) {
	removed, err := p.store.PurgeInactive(ctx, maxIdle)
	if err != nil {
		return removed, fmt.Errorf("failed to purge inactive users: %w", err)
	}
	if removed > 0 {
		log.Printf("purged %d inactive users", removed)
		p.broadcastSnapshot(ctx)
	}
	return removed, nil
}

func (p *PresenceCoordinator) snapshotStats(ctx context.Context) (models.PresenceStats, error) {
	users, err := p.store.ListOnline(ctx)
	if err != nil {
		return models.PresenceStats{}, fmt.Errorf("failed to list online users: %w", err)
	}
	return models.PresenceStats{
		TotalOnline: len(users),
		Users:       users,
		Timestamp:   time.Now().UnixMilli(),
	}, nil
}

func (p *PresenceCoordinator) announce(ctx context.Context, event, userID, excludeConnectionID string) {
	env, err := newEnvelope(event, userEvent{UserID: userID, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		log.Printf("%v", err)
		return
	}
	if err := p.fanout.Broadcast(ctx, env, excludeConnectionID); err != nil {
		log.Printf("failed to broadcast %s for %s: %v", event, userID, err)
	}
}

// broadcastSnapshot pushes the full online list to every client. O(online)
// payload per event, accepted for the simpler client state it buys.
func (p *PresenceCoordinator) broadcastSnapshot(ctx context.Context) {
	users, err := p.store.ListOnline(ctx)
	if err != nil {
		log.Printf("failed to list online users for snapshot: %v", err)
		return
	}
	if users == nil {
		users = []string{}
	}

	env, err := newEnvelope(EventOnlineUsers, users)
	if err != nil {
		log.Printf("%v", err)
		return
	}
	if err := p.fanout.Broadcast(ctx, env, ""); err != nil {
		log.Printf("failed to broadcast online users snapshot: %v", err)
	}
}
