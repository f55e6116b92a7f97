package repositories

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	onlineUsersKey        = "online:users"
	lastSeenKey           = "user:lastseen"
	userConnectionsPrefix = "user:connections:"

	// Safety TTL on per-user connection sets so a crashed instance cannot
	// leave a user marked online forever.
	presenceTTL = 24 * time.Hour
)

// RedisPresenceStore keeps presence in Redis so every server instance sees the
// same view. Layout: one hash onlineUsersKey mapping userID to its most
// recent connection id (O(1) membership check), one set per user holding all
// of that user's connection ids (multiple devices), and one hash lastSeenKey
// mapping userID to a unix-millisecond timestamp.
type RedisPresenceStore struct {
	client *redis.Client
}

func NewRedisPresenceStore(client *redis.Client) *RedisPresenceStore {
	return &RedisPresenceStore{client: client}
}

func (r *RedisPresenceStore) AddConnection(ctx context.Context, userID, connectionID string) (bool, error) {
	// Two round trips, not one atomic step: a racing add on another instance
	// may observe the same transition. Presence is advisory, so this is
	// accepted rather than locked around.
	online, err := r.client.HExists(ctx, onlineUsersKey, userID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check online hash: %w", err)
	}

	key := userConnectionsKey(userID)
	if err := r.client.HSet(ctx, onlineUsersKey, userID, connectionID).Err(); err != nil {
		return false, fmt.Errorf("failed to set online hash: %w", err)
	}
	if err := r.client.SAdd(ctx, key, connectionID).Err(); err != nil {
		return false, fmt.Errorf("failed to add connection to set: %w", err)
	}
	if err := r.client.Expire(ctx, key, presenceTTL).Err(); err != nil {
		return false, fmt.Errorf("failed to set connection set TTL: %w", err)
	}
	if err := r.TouchLastSeen(ctx, userID); err != nil {
		return false, err
	}

	return !online, nil
}

func (r *RedisPresenceStore) RemoveConnection(ctx context.Context, userID, connectionID string) (bool, error) {
	key := userConnectionsKey(userID)

	removed, err := r.client.SRem(ctx, key, connectionID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to remove connection from set: %w", err)
	}
	if removed == 0 {
		// Connection was never registered; nothing to do.
		return false, nil
	}

	remaining, err := r.client.SCard(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to count remaining connections: %w", err)
	}
	if remaining > 0 {
		return false, nil
	}

	// Delete the set before the hash entry so a crash in between leaves an
	// extra hash row (harmless, purged later) rather than a set with no owner.
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return false, fmt.Errorf("failed to delete connection set: %w", err)
	}
	if err := r.client.HDel(ctx, onlineUsersKey, userID).Err(); err != nil {
		return false, fmt.Errorf("failed to delete online hash entry: %w", err)
	}

	return true, nil
}

func (r *RedisPresenceStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	online, err := r.client.HExists(ctx, onlineUsersKey, userID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check online hash: %w", err)
	}
	return online, nil
}

func (r *RedisPresenceStore) ListOnline(ctx context.Context) ([]string, error) {
	users, err := r.client.HKeys(ctx, onlineUsersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list online users: %w", err)
	}
	return users, nil
}

func (r *RedisPresenceStore) CountOnline(ctx context.Context) (int, error) {
	count, err := r.client.HLen(ctx, onlineUsersKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count online users: %w", err)
	}
	return int(count), nil
}

func (r *RedisPresenceStore) ConnectionsFor(ctx context.Context, userID string) ([]string, error) {
	ids, err := r.client.SMembers(ctx, userConnectionsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get connections for user: %w", err)
	}
	return ids, nil
}

func (r *RedisPresenceStore) TouchLastSeen(ctx context.Context, userID string) error {
	millis := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := r.client.HSet(ctx, lastSeenKey, userID, millis).Err(); err != nil {
		return fmt.Errorf("failed to update last seen: %w", err)
	}
	if err := r.client.Expire(ctx, lastSeenKey, presenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to set last seen TTL: %w", err)
	}
	return nil
}

func (r *RedisPresenceStore) LastSeenAt(ctx context.Context, userID string) (time.Time, error) {
	val, err := r.client.HGet(ctx, lastSeenKey, userID).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last seen: %w", err)
	}

	millis, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse last seen timestamp: %w", err)
	}
	return time.UnixMilli(millis), nil
}

func (r *RedisPresenceStore) PurgeInactive(ctx context.Context, maxIdle time.Duration) (int, error) {
	users, err := r.ListOnline(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxIdle)
	removed := 0
	for _, userID := range users {
		seen, err := r.LastSeenAt(ctx, userID)
		if err != nil {
			return removed, err
		}
		if seen.IsZero() || !seen.Before(cutoff) {
			continue
		}

		if err := r.client.Del(ctx, userConnectionsKey(userID)).Err(); err != nil {
			return removed, fmt.Errorf("failed to delete connection set: %w", err)
		}
		if err := r.client.HDel(ctx, onlineUsersKey, userID).Err(); err != nil {
			return removed, fmt.Errorf("failed to delete online hash entry: %w", err)
		}
		if err := r.client.HDel(ctx, lastSeenKey, userID).Err(); err != nil {
			return removed, fmt.Errorf("failed to delete last seen entry: %w", err)
		}
		removed++
	}
	return removed, nil
}

func (r *RedisPresenceStore) Clear(ctx context.Context) error {
	users, err := r.ListOnline(ctx)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(users)+2)
	for _, userID := range users {
		keys = append(keys, userConnectionsKey(userID))
	}
	keys = append(keys, onlineUsersKey, lastSeenKey)

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear presence state: %w", err)
	}
	return nil
}

// Helper: build Redis key for a user's connection set
func userConnectionsKey(userID string) string {
	return userConnectionsPrefix + userID
}
