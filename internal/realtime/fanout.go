package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Fanout propagates events to relevant connections across all instances.
type Fanout interface {
	// Broadcast delivers to every connection cluster-wide, minus the
	// excluded connection id (empty string excludes nobody).
	Broadcast(ctx context.Context, env Envelope, excludeConnectionID string) error
	// EmitToConnection delivers to one connection wherever it is attached.
	EmitToConnection(ctx context.Context, connectionID string, env Envelope) error
	// EmitToRoom delivers to every connection subscribed to the tag.
	EmitToRoom(ctx context.Context, tag string, env Envelope) error
}

const fanoutChannel = "realtime:fanout"

const (
	scopeBroadcast  = "broadcast"
	scopeConnection = "connection"
	scopeRoom       = "room"
)

type fanoutMessage struct {
	Origin   string   `json:"origin"`
	Scope    string   `json:"scope"`
	Target   string   `json:"target,omitempty"`
	Exclude  string   `json:"exclude,omitempty"`
	Envelope Envelope `json:"envelope"`
}

// ClusterFanout bridges local emits to Redis pub/sub so a broadcast or a
// targeted emit reaches connections attached to any instance. Every message
// carries the origin instance id; the subscribe loop drops messages this
// instance published, since those were already delivered locally at publish
// time.
type ClusterFanout struct {
	pub      *redis.Client
	sub      *redis.Client
	hub      *Hub
	originID string
}

// NewClusterFanout takes two clients because a subscribed Redis connection
// cannot issue regular commands; publish and subscribe need separate ones.
func NewClusterFanout(pub, sub *redis.Client, hub *Hub) *ClusterFanout {
	return &ClusterFanout{
		pub:      pub,
		sub:      sub,
		hub:      hub,
		originID: uuid.New().String(),
	}
}

// HealthCheck verifies the publish side is reachable. Startup aborts on
// failure; there is no single-instance fallback mode.
func (f *ClusterFanout) HealthCheck(ctx context.Context) error {
	if err := f.pub.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("fanout channel unreachable: %w", err)
	}
	return nil
}

// Broadcast delivers to every connection cluster-wide, minus the excluded
// connection id.
func (f *ClusterFanout) Broadcast(ctx context.Context, env Envelope, excludeConnectionID string) error {
	f.hub.Broadcast(env, excludeConnectionID)
	return f.publish(ctx, fanoutMessage{
		Scope:    scopeBroadcast,
		Exclude:  excludeConnectionID,
		Envelope: env,
	})
}

// EmitToConnection delivers to a single connection wherever it is attached.
// A local hit short-circuits the publish.
func (f *ClusterFanout) EmitToConnection(ctx context.Context, connectionID string, env Envelope) error {
	if f.hub.SendToConnection(connectionID, env) {
		return nil
	}
	return f.publish(ctx, fanoutMessage{
		Scope:    scopeConnection,
		Target:   connectionID,
		Envelope: env,
	})
}

// EmitToRoom delivers to every connection subscribed to the tag, cluster-wide.
func (f *ClusterFanout) EmitToRoom(ctx context.Context, tag string, env Envelope) error {
	f.hub.SendToRoom(tag, env)
	return f.publish(ctx, fanoutMessage{
		Scope:    scopeRoom,
		Target:   tag,
		Envelope: env,
	})
}

func (f *ClusterFanout) publish(ctx context.Context, msg fanoutMessage) error {
	msg.Origin = f.originID

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal fanout message: %w", err)
	}
	if err := f.pub.Publish(ctx, fanoutChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish fanout message: %w", err)
	}
	return nil
}

// Run subscribes to the fanout channel and delivers incoming messages to
// local connections until the context is cancelled. The initial subscribe
// must succeed; afterwards the Redis client's own reconnect policy applies.
func (f *ClusterFanout) Run(ctx context.Context) error {
	pubsub := f.sub.Subscribe(ctx, fanoutChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to fanout channel: %w", err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			f.handle(msg.Payload)
		}
	}
}

func (f *ClusterFanout) handle(payload string) {
	var msg fanoutMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		log.Printf("dropping malformed fanout message: %v", err)
		return
	}
	if msg.Origin == f.originID {
		return
	}

	switch msg.Scope {
	case scopeBroadcast:
		f.hub.Broadcast(msg.Envelope, msg.Exclude)
	case scopeConnection:
		f.hub.SendToConnection(msg.Target, msg.Envelope)
	case scopeRoom:
		f.hub.SendToRoom(msg.Target, msg.Envelope)
	default:
		log.Printf("dropping fanout message with unknown scope %q", msg.Scope)
	}
}
