package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"roomsync/internal/models"
	"roomsync/internal/repositories"
)

// localFanout delivers through the hub only, standing in for the Redis bridge
// in single-process tests.
type localFanout struct {
	hub *Hub
}

func (f *localFanout) Broadcast(ctx context.Context, env Envelope, excludeConnectionID string) error {
	f.hub.Broadcast(env, excludeConnectionID)
	return nil
}

func (f *localFanout) EmitToConnection(ctx context.Context, connectionID string, env Envelope) error {
	f.hub.SendToConnection(connectionID, env)
	return nil
}

func (f *localFanout) EmitToRoom(ctx context.Context, tag string, env Envelope) error {
	f.hub.SendToRoom(tag, env)
	return nil
}

type testRig struct {
	hub       *Hub
	store     *repositories.MemoryPresenceStore
	presence  *PresenceCoordinator
	messaging *MessagingRouter
}

func newTestRig() *testRig {
	hub := NewHub()
	store := repositories.NewMemoryPresenceStore()
	fanout := &localFanout{hub: hub}
	return &testRig{
		hub:       hub,
		store:     store,
		presence:  NewPresenceCoordinator(store, fanout),
		messaging: NewMessagingRouter(store, fanout, hub),
	}
}

// connect registers a client on the hub and runs it through the coordinator.
// Empty userID makes an anonymous connection.
func (r *testRig) connect(t *testing.T, userID string) *Client {
	t.Helper()

	var identity *models.Identity
	if userID != "" {
		identity = &models.Identity{UserID: userID}
	}
	c := newClient(uuid.New().String(), identity, nil)
	r.hub.Register(c)
	require.NoError(t, r.presence.HandleConnect(context.Background(), c))
	return c
}

// drain empties the client's outbound buffer and returns everything queued.
func drain(c *Client) []Envelope {
	var envs []Envelope
	for {
		select {
		case env := <-c.send:
			envs = append(envs, env)
		default:
			return envs
		}
	}
}

// eventsOf filters drained envelopes by event name.
func eventsOf(envs []Envelope, event string) []Envelope {
	var out []Envelope
	for _, env := range envs {
		if env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

func decodeData(t *testing.T, env Envelope, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}
