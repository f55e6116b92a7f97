package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RegisterAndBroadcast(t *testing.T) {
	hub := NewHub()

	a := newLocalClient(hub, "alice")
	b := newLocalClient(hub, "bob")
	assert.Equal(t, 2, hub.ConnectionCount())

	env, err := newEnvelope(EventOnlineUsers, []string{"alice", "bob"})
	require.NoError(t, err)

	hub.Broadcast(env, "")
	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
}

func TestHub_UnregisterCleansUpRooms(t *testing.T) {
	hub := NewHub()

	a := newLocalClient(hub, "alice")
	b := newLocalClient(hub, "bob")
	hub.JoinRoom(a, "R1")
	hub.JoinRoom(b, "R1")

	hub.Unregister(a)
	assert.Equal(t, 1, hub.ConnectionCount())

	env, err := newEnvelope(EventNewMessage, roomMessageEvent{Message: []byte(`"x"`)})
	require.NoError(t, err)

	// Only the remaining member hears the room
	hub.SendToRoom("R1", env)
	assert.Len(t, drain(b), 1)

	// Delivery to the unregistered connection must not panic
	assert.False(t, hub.SendToConnection(a.id, env))
	hub.Broadcast(env, "")

	// Double unregister is a no-op
	hub.Unregister(a)
}

func TestHub_SendToConnection(t *testing.T) {
	hub := NewHub()

	a := newLocalClient(hub, "alice")

	env, err := newEnvelope(EventPrivateMessage, nil)
	require.NoError(t, err)

	assert.True(t, hub.SendToConnection(a.id, env))
	assert.False(t, hub.SendToConnection("unknown", env))
	assert.Len(t, drain(a), 1)
}

func TestHub_DropsWhenBufferFull(t *testing.T) {
	hub := NewHub()

	a := newLocalClient(hub, "alice")

	env, err := newEnvelope(EventOnlineUsers, []string{"alice"})
	require.NoError(t, err)

	// A stalled client must never block the hub
	for i := 0; i < sendBufferSize+10; i++ {
		hub.Broadcast(env, "")
	}
	assert.Len(t, drain(a), sendBufferSize)
}
