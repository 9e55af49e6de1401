package socket

import (
	"context"
	"testing"

	"encrypted_match/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type broadcast struct {
	namespace, room, event string
	args                   []interface{}
}

type fakeRooms struct {
	sent []broadcast
	ok   bool
}

func (f *fakeRooms) BroadcastToRoom(namespace, room, event string, args ...interface{}) bool {
	f.sent = append(f.sent, broadcast{namespace, room, event, args})
	return f.ok
}

func TestBroadcasterSendsToSessionRoom(t *testing.T) {
	rooms := &fakeRooms{ok: true}
	b := &Broadcaster{Rooms: rooms}
	ev := models.SessionEvent{Type: models.EventMutualInterest, SessionKey: "k1", State: models.SessionStateMutualInterestPending}

	require.NoError(t, b.Notify(context.Background(), ev))
	require.Len(t, rooms.sent, 1)
	assert.Equal(t, broadcast{"/", "k1", models.EventMutualInterest, []interface{}{ev}}, rooms.sent[0])

	rooms.ok = false
	assert.Error(t, b.Notify(context.Background(), ev))
}

func TestNewSocketServer(t *testing.T) {
	server := NewSocketServer()
	require.NotNil(t, server)
	assert.NotNil(t, NewBroadcaster(server).Rooms)
}
