package socket

import (
	"context"
	"fmt"
	"log"

	"encrypted_match/models"

	socketio "github.com/googollee/go-socket.io"
)

// NewSocketServer initializes and returns a new Socket.IO server. Clients
// join the room of a session key to receive its events.
func NewSocketServer() *socketio.Server {
	server := socketio.NewServer(nil)

	// Handle connection events
	server.OnConnect("/", func(c socketio.Conn) error {
		log.Println("✅ Socket connected:", c.ID())
		return nil
	})

	// Handle join events
	server.OnEvent("/", "join", func(c socketio.Conn, data map[string]string) {
		sessionKey := data["sessionKey"]
		if sessionKey == "" {
			log.Println("❌ Invalid sessionKey in join request")
			return
		}
		log.Printf("👥 Socket %s joined session %s", c.ID(), sessionKey)
		c.Join(sessionKey)
	})

	server.OnEvent("/", "leave", func(c socketio.Conn, data map[string]string) {
		if sessionKey := data["sessionKey"]; sessionKey != "" {
			c.Leave(sessionKey)
		}
	})

	server.OnError("/", func(c socketio.Conn, err error) {
		log.Printf("⚠️ Socket error: %v", err)
	})

	// Handle disconnection
	server.OnDisconnect("/", func(c socketio.Conn, reason string) {
		log.Println("❌ Socket disconnected:", c.ID(), reason)
	})

	return server
}

type roomBroadcaster interface {
	BroadcastToRoom(namespace, room, event string, args ...interface{}) bool
}

// Broadcaster pushes session events to the socket.io room of the session.
type Broadcaster struct {
	Rooms roomBroadcaster
}

func NewBroadcaster(server *socketio.Server) *Broadcaster {
	return &Broadcaster{Rooms: server}
}

func (b *Broadcaster) Notify(_ context.Context, ev models.SessionEvent) error {
	if !b.Rooms.BroadcastToRoom("/", ev.SessionKey, ev.Type, ev) {
		return fmt.Errorf("failed to broadcast %s to session %s", ev.Type, ev.SessionKey)
	}
	return nil
}
