package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(hub *Hub) *Client {
	return &Client{
		id:   "test",
		hub:  hub,
		send: make(chan []byte, 4),
	}
}

func TestSubscribeAndBroadcastReachesRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	client := newTestClient(hub)
	hub.Register(client)
	hub.Subscribe(client, "comp-1")

	require.Eventually(t, func() bool {
		return hub.SubscriberCount("comp-1") == 1
	}, time.Second, 5*time.Millisecond)

	hub.BroadcastStatus("comp-1", "ONGOING")

	select {
	case frame := <-client.send:
		assert.Contains(t, string(frame), "ONGOING")
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the broadcast")
	}
}

func TestBroadcastSkipsOtherRooms(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	client := newTestClient(hub)
	hub.Register(client)
	hub.Subscribe(client, "comp-1")
	require.Eventually(t, func() bool {
		return hub.SubscriberCount("comp-1") == 1
	}, time.Second, 5*time.Millisecond)

	hub.BroadcastStatus("comp-2", "ONGOING")

	select {
	case <-client.send:
		t.Fatal("received a frame for a room the client never joined")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnregisterAfterStopDoesNotBlock(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newTestClient(hub)
	hub.Register(client)
	hub.Stop()

	done := make(chan struct{})
	go func() {
		hub.Unregister(client)
		hub.Register(newTestClient(hub))
		hub.Subscribe(client, "comp-1")
		hub.Unsubscribe(client, "comp-1")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub calls blocked after Stop")
	}
}
