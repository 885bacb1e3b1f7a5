// realtime/hub.go
package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"skill-arena/models"
)

// Event types pushed to subscribed clients.
const (
	EventTypeStandings   = "standings"
	EventTypeStatus      = "status"
	EventTypeSettlement  = "settlement"
	EventTypeInvite      = "invite"
	EventTypeSubscribe   = "subscribe"
	EventTypeUnsubscribe = "unsubscribe"
	EventTypePing        = "ping"
	EventTypePong        = "pong"
	EventTypeError       = "error"
)

// Standing is one row of a live competition leaderboard.
type Standing struct {
	Position int    `json:"position"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Score    int64  `json:"score"`
}

// Event is the wire frame for every hub message.
type Event struct {
	Type      string      `json:"type"`
	Code      string      `json:"code,omitempty"` // competition code
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub fans competition events out to websocket clients. Clients subscribe by
// competition code; events for a code reach only its subscribers, invites go
// to the addressed user's connections.
type Hub struct {
	rooms      map[string]map[*Client]bool // by competition code
	allClients map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	broadcast   chan *Event
	subscribe   chan *roomRequest
	unsubscribe chan *roomRequest

	mu sync.RWMutex

	done chan struct{}
}

type roomRequest struct {
	client *Client
	code   string
}

func NewHub() *Hub {
	return &Hub{
		rooms:       make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Event, 256),
		subscribe:   make(chan *roomRequest, 64),
		unsubscribe: make(chan *roomRequest, 64),
		done:        make(chan struct{}),
	}
}

// Run is the hub's main loop. Call it in its own goroutine.
func (h *Hub) Run() {
	log.Println("✅ Realtime hub started")
	for {
		select {
		case <-h.done:
			log.Println("Realtime hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				for code, clients := range h.rooms {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.rooms, code)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.rooms[req.code]; !ok {
				h.rooms[req.code] = make(map[*Client]bool)
			}
			h.rooms[req.code][req.client] = true
			h.mu.Unlock()

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.rooms[req.code]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.rooms, req.code)
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

// Stop terminates the main loop.
func (h *Hub) Stop() {
	close(h.done)
}

func (h *Hub) deliver(event *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("❌ Failed to marshal hub event: %v", err)
		return
	}

	if event.Code != "" {
		for client := range h.rooms[event.Code] {
			select {
			case client.send <- data:
			default:
				// Slow client, drop the frame rather than block the hub.
			}
		}
		return
	}
	for client := range h.allClients {
		select {
		case client.send <- data:
		default:
		}
	}
}

func (h *Hub) enqueue(event *Event) {
	select {
	case h.broadcast <- event:
	default:
		log.Println("⚠️ Hub broadcast buffer full, dropping event")
	}
}

// BroadcastStandings pushes a fresh leaderboard snapshot to a competition's
// subscribers.
func (h *Hub) BroadcastStandings(code string, standings []Standing) {
	h.enqueue(&Event{
		Type:      EventTypeStandings,
		Code:      code,
		Data:      standings,
		Timestamp: time.Now(),
	})
}

// BroadcastStatus announces a lifecycle transition (started, completed,
// canceled).
func (h *Hub) BroadcastStatus(code, status string) {
	h.enqueue(&Event{
		Type:      EventTypeStatus,
		Code:      code,
		Data:      map[string]string{"status": status},
		Timestamp: time.Now(),
	})
}

// BroadcastSettlement pushes final results to a competition's subscribers.
func (h *Hub) BroadcastSettlement(code string, result *models.SettlementResult) {
	h.enqueue(&Event{
		Type:      EventTypeSettlement,
		Code:      code,
		Data:      result,
		Timestamp: time.Now(),
	})
}

// NotifyInvite delivers a private-competition invite to every connection the
// invited user currently has open.
func (h *Hub) NotifyInvite(userID, code, inviterID string) {
	event := &Event{
		Type:      EventTypeInvite,
		Code:      code,
		Data:      map[string]string{"inviter_id": inviterID},
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.allClients {
		if client.userID != userID {
			continue
		}
		select {
		case client.send <- data:
		default:
		}
	}
}

// Register adds a connection to the hub. Returns immediately when the hub
// has stopped; clients disconnecting during shutdown must not block.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a connection.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribe joins a client to a competition's room.
func (h *Hub) Subscribe(client *Client, code string) {
	select {
	case h.subscribe <- &roomRequest{client: client, code: code}:
	case <-h.done:
	}
}

// Unsubscribe removes a client from a competition's room.
func (h *Hub) Unsubscribe(client *Client, code string) {
	select {
	case h.unsubscribe <- &roomRequest{client: client, code: code}:
	case <-h.done:
	}
}

// SubscriberCount returns how many clients watch a competition.
func (h *Hub) SubscriberCount(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[code])
}
