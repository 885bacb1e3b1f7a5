// realtime/client.go
package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin is enforced by the gateway in front of this service.
		return true
	},
}

// Client is one websocket connection owned by an authenticated user.
type Client struct {
	id     string
	userID string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
}

// clientFrame is what clients send: subscribe/unsubscribe/ping.
type clientFrame struct {
	Type string `json:"type"`
	Code string `json:"code,omitempty"`
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		id:     uuid.NewString(),
		userID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("⚠️ websocket read error (client %s): %v", c.id, err)
			}
			break
		}

		var frame clientFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.sendError("invalid message format")
			continue
		}
		c.handleFrame(&frame)
	}
}

func (c *Client) handleFrame(frame *clientFrame) {
	switch frame.Type {
	case EventTypeSubscribe:
		if frame.Code == "" {
			c.sendError("code required for subscribe")
			return
		}
		c.hub.Subscribe(c, frame.Code)
		c.sendAck("subscribed", frame.Code)

	case EventTypeUnsubscribe:
		if frame.Code != "" {
			c.hub.Unsubscribe(c, frame.Code)
			c.sendAck("unsubscribed", frame.Code)
		}

	case EventTypePing:
		c.sendEvent(&Event{Type: EventTypePong, Timestamp: time.Now()})
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush anything else already queued into the same frame.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendEvent(event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) sendError(msg string) {
	c.sendEvent(&Event{
		Type:      EventTypeError,
		Data:      map[string]string{"error": msg},
		Timestamp: time.Now(),
	})
}

func (c *Client) sendAck(action, code string) {
	c.sendEvent(&Event{
		Type:      action,
		Code:      code,
		Data:      map[string]string{"status": "ok"},
		Timestamp: time.Now(),
	})
}

// ServeWs upgrades an authenticated HTTP request to a websocket connection
// and wires it into the hub.
func ServeWs(hub *Hub, userID string, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ websocket upgrade failed: %v", err)
		return
	}

	client := NewClient(hub, conn, userID)
	hub.Register(client)

	go client.writePump()
	go client.readPump()
}
