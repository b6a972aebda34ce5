package schedws

import (
	"encoding/json"
	"log"
	"strconv"

	websocket "github.com/gofiber/contrib/websocket"

	"github.com/arda-n/TherapyDeskBack/internal/services"
)

// Hub fans session lifecycle events out to the websocket connections of
// the two parties involved. It implements services.Notifier.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	events     chan services.Event
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan services.Event, 64),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 32),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			set, ok := h.clients[client.userID]
			if !ok {
				continue
			}
			if _, exists := set[client]; exists {
				delete(set, client)
				close(client.send)
			}
			if len(set) == 0 {
				delete(h.clients, client.userID)
			}
		case event := <-h.events:
			h.deliver(event)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Publish queues an event for delivery. It drops the event when the queue
// is full rather than block a booking operation.
func (h *Hub) Publish(event services.Event) {
	select {
	case h.events <- event:
	default:
		log.Printf("schedule hub: dropping %s event for session %d", event.Type, event.SessionID)
	}
}

func (h *Hub) deliver(event services.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("schedule hub encode event: %v", err)
		return
	}

	h.sendToUser(strconv.FormatInt(event.ClientID, 10), payload)
	if event.TherapistID != event.ClientID {
		h.sendToUser(strconv.FormatInt(event.TherapistID, 10), payload)
	}
}

func (h *Hub) sendToUser(userID string, payload []byte) {
	set, ok := h.clients[userID]
	if !ok {
		return
	}

	for client := range set {
		select {
		case client.send <- payload:
		default:
			delete(set, client)
			close(client.send)
		}
	}
	if len(set) == 0 {
		delete(h.clients, userID)
	}
}

// ReadPump drains the connection until the peer closes it. The schedule
// socket is push-only; inbound frames are ignored.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
