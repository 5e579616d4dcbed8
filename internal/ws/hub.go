package ws

import (
	"encoding/json"
	"sync"
)

// Event message types pushed to draft subscribers.
const (
	EventDraftSnapshot  = "draft.snapshot"
	EventDraftSaved     = "draft.saved"
	EventDraftDiscarded = "draft.discarded"
)

// Event represents a WebSocket message to be broadcast.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// orderEvent routes an event to the room of one order's draft.
type orderEvent struct {
	OrderID string
	Event   Event
}

// Hub maintains the set of active clients and broadcasts draft events to
// them, one room per order.
type Hub struct {
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	broadcast chan *orderEvent

	mu sync.RWMutex
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *orderEvent, 256),
	}
}

// Run starts the hub's main loop.
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.orderID] == nil {
				h.rooms[client.orderID] = make(map[*Client]bool)
			}
			h.rooms[client.orderID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.orderID]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.orderID)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[event.OrderID]

			// Marshal once per broadcast, not per client.
			message, err := json.Marshal(event.Event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			for client := range clients {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, close and unregister.
					close(client.send)
					delete(h.rooms[event.OrderID], client)
					if len(h.rooms[event.OrderID]) == 0 {
						delete(h.rooms, event.OrderID)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToOrder sends an event to all clients subscribed to one order's
// draft. This is the public API for the service layer to push updates.
func (h *Hub) BroadcastToOrder(orderID string, event Event) {
	h.broadcast <- &orderEvent{
		OrderID: orderID,
		Event:   event,
	}
}

// BroadcastJSON marshals payload and broadcasts it to the order's room.
// Marshal failures are dropped; a snapshot that cannot be encoded cannot be
// pushed either way.
func (h *Hub) BroadcastJSON(orderID, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.BroadcastToOrder(orderID, Event{Type: eventType, Payload: data})
}
