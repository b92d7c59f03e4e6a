package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is one escrow happening pushed to a team's feed.
type Event struct {
	Type      string `json:"type"`
	Team      string `json:"team"`
	Task      string `json:"task,omitempty"`
	Actor     string `json:"actor,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Amount    uint64 `json:"amount,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Event types published by the escrow service.
const (
	TypeDeposit       = "deposit"
	TypePayout        = "payout"
	TypeTaskCreated   = "task_created"
	TypeTaskAssigned  = "task_assigned"
	TypeTaskCompleted = "task_completed"
	TypeTaskPaid      = "task_paid"
)

// GlobalHub is a singleton instance of the Hub
var GlobalHub *Hub
var hubOnce sync.Once

// Hub fans escrow events out to websocket clients subscribed per team.
type Hub struct {
	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Events to broadcast to a team's subscribers.
	Events chan Event

	// Team address (hex) -> connected clients.
	teams map[string]map[*Client]bool

	mu sync.RWMutex
}

// Client represents one websocket subscriber.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan []byte

	// Caller's wallet address and the team feed subscribed to.
	Address string
	Team    string
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Events:     make(chan Event, 64),
		teams:      make(map[string]map[*Client]bool),
	}
}

// GetHub returns the singleton instance of the Hub
func GetHub() *Hub {
	hubOnce.Do(func() {
		GlobalHub = NewHub()
		go GlobalHub.Run()
	})
	return GlobalHub
}

// Publish queues an event for the team's subscribers. It never blocks the
// caller; a full queue drops the event rather than stalling a payout.
func (h *Hub) Publish(ev Event) {
	ev.Timestamp = time.Now().UTC().Unix()
	select {
	case h.Events <- ev:
	default:
	}
}

// Run starts the hub's event loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if _, exists := h.teams[client.Team]; !exists {
				h.teams[client.Team] = make(map[*Client]bool)
			}
			h.teams[client.Team][client] = true
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if clients, exists := h.teams[client.Team]; exists {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
				}
				if len(clients) == 0 {
					delete(h.teams, client.Team)
				}
			}
			h.mu.Unlock()

		case ev := <-h.Events:
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			h.mu.RLock()
			for client := range h.teams[ev.Team] {
				select {
				case client.Send <- payload:
				default:
					// Slow consumer; skip rather than block the loop.
				}
			}
			h.mu.RUnlock()
		}
	}
}
