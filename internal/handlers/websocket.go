package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/nikhil/taskfi/internal/events"
	"github.com/nikhil/taskfi/internal/middleware"
	"github.com/nikhil/taskfi/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, replace with proper origin checking
	},
}

// WebSocketHandler subscribes authenticated clients to a team's event feed.
type WebSocketHandler struct {
	hub *events.Hub
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler() *WebSocketHandler {
	return &WebSocketHandler{hub: events.GetHub()}
}

// HandleWebSocket handles GET /ws?team=<address>.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	teamAddr, err := models.ParseAddress(r.URL.Query().Get("team"))
	if err != nil {
		http.Error(w, "Valid team address is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Error upgrading connection: %v", err)
		return
	}

	client := &events.Client{
		Hub:     h.hub,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		Address: caller.String(),
		Team:    teamAddr.String(),
	}

	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
