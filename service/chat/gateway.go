package chat

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one live chat connection, identified by the external
// messenger handle it authenticated with.
type Client struct {
	ExternalID string
	Conn       *websocket.Conn
	Hub        *Hub
}

// Hub tracks connected chat clients. One handle gets one connection; a
// reconnect replaces the previous one.
type Hub struct {
	clients  map[string]*Client
	mu       sync.RWMutex
	dialogue *Dialogue
	sessions *SessionStore
}

func NewHub(dialogue *Dialogue, sessions *SessionStore) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		dialogue: dialogue,
		sessions: sessions,
	}
}

func (h *Hub) registerClient(externalID string, conn *websocket.Conn) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	if previous, exists := h.clients[externalID]; exists {
		previous.Conn.Close()
	}

	client := &Client{
		ExternalID: externalID,
		Conn:       conn,
		Hub:        h,
	}
	h.clients[externalID] = client
	return client
}

func (h *Hub) unregisterClient(externalID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, externalID)
}

type incomingMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type    string   `json:"type"`
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
}

func (c *Client) handleMessages() {
	defer func() {
		c.Hub.unregisterClient(c.ExternalID)
		c.Conn.Close()
	}()

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var incoming incomingMessage
		if err := json.Unmarshal(message, &incoming); err != nil {
			log.Printf("Error unmarshaling message: %v", err)
			continue
		}
		if incoming.Type != "message" {
			continue
		}

		c.respond(incoming.Text)
	}
}

func (c *Client) respond(text string) {
	ctx := context.Background()

	session, err := c.Hub.sessions.Get(ctx, c.ExternalID)
	if err != nil {
		log.Printf("Session load failed for %s: %v", c.ExternalID, err)
		c.send(Reply{Text: "Сервис временно недоступен, попробуйте позже."})
		return
	}

	replies := c.Hub.dialogue.Handle(session, c.ExternalID, text)

	if err := c.Hub.sessions.Save(ctx, c.ExternalID, session); err != nil {
		log.Printf("Session save failed for %s: %v", c.ExternalID, err)
	}

	for _, reply := range replies {
		c.send(reply)
	}
}

func (c *Client) send(reply Reply) {
	payload, err := json.Marshal(outgoingMessage{
		Type:    "reply",
		Text:    reply.Text,
		Options: reply.Options,
	})
	if err != nil {
		return
	}
	if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Printf("Error writing to %s: %v", c.ExternalID, err)
	}
}

// GatewayHandler exposes the chat over a websocket endpoint.
type GatewayHandler struct {
	hub *Hub
}

func NewGatewayHandler(dialogue *Dialogue, sessions *SessionStore) *GatewayHandler {
	return &GatewayHandler{
		hub: NewHub(dialogue, sessions),
	}
}

func (h *GatewayHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/chat", h.HandleChat)
}

// HandleChat upgrades the connection. The external handle arrives as a
// query parameter; messenger bridges pass the messenger user ID here.
func (h *GatewayHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	externalID := r.URL.Query().Get("handle")
	if externalID == "" {
		http.Error(w, "handle query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Error upgrading to WebSocket: %v", err)
		return
	}

	client := h.hub.registerClient(externalID, conn)
	go client.handleMessages()
}
