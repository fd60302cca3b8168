// Package ws pushes quiz progress events (answer scored, quiz complete,
// report ready) to a user's open browser tabs.
package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message is the envelope sent over the socket.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins. Adjust this in production!
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// TokenValidator is satisfied by the auth service.
type TokenValidator interface {
	Validate(token string) (bool, uint, string)
}

// Hub tracks open sockets per session token. A user may have several tabs;
// events go to all of them.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.token] == nil {
				h.clients[client.token] = make(map[*Client]bool)
			}
			h.clients[client.token][client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.token]; ok {
				if clients[client] {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.clients, client.token)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// SendToUser queues an event for every socket bound to the token. A slow
// client gets dropped rather than blocking the quiz flow.
func (h *Hub) SendToUser(token, event string, data interface{}) {
	payload, err := json.Marshal(Message{Type: event, Data: data})
	if err != nil {
		log.Printf("Error marshaling ws message %q: %v", event, err)
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients[token]))
	for client := range h.clients[token] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- payload:
		default:
			log.Printf("Send channel full, dropping client")
			h.unregister <- client
		}
	}
}

// HandleWebSocket upgrades the connection. The session token arrives as a
// query parameter and is validated before the socket is accepted.
func (h *Hub) HandleWebSocket(validator TokenValidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		valid, userID, _ := validator.Validate(token)
		if !valid {
			http.Error(w, "Invalid or expired session", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("Error upgrading websocket: %v", err)
			return
		}

		client := &Client{
			hub:   h,
			conn:  conn,
			send:  make(chan []byte, 16),
			token: token,
		}
		h.register <- client
		log.Printf("WebSocket connected for user %d", userID)

		go client.writePump()
		go client.readPump()
	}
}

type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	token string
}

// readPump drains the connection. Clients do not send application messages;
// reading is only needed to process pongs and detect closure.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
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
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
