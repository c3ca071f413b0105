package ws

import (
	"encoding/json"
	"log"
	"sync"
)

// Message is the websocket envelope format for both directions.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Connection is one websocket member of a room. A room has at most one host
// connection and any number of participant connections.
type Connection struct {
	Code   string
	ID     string // empty for host connections
	IsHost bool
	Send   chan []byte
}

type broadcastMessage struct {
	code   string
	toHost bool
	data   []byte
}

// Hub binds connections to session-code rooms and fans broadcasts out to
// them. It implements app.Broadcaster: ToRoom reaches the host and every
// participant, ToHost reaches only the host connection.
type Hub struct {
	mu           sync.RWMutex
	hosts        map[string]*Connection
	participants map[string]map[string]*Connection // code -> connID -> conn

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan broadcastMessage
}

func NewHub() *Hub {
	h := &Hub{
		hosts:        make(map[string]*Connection),
		participants: make(map[string]map[string]*Connection),
		register:     make(chan *Connection),
		unregister:   make(chan *Connection),
		broadcast:    make(chan broadcastMessage, 256),
	}
	go h.run()
	return h
}

func (h *Hub) Register(conn *Connection)   { h.register <- conn }
func (h *Hub) Unregister(conn *Connection) { h.unregister <- conn }

// ToRoom sends an event to every connection in the room.
func (h *Hub) ToRoom(code, event string, payload any) {
	if data := envelope(event, payload); data != nil {
		h.broadcast <- broadcastMessage{code: code, data: data}
	}
}

// ToHost sends an event to the room's host connection only.
func (h *Hub) ToHost(code, event string, payload any) {
	if data := envelope(event, payload); data != nil {
		h.broadcast <- broadcastMessage{code: code, toHost: true, data: data}
	}
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			if conn.IsHost {
				h.hosts[conn.Code] = conn
			} else {
				if h.participants[conn.Code] == nil {
					h.participants[conn.Code] = make(map[string]*Connection)
				}
				h.participants[conn.Code][conn.ID] = conn
			}
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if conn.IsHost {
				if existing, ok := h.hosts[conn.Code]; ok && existing == conn {
					delete(h.hosts, conn.Code)
					close(conn.Send)
				}
			} else if room, ok := h.participants[conn.Code]; ok {
				if existing, ok := room[conn.ID]; ok && existing == conn {
					delete(room, conn.ID)
					close(conn.Send)
				}
				if len(room) == 0 {
					delete(h.participants, conn.Code)
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			if host, ok := h.hosts[msg.code]; ok {
				send(host, msg.data)
			}
			if !msg.toHost {
				for _, conn := range h.participants[msg.code] {
					send(conn, msg.data)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// send drops the message if the connection's buffer is full; a stalled
// client must not hold up the room.
func send(conn *Connection, data []byte) {
	select {
	case conn.Send <- data:
	default:
	}
}

func envelope(event string, payload any) []byte {
	msg := Message{Type: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("marshal %s payload: %v", event, err)
			return nil
		}
		msg.Payload = data
	}
	data, _ := json.Marshal(msg)
	return data
}
