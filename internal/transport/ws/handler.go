package ws

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Inbound command types.
const (
	cmdStartQuiz    = "start_quiz"
	cmdNextQuestion = "next_question"
	cmdShowResults  = "show_results"
	cmdSubmitAnswer = "submit_answer"
)

// Handler wires websocket connections into the session engine: one endpoint
// for hosts (create or reattach), one for participants (join by code).
type Handler struct {
	engine   *app.Engine
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewHandler(engine *app.Engine, hub *Hub) *Handler {
	return &Handler{
		engine: engine,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type sessionCreatedPayload struct {
	Code      string `json:"code"`
	HostToken string `json:"hostToken"`
}

type answerPayload struct {
	Answer string `json:"answer"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeHost handles GET /ws/host. With ?quizId= it creates a new session and
// replies with the code and host token; with ?code=&token= it reattaches a
// reconnecting host without losing control of the session.
func (h *Handler) ServeHost(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	code := r.URL.Query().Get("code")
	token := r.URL.Query().Get("token")

	created := false
	switch {
	case quizID != "":
		var err error
		code, token, err = h.engine.CreateSession(r.Context(), quizID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, domain.ErrQuizNotFound) {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}
		created = true
	case code != "" && token != "":
		if err := h.engine.AttachHost(code, token); err != nil {
			http.Error(w, "invalid session or token", http.StatusUnauthorized)
			return
		}
	default:
		http.Error(w, "missing quizId or code/token", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	member := &Connection{Code: code, IsHost: true, Send: make(chan []byte, 256)}
	h.hub.Register(member)
	go h.writePump(conn, member)

	if created {
		member.Send <- envelope("session_created", sessionCreatedPayload{Code: code, HostToken: token})
	}

	h.readHostCommands(conn, code, token)
	h.hub.Unregister(member)
}

// ServeJoin handles GET /ws/join?code=&name= for participants.
func (h *Handler) ServeJoin(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	name := r.URL.Query().Get("name")
	if code == "" || name == "" {
		http.Error(w, "missing code or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	connID := uuid.NewString()
	result, err := h.engine.Join(code, connID, name)
	if err != nil {
		// The one rejection that reaches a user: route them back to the
		// join-code entry point.
		_ = conn.WriteJSON(Message{Type: "error", Payload: mustJSON(errorPayload{Message: err.Error()})})
		_ = conn.Close()
		return
	}

	member := &Connection{Code: code, ID: connID, Send: make(chan []byte, 256)}
	h.hub.Register(member)
	go h.writePump(conn, member)

	member.Send <- envelope("joined", result)

	h.readParticipantCommands(conn, code, connID)
	h.engine.Leave(code, connID)
	h.hub.Unregister(member)
}

func (h *Handler) readHostCommands(conn *websocket.Conn, code, token string) {
	defer conn.Close()
	configureReader(conn)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		var err error
		switch msg.Type {
		case cmdStartQuiz:
			err = h.engine.Start(code, token)
		case cmdNextQuestion:
			err = h.engine.Advance(code, token)
		case cmdShowResults:
			err = h.engine.Reveal(code, token)
		}
		// Invalid-phase and unauthorized commands are dropped without a
		// reply; log only, so the behavior stays observable server-side.
		if err != nil {
			log.Printf("host command %s for session %s rejected: %v", msg.Type, code, err)
		}
	}
}

func (h *Handler) readParticipantCommands(conn *websocket.Conn, code, connID string) {
	defer conn.Close()
	configureReader(conn)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type != cmdSubmitAnswer {
			continue
		}
		var payload answerPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			continue
		}
		// Closed windows and duplicates are silently ignored; the first
		// recorded answer stands.
		if err := h.engine.Submit(code, connID, payload.Answer); err != nil {
			log.Printf("submission for session %s rejected: %v", code, err)
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, member *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case data, ok := <-member.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func configureReader(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

func mustJSON(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}
