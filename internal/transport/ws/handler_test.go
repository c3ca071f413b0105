package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
	"livequiz-service/internal/infra/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	registry := memory.NewSessionRegistry(time.Hour, 0)
	t.Cleanup(registry.Close)
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{
		"quiz-1": {
			ID:   "quiz-1",
			Type: domain.QuizTypeQuiz,
			Questions: []domain.Question{
				{
					Text:          "Capital of France?",
					Options:       []string{"Paris", "London"},
					CorrectAnswer: "Paris",
					TimeLimit:     10,
				},
			},
			BackgroundImage: "bg.png",
		},
	}), time.Minute)

	hub := NewHub()
	engine := app.NewEngine(registry, quizzes, hub, nil)
	handler := NewHandler(engine, hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/host", handler.ServeHost)
	mux.HandleFunc("/ws/join", handler.ServeJoin)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + path
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil skips unrelated broadcasts until a message of the wanted type
// arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) json.RawMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for i := 0; i < 10; i++ {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read waiting for %s: %v", want, err)
		}
		if msg.Type == want {
			return msg.Payload
		}
	}
	t.Fatalf("never received %s", want)
	return nil
}

func TestFullRoundOverWebSockets(t *testing.T) {
	server := newTestServer(t)

	host := dial(t, server, "/ws/host?quizId=quiz-1")
	var created sessionCreatedPayload
	if err := json.Unmarshal(readUntil(t, host, "session_created"), &created); err != nil {
		t.Fatalf("unmarshal session_created: %v", err)
	}
	if len(created.Code) != 6 || created.HostToken == "" {
		t.Fatalf("unexpected session_created payload: %+v", created)
	}

	alice := dial(t, server, "/ws/join?code="+created.Code+"&name=Alice")
	var joined domain.JoinResult
	if err := json.Unmarshal(readUntil(t, alice, "joined"), &joined); err != nil {
		t.Fatalf("unmarshal joined: %v", err)
	}
	if joined.Phase != domain.PhaseWaiting || joined.Theme.BackgroundImage != "bg.png" {
		t.Fatalf("unexpected join payload: %+v", joined)
	}

	var roster app.RosterUpdate
	if err := json.Unmarshal(readUntil(t, host, "participant_joined"), &roster); err != nil {
		t.Fatalf("unmarshal participant_joined: %v", err)
	}
	if roster.DisplayName != "Alice" || roster.Total != 1 {
		t.Fatalf("unexpected roster update: %+v", roster)
	}

	if err := host.WriteJSON(Message{Type: cmdStartQuiz}); err != nil {
		t.Fatalf("start_quiz: %v", err)
	}
	readUntil(t, alice, "quiz_started")
	var question domain.QuestionPayload
	if err := json.Unmarshal(readUntil(t, alice, "new_question"), &question); err != nil {
		t.Fatalf("unmarshal new_question: %v", err)
	}
	if question.Text != "Capital of France?" || len(question.Options) != 2 {
		t.Fatalf("unexpected question: %+v", question)
	}

	answer, _ := json.Marshal(answerPayload{Answer: "A"})
	if err := alice.WriteJSON(Message{Type: cmdSubmitAnswer, Payload: answer}); err != nil {
		t.Fatalf("submit_answer: %v", err)
	}
	var live map[string]int
	if err := json.Unmarshal(readUntil(t, host, "live_stats_update"), &live); err != nil {
		t.Fatalf("unmarshal live stats: %v", err)
	}
	if live["A"] != 1 || live["B"] != 0 {
		t.Fatalf("unexpected live stats: %v", live)
	}

	if err := host.WriteJSON(Message{Type: cmdShowResults}); err != nil {
		t.Fatalf("show_results: %v", err)
	}
	var results map[string]int
	if err := json.Unmarshal(readUntil(t, alice, "question_results"), &results); err != nil {
		t.Fatalf("unmarshal results: %v", err)
	}
	if results["A"] != 1 {
		t.Fatalf("unexpected results: %v", results)
	}

	if err := host.WriteJSON(Message{Type: cmdNextQuestion}); err != nil {
		t.Fatalf("next_question: %v", err)
	}
	var board []domain.LeaderboardEntry
	if err := json.Unmarshal(readUntil(t, alice, "quiz_finished"), &board); err != nil {
		t.Fatalf("unmarshal leaderboard: %v", err)
	}
	if len(board) != 1 || board[0].DisplayName != "Alice" || board[0].Score != 10 {
		t.Fatalf("unexpected leaderboard: %+v", board)
	}
}

func TestJoinUnknownCodeGetsError(t *testing.T) {
	server := newTestServer(t)

	conn := dial(t, server, "/ws/join?code=NOPE42&name=Alice")
	var payload errorPayload
	if err := json.Unmarshal(readUntil(t, conn, "error"), &payload); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if payload.Message == "" {
		t.Fatalf("expected a human-readable rejection reason")
	}
}

func TestHostReattachKeepsControl(t *testing.T) {
	server := newTestServer(t)

	host := dial(t, server, "/ws/host?quizId=quiz-1")
	var created sessionCreatedPayload
	if err := json.Unmarshal(readUntil(t, host, "session_created"), &created); err != nil {
		t.Fatalf("unmarshal session_created: %v", err)
	}
	host.Close()

	// Reconnect with the issued token and run the session from the new conn.
	host2 := dial(t, server, "/ws/host?code="+created.Code+"&token="+created.HostToken)
	alice := dial(t, server, "/ws/join?code="+created.Code+"&name=Alice")
	readUntil(t, alice, "joined")

	if err := host2.WriteJSON(Message{Type: cmdStartQuiz}); err != nil {
		t.Fatalf("start_quiz: %v", err)
	}
	readUntil(t, alice, "quiz_started")
	readUntil(t, host2, "new_question")
}

func TestHostReattachRejectsBadToken(t *testing.T) {
	server := newTestServer(t)

	host := dial(t, server, "/ws/host?quizId=quiz-1")
	var created sessionCreatedPayload
	if err := json.Unmarshal(readUntil(t, host, "session_created"), &created); err != nil {
		t.Fatalf("unmarshal session_created: %v", err)
	}

	u := "ws" + server.URL[len("http"):] + "/ws/host?code=" + created.Code + "&token=stolen"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected handshake rejection")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}
