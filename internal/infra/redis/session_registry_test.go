package redis

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
)

func testSession(code string) *app.Session {
	return app.NewSession(code, "token", domain.Quiz{
		ID:   "quiz-1",
		Type: domain.QuizTypeQuiz,
		Questions: []domain.Question{
			{Text: "q", Options: []string{"a", "b"}, CorrectAnswer: "a", TimeLimit: 5},
		},
	})
}

func TestSessionRegistrySetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	registry := NewSessionRegistry(client, time.Minute, 0)
	defer registry.Close()

	registry.Put("ABC234", testSession("ABC234"))
	if !mr.Exists("livequiz:session:ABC234") {
		t.Fatalf("expected liveness key to be set")
	}
	if _, ok := registry.Get("ABC234"); !ok {
		t.Fatalf("expected session present locally")
	}

	registry.Remove("ABC234")
	if mr.Exists("livequiz:session:ABC234") {
		t.Fatalf("expected liveness key to be removed")
	}
	if _, ok := registry.Get("ABC234"); ok {
		t.Fatalf("expected local session removed")
	}
}

func TestSessionRegistryReaperClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	registry := NewSessionRegistry(client, 20*time.Millisecond, 5*time.Millisecond)
	defer registry.Close()

	registry.Put("ABC234", testSession("ABC234"))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := registry.Get("ABC234"); !ok {
			if mr.Exists("livequiz:session:ABC234") {
				t.Fatalf("local eviction left liveness key behind")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("idle session was never evicted")
}
