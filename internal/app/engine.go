package app

import (
	"context"

	"github.com/google/uuid"

	"livequiz-service/internal/domain"
)

// Broadcast event types pushed to rooms or hosts.
const (
	EventQuizStarted       = "quiz_started"
	EventNewQuestion       = "new_question"
	EventQuestionResults   = "question_results"
	EventQuizFinished      = "quiz_finished"
	EventParticipantJoined = "participant_joined"
	EventParticipantLeft   = "participant_left"
	EventLiveStats         = "live_stats_update"
)

// SessionRegistry maps live session codes to sessions. Implementations own
// eviction; the engine only creates, looks up, and removes.
type SessionRegistry interface {
	Put(code string, session *Session)
	Get(code string) (*Session, bool)
	Remove(code string)
}

// QuizRepository loads quiz definitions (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// Broadcaster delivers engine events to the room (host + participants) or to
// the host connection alone.
type Broadcaster interface {
	ToRoom(code, event string, payload any)
	ToHost(code, event string, payload any)
}

// RosterUpdate notifies the host about roster changes.
type RosterUpdate struct {
	DisplayName string `json:"name"`
	Total       int    `json:"total"`
}

// Engine coordinates one host and N participants per session: it owns the
// command surface, delegates state to Session, and emits broadcasts. Every
// rejection is a typed error even where the transport stays silent, so the
// policy is testable rather than accidental.
type Engine struct {
	registry    SessionRegistry
	quizzes     QuizRepository
	broadcaster Broadcaster
	answers     *AnswerWorker // nil when no sink is configured
}

func NewEngine(registry SessionRegistry, quizzes QuizRepository, broadcaster Broadcaster, answers *AnswerWorker) *Engine {
	return &Engine{
		registry:    registry,
		quizzes:     quizzes,
		broadcaster: broadcaster,
		answers:     answers,
	}
}

// CreateSession binds a quiz definition to a fresh code and host token. The
// token, not the connection, is the host credential from here on, so a host
// can reconnect without losing control.
func (e *Engine) CreateSession(ctx context.Context, quizID string) (code, hostToken string, err error) {
	quiz, err := e.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return "", "", err
	}
	code, err = generateCode(func(c string) bool {
		_, taken := e.registry.Get(c)
		return taken
	})
	if err != nil {
		return "", "", err
	}
	hostToken = uuid.NewString()
	e.registry.Put(code, NewSession(code, hostToken, quiz))
	return code, hostToken, nil
}

// AttachHost validates a token for a reconnecting host connection.
func (e *Engine) AttachHost(code, hostToken string) error {
	session, ok := e.registry.Get(code)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.Authorize(hostToken)
}

// Join registers a participant connection and notifies the host. The only
// rejection that reaches a user is an unknown code.
func (e *Engine) Join(code, connID, displayName string) (domain.JoinResult, error) {
	session, ok := e.registry.Get(code)
	if !ok {
		return domain.JoinResult{}, domain.ErrSessionNotFound
	}
	result, total := session.join(connID, displayName)
	e.broadcaster.ToHost(code, EventParticipantJoined, RosterUpdate{
		DisplayName: displayName,
		Total:       total,
	})
	return result, nil
}

// Start opens the first question and announces it to the room.
func (e *Engine) Start(code, hostToken string) error {
	session, ok := e.registry.Get(code)
	if !ok {
		return domain.ErrSessionNotFound
	}
	payload, err := session.start(hostToken)
	if err != nil {
		return err
	}
	e.broadcaster.ToRoom(code, EventQuizStarted, nil)
	e.broadcaster.ToRoom(code, EventNewQuestion, payload)
	return nil
}

// Advance moves to the next question, or finishes the session and delivers
// the leaderboard when questions are exhausted.
func (e *Engine) Advance(code, hostToken string) error {
	session, ok := e.registry.Get(code)
	if !ok {
		return domain.ErrSessionNotFound
	}
	next, finished, board, err := session.advance(hostToken)
	if err != nil {
		return err
	}
	if finished {
		e.broadcaster.ToRoom(code, EventQuizFinished, board)
		return nil
	}
	e.broadcaster.ToRoom(code, EventNewQuestion, next)
	return nil
}

// Reveal closes the answer window and shows per-option counts to the room.
func (e *Engine) Reveal(code, hostToken string) error {
	session, ok := e.registry.Get(code)
	if !ok {
		return domain.ErrSessionNotFound
	}
	counts, err := session.reveal(hostToken)
	if err != nil {
		return err
	}
	e.broadcaster.ToRoom(code, EventQuestionResults, counts)
	return nil
}

// Submit records an answer, enqueues its analytics record, and pushes the
// live tally to the host only, so other participants see nothing early.
func (e *Engine) Submit(code, connID, letter string) error {
	session, ok := e.registry.Get(code)
	if !ok {
		return domain.ErrSessionNotFound
	}
	sub, err := session.submit(connID, letter)
	if err != nil {
		return err
	}
	if e.answers != nil {
		e.answers.Enqueue(sub.record)
	}
	e.broadcaster.ToHost(code, EventLiveStats, sub.counts)
	return nil
}

// Leave drops a participant from the roster and tells the host. Unknown
// codes or connections are a no-op.
func (e *Engine) Leave(code, connID string) {
	session, ok := e.registry.Get(code)
	if !ok {
		return
	}
	name, total, left := session.leave(connID)
	if !left {
		return
	}
	e.broadcaster.ToHost(code, EventParticipantLeft, RosterUpdate{
		DisplayName: name,
		Total:       total,
	})
}
