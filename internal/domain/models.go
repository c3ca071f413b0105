package domain

import "time"

// QuizType distinguishes scored quizzes from free polls.
type QuizType string

const (
	QuizTypeQuiz QuizType = "quiz"
	QuizTypePoll QuizType = "poll"
)

// Phase is a session's position in its lifecycle.
type Phase string

const (
	PhaseWaiting        Phase = "waiting"
	PhaseQuestionOpen   Phase = "question_open"
	PhaseQuestionClosed Phase = "question_closed"
	PhaseFinished       Phase = "finished"
)

// Question is one prompt with a fixed-order option list. CorrectAnswer holds
// the full text of the winning option and is empty for poll questions.
type Question struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
	TimeLimit     int      `json:"timeLimit"`
	Media         string   `json:"media,omitempty"`
}

// Quiz is the definition a session is bound to, immutable once captured.
type Quiz struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Type            QuizType   `json:"type"`
	Questions       []Question `json:"questions"`
	BackgroundImage string     `json:"backgroundImage,omitempty"`
	Music           string     `json:"music,omitempty"`
	Theme           string     `json:"theme,omitempty"`
}

// Theme is the cosmetic payload returned to joining participants. Music is
// deliberately left out so participant devices never autoplay audio.
type Theme struct {
	BackgroundImage string `json:"backgroundImage,omitempty"`
	Name            string `json:"theme,omitempty"`
}

// JoinResult tells a (possibly late) joiner which UI to render.
type JoinResult struct {
	Phase Phase `json:"phase"`
	Theme Theme `json:"theme"`
}

// QuestionPayload is the room-facing view of a question. It has no field for
// the correct answer, so one can never leak to clients before reveal.
type QuestionPayload struct {
	Index     int      `json:"index"`
	Text      string   `json:"text"`
	Options   []string `json:"options"`
	TimeLimit int      `json:"timeLimit"`
	Media     string   `json:"media,omitempty"`
}

// LeaderboardEntry is one row of the final ranking.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
}

// AnswerRecord is the analytics row persisted for each accepted submission.
// Write-only from the engine's perspective; never read back during a session.
type AnswerRecord struct {
	SessionCode     string    `json:"sessionCode"`
	ParticipantName string    `json:"participantName"`
	QuestionIndex   int       `json:"questionIndex"`
	QuestionText    string    `json:"questionText"`
	Option          string    `json:"option"`
	Correct         bool      `json:"isCorrect"`
	QuizType        QuizType  `json:"quizType"`
	SubmittedAt     time.Time `json:"timestamp"`
}
