package app

import (
	"sort"
	"strings"
	"sync"
	"time"

	"livequiz-service/internal/domain"
)

// answerAward is the fixed score added for a correct answer, independent of
// response latency.
const answerAward = 10

// leaderboardSize caps the final ranking broadcast at quiz end.
const leaderboardSize = 5

// Session is the in-memory state machine for one live run of a quiz. All
// mutations go through its mutex; the first-submission-wins rule is enforced
// by checking the ledger under the same lock that records it.
type Session struct {
	code      string
	hostToken string
	quiz      domain.Quiz

	mu           sync.RWMutex
	now          func() time.Time
	phase        domain.Phase
	cursor       int
	order        []string // connection IDs in join order, display/tie-break only
	participants map[string]*participant
	lastActive   time.Time
	finalBoard   []domain.LeaderboardEntry
}

type participant struct {
	displayName string
	score       int
	answers     map[int]string // question index -> option letter
}

// submission is the outcome of an accepted answer.
type submission struct {
	record domain.AnswerRecord
	counts map[string]int
}

func NewSession(code, hostToken string, quiz domain.Quiz) *Session {
	return NewSessionWithClock(code, hostToken, quiz, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(code, hostToken string, quiz domain.Quiz, now func() time.Time) *Session {
	return &Session{
		code:         code,
		hostToken:    hostToken,
		quiz:         quiz,
		now:          now,
		phase:        domain.PhaseWaiting,
		cursor:       -1,
		participants: make(map[string]*participant),
		lastActive:   now(),
	}
}

func (s *Session) Code() string { return s.code }

func (s *Session) Phase() domain.Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// IdleSince reports the time of the last state-changing operation, for the
// registry reaper.
func (s *Session) IdleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

// Authorize checks a host token without mutating state.
func (s *Session) Authorize(token string) error {
	if token == "" || token != s.hostToken {
		return domain.ErrUnauthorized
	}
	return nil
}

// join inserts or overwrites the participant for a connection and returns the
// join payload plus the updated roster size.
func (s *Session) join(connID, displayName string) (domain.JoinResult, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.participants[connID]; !ok {
		s.order = append(s.order, connID)
	}
	s.participants[connID] = &participant{
		displayName: displayName,
		answers:     make(map[int]string),
	}
	s.touchLocked()

	return domain.JoinResult{
		Phase: s.phase,
		Theme: domain.Theme{
			BackgroundImage: s.quiz.BackgroundImage,
			Name:            s.quiz.Theme,
		},
	}, len(s.participants)
}

// start opens the first question. Only legal while waiting.
func (s *Session) start(token string) (domain.QuestionPayload, error) {
	if err := s.Authorize(token); err != nil {
		return domain.QuestionPayload{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != domain.PhaseWaiting {
		return domain.QuestionPayload{}, domain.ErrInvalidPhase
	}
	s.phase = domain.PhaseQuestionOpen
	s.cursor = 0
	s.touchLocked()
	return s.questionPayloadLocked(), nil
}

// advance moves past the current question: either opens the next one or, when
// questions are exhausted, finishes the session and freezes the leaderboard.
func (s *Session) advance(token string) (next domain.QuestionPayload, finished bool, board []domain.LeaderboardEntry, err error) {
	if err := s.Authorize(token); err != nil {
		return domain.QuestionPayload{}, false, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != domain.PhaseQuestionClosed {
		return domain.QuestionPayload{}, false, nil, domain.ErrInvalidPhase
	}
	s.touchLocked()
	if s.cursor+1 < len(s.quiz.Questions) {
		s.cursor++
		s.phase = domain.PhaseQuestionOpen
		return s.questionPayloadLocked(), false, nil, nil
	}
	s.phase = domain.PhaseFinished
	s.finalBoard = s.leaderboardLocked()
	return domain.QuestionPayload{}, true, s.finalBoard, nil
}

// reveal closes the answer window for the current question and returns the
// per-option counts snapshot.
func (s *Session) reveal(token string) (map[string]int, error) {
	if err := s.Authorize(token); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != domain.PhaseQuestionOpen {
		return nil, domain.ErrInvalidPhase
	}
	s.phase = domain.PhaseQuestionClosed
	s.touchLocked()
	return s.countsLocked(), nil
}

// submit records a participant's answer for the open question. The letter is
// mapped to an option index; a letter outside the option range is recorded
// but never matches the correct answer.
func (s *Session) submit(connID, rawLetter string) (submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != domain.PhaseQuestionOpen {
		return submission{}, domain.ErrInvalidPhase
	}
	p, ok := s.participants[connID]
	if !ok {
		return submission{}, domain.ErrParticipantNotFound
	}
	if _, answered := p.answers[s.cursor]; answered {
		return submission{}, domain.ErrDuplicateSubmission
	}

	letter := strings.ToUpper(strings.TrimSpace(rawLetter))
	p.answers[s.cursor] = letter

	question := s.quiz.Questions[s.cursor]
	correct := false
	if letter != "" && question.CorrectAnswer != "" {
		if idx := int(letter[0] - 'A'); idx >= 0 && idx < len(question.Options) {
			correct = question.Options[idx] == question.CorrectAnswer
		}
	}
	if correct {
		p.score += answerAward
	}
	s.touchLocked()

	return submission{
		record: domain.AnswerRecord{
			SessionCode:     s.code,
			ParticipantName: p.displayName,
			QuestionIndex:   s.cursor,
			QuestionText:    question.Text,
			Option:          letter,
			Correct:         correct,
			QuizType:        s.quiz.Type,
			SubmittedAt:     s.now(),
		},
		counts: s.countsLocked(),
	}, nil
}

// Counts recomputes the per-option tally for the current question.
func (s *Session) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countsLocked()
}

// Leaderboard returns the frozen final ranking, or nil before the session
// finishes.
func (s *Session) Leaderboard() []domain.LeaderboardEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finalBoard
}

// leave reports a participant disconnect for the host's roster display. The
// participant's ledger and score stay in place: answers already given still
// count and the participant keeps a leaderboard slot.
func (s *Session) leave(connID string) (name string, total int, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, found := s.participants[connID]
	if !found {
		return "", len(s.participants), false
	}
	return p.displayName, len(s.participants), true
}

// countsLocked sizes the tally to the actual option count; ledger letters
// with no matching option slot are ignored.
func (s *Session) countsLocked() map[string]int {
	counts := make(map[string]int)
	if s.cursor < 0 || s.cursor >= len(s.quiz.Questions) {
		return counts
	}
	for i := range s.quiz.Questions[s.cursor].Options {
		counts[optionLetter(i)] = 0
	}
	for _, p := range s.participants {
		letter, ok := p.answers[s.cursor]
		if !ok {
			continue
		}
		if _, known := counts[letter]; known {
			counts[letter]++
		}
	}
	return counts
}

// leaderboardLocked ranks by descending score; the stable sort keeps join
// order for ties.
func (s *Session) leaderboardLocked() []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(s.order))
	for _, connID := range s.order {
		p := s.participants[connID]
		entries = append(entries, domain.LeaderboardEntry{
			DisplayName: p.displayName,
			Score:       p.score,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	if len(entries) > leaderboardSize {
		entries = entries[:leaderboardSize]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

func (s *Session) questionPayloadLocked() domain.QuestionPayload {
	q := s.quiz.Questions[s.cursor]
	return domain.QuestionPayload{
		Index:     s.cursor,
		Text:      q.Text,
		Options:   q.Options,
		TimeLimit: q.TimeLimit,
		Media:     q.Media,
	}
}

func (s *Session) touchLocked() {
	s.lastActive = s.now()
}

func optionLetter(i int) string {
	return string(rune('A' + i))
}
