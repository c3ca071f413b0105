package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a code matches no live session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrUnauthorized is returned for host commands carrying the wrong token.
	ErrUnauthorized = errors.New("not the session host")
	// ErrInvalidPhase is returned when an operation is not legal in the
	// session's current phase.
	ErrInvalidPhase = errors.New("operation not valid in current phase")
	// ErrDuplicateSubmission is returned for a second answer to the same
	// question; the first recorded answer stands.
	ErrDuplicateSubmission = errors.New("answer already submitted for question")
	// ErrParticipantNotFound is returned when a connection submits without
	// having joined.
	ErrParticipantNotFound = errors.New("participant not found in session")
	// ErrQuizNotFound indicates the quiz definition could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
)
