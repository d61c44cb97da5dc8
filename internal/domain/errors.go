package domain

import "errors"

var (
	// ErrInvalidInput is returned when a required identifier is empty.
	// It is rejected before any store call is made.
	ErrInvalidInput = errors.New("missing required identifier")
	// ErrNotFound indicates an update targeted a document that does not exist.
	// Absent per-user completion records are NOT errors; they read as not finished.
	ErrNotFound = errors.New("document not found")
	// ErrSessionNotFound is returned when a quiz round id is unknown or expired.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuestionNotFound indicates a submitted question ID is not part of the round.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNoQuestions indicates the lesson has no questions to quiz on.
	ErrNoQuestions = errors.New("no questions found for lesson")
	// ErrSessionFinished is returned when answering a round that already ended.
	ErrSessionFinished = errors.New("quiz session already finished")
)
