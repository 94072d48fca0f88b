package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrUserNotFound indicates an unknown user identity.
	ErrUserNotFound = errors.New("user not found")
	// ErrAttemptNotFound indicates the attempt id does not exist.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrResultNotFound indicates no result exists for the attempt.
	ErrResultNotFound = errors.New("result not found")
	// ErrNotAttemptOwner is returned when a user touches an attempt they do not own.
	ErrNotAttemptOwner = errors.New("attempt belongs to another user")
	// ErrAttemptCompleted rejects writes and double submits on a finalized attempt.
	ErrAttemptCompleted = errors.New("attempt already completed")
	// ErrInvalidQuiz marks quizzes that violate the authoring invariants.
	ErrInvalidQuiz = errors.New("invalid quiz")
)
