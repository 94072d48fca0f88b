package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"quiz-attempt-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptRepository and
// app.ResultRepository. All operations run under one mutex, which gives the
// same serialization guarantees the Postgres store gets from transactions:
// at most one in-progress attempt per (user, quiz), finalize exactly once.
type AttemptStore struct {
	mu          sync.Mutex
	attempts    map[string]domain.Attempt
	results     map[string]domain.Result // keyed by attempt ID
	userAnswers map[string][]domain.UserAnswer
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts:    make(map[string]domain.Attempt),
		results:     make(map[string]domain.Result),
		userAnswers: make(map[string][]domain.UserAnswer),
	}
}

func (s *AttemptStore) Create(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.attempts {
		if existing.UserID == attempt.UserID && existing.QuizID == attempt.QuizID && existing.InProgress() {
			return fmt.Errorf("in-progress attempt already exists for user %s quiz %s", attempt.UserID, attempt.QuizID)
		}
	}
	s.attempts[attempt.ID] = cloneAttempt(attempt)
	return nil
}

func (s *AttemptStore) Get(_ context.Context, attemptID string) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return cloneAttempt(attempt), nil
}

func (s *AttemptStore) FindInProgress(_ context.Context, userID, quizID string) (domain.Attempt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, attempt := range s.attempts {
		if attempt.UserID == userID && attempt.QuizID == quizID && attempt.InProgress() {
			return cloneAttempt(attempt), true, nil
		}
	}
	return domain.Attempt{}, false, nil
}

func (s *AttemptStore) MergeAnswers(_ context.Context, attemptID string, answers map[string]int) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if !attempt.InProgress() {
		return domain.Attempt{}, domain.ErrAttemptCompleted
	}
	attempt.Answers = domain.MergeAnswers(attempt.Answers, answers)
	s.attempts[attemptID] = attempt
	return cloneAttempt(attempt), nil
}

func (s *AttemptStore) Finalize(_ context.Context, attempt domain.Attempt, result domain.Result, answers []domain.UserAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.attempts[attempt.ID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if !current.InProgress() {
		return domain.ErrAttemptCompleted
	}
	if _, exists := s.results[attempt.ID]; exists {
		return domain.ErrAttemptCompleted
	}

	s.attempts[attempt.ID] = cloneAttempt(attempt)
	s.results[attempt.ID] = result
	s.userAnswers[attempt.ID] = append([]domain.UserAnswer(nil), answers...)
	return nil
}

func (s *AttemptStore) ListByUser(_ context.Context, userID string) ([]domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var attempts []domain.Attempt
	for _, attempt := range s.attempts {
		if attempt.UserID == userID {
			attempts = append(attempts, cloneAttempt(attempt))
		}
	}
	sort.Slice(attempts, func(i, j int) bool {
		return attempts[i].StartedAt.After(attempts[j].StartedAt)
	})
	return attempts, nil
}

func (s *AttemptStore) ResultByAttempt(_ context.Context, attemptID string) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, ok := s.results[attemptID]
	if !ok {
		return domain.Result{}, domain.ErrResultNotFound
	}
	return result, nil
}

// AnswersByAttempt returns the per-question records frozen at finalize.
func (s *AttemptStore) AnswersByAttempt(_ context.Context, attemptID string) ([]domain.UserAnswer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.UserAnswer(nil), s.userAnswers[attemptID]...), nil
}

// cloneAttempt copies the answers map so callers cannot mutate stored state.
func cloneAttempt(attempt domain.Attempt) domain.Attempt {
	answers := make(map[string]int, len(attempt.Answers))
	for questionID, idx := range attempt.Answers {
		answers[questionID] = idx
	}
	attempt.Answers = answers
	return attempt
}
