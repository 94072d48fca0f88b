package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"quiz-attempt-service/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// UserRepository resolves user identity; the service never mutates users.
type UserRepository interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
}

// AttemptRepository abstracts attempt persistence (in-memory, Postgres).
// Implementations must guarantee at most one in-progress attempt per
// (user, quiz) and an exactly-once Finalize, each under a single
// transactional boundary.
type AttemptRepository interface {
	Create(ctx context.Context, attempt domain.Attempt) error
	Get(ctx context.Context, attemptID string) (domain.Attempt, error)
	FindInProgress(ctx context.Context, userID, quizID string) (domain.Attempt, bool, error)
	// MergeAnswers overlays answers onto the stored set, last write wins per
	// question, and returns the updated attempt. Serialized by the store so
	// concurrent partial saves cannot interleave.
	MergeAnswers(ctx context.Context, attemptID string, answers map[string]int) (domain.Attempt, error)
	// Finalize atomically persists the completed attempt, its result, and the
	// per-question answer records. Returns domain.ErrAttemptCompleted if the
	// attempt was finalized concurrently.
	Finalize(ctx context.Context, attempt domain.Attempt, result domain.Result, answers []domain.UserAnswer) error
	ListByUser(ctx context.Context, userID string) ([]domain.Attempt, error)
}

// ResultRepository reads back frozen results.
type ResultRepository interface {
	ResultByAttempt(ctx context.Context, attemptID string) (domain.Result, error)
}

// AttemptService contains the attempt lifecycle use cases: start/resume,
// progress recording, finalization, and result reads.
type AttemptService struct {
	attempts AttemptRepository
	results  ResultRepository
	quizzes  QuizRepository
	users    UserRepository
	now      func() time.Time
}

func NewAttemptService(attempts AttemptRepository, results ResultRepository, quizzes QuizRepository, users UserRepository) *AttemptService {
	return &AttemptService{
		attempts: attempts,
		results:  results,
		quizzes:  quizzes,
		users:    users,
		now:      time.Now,
	}
}

// NewAttemptServiceWithClock is test-only for deterministic timestamps.
func NewAttemptServiceWithClock(attempts AttemptRepository, results ResultRepository, quizzes QuizRepository, users UserRepository, now func() time.Time) *AttemptService {
	s := NewAttemptService(attempts, results, quizzes, users)
	s.now = now
	return s
}

// StartAttempt resumes the user's in-progress attempt for the quiz or
// creates a new one, snapshotting the question count at creation time.
func (s *AttemptService) StartAttempt(ctx context.Context, userID, quizID string) (domain.Attempt, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return domain.Attempt{}, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Attempt{}, err
	}

	if existing, ok, err := s.attempts.FindInProgress(ctx, userID, quizID); err != nil {
		return domain.Attempt{}, err
	} else if ok {
		return existing, nil
	}

	attempt := domain.Attempt{
		ID:             uuid.NewString(),
		UserID:         userID,
		QuizID:         quizID,
		StartedAt:      s.now(),
		TotalQuestions: len(quiz.Questions),
		Answers:        map[string]int{},
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		// Lost a race with a concurrent start for the same (user, quiz):
		// the store's uniqueness guarantee kept one row, return it.
		if existing, ok, lookupErr := s.attempts.FindInProgress(ctx, userID, quizID); lookupErr == nil && ok {
			return existing, nil
		}
		return domain.Attempt{}, err
	}
	return attempt, nil
}

// GetAttempt fetches an attempt after verifying the requesting user owns it.
func (s *AttemptService) GetAttempt(ctx context.Context, attemptID, userID string) (domain.Attempt, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if attempt.UserID != userID {
		return domain.Attempt{}, domain.ErrNotAttemptOwner
	}
	return attempt, nil
}

// RecordProgress merges a partial answer submission into the attempt's
// stored answer set. Malformed per-question values are skipped without
// aborting the rest of the merge; score and completion state are untouched.
func (s *AttemptService) RecordProgress(ctx context.Context, attemptID, userID string, raw map[string]any) (domain.Attempt, error) {
	attempt, err := s.GetAttempt(ctx, attemptID, userID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if !attempt.InProgress() {
		return domain.Attempt{}, domain.ErrAttemptCompleted
	}

	answers, skipped := domain.NormalizeAnswers(raw)
	if len(skipped) > 0 {
		log.Printf("attempt %s: skipped %d malformed answer(s): %v", attemptID, len(skipped), skipped)
	}
	if len(answers) == 0 {
		return attempt, nil
	}
	return s.attempts.MergeAnswers(ctx, attemptID, answers)
}

// Finalize transitions the attempt to completed exactly once: merges the
// final answers, computes the score, freezes timestamps, and materializes
// the result plus per-question answer records in one atomic store call.
// A second Finalize for the same attempt fails with ErrAttemptCompleted.
func (s *AttemptService) Finalize(ctx context.Context, attemptID, userID string, raw map[string]any) (domain.Result, error) {
	attempt, err := s.GetAttempt(ctx, attemptID, userID)
	if err != nil {
		return domain.Result{}, err
	}
	if !attempt.InProgress() {
		return domain.Result{}, domain.ErrAttemptCompleted
	}

	quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return domain.Result{}, err
	}

	answers, skipped := domain.NormalizeAnswers(raw)
	if len(skipped) > 0 {
		log.Printf("attempt %s: skipped %d malformed answer(s) on submit: %v", attemptID, len(skipped), skipped)
	}
	merged := domain.MergeAnswers(attempt.Answers, answers)
	summary := Score(quiz, merged)

	submittedAt := s.now()
	timeTaken := int(submittedAt.Sub(attempt.StartedAt) / time.Second)
	if timeTaken < 0 {
		timeTaken = 0
	}

	attempt.Answers = merged
	attempt.Score = summary.Score
	attempt.TotalQuestions = summary.Total
	attempt.SubmittedAt = &submittedAt
	attempt.Completed = true
	attempt.TimeTakenSeconds = timeTaken

	result := domain.Result{
		ID:             uuid.NewString(),
		AttemptID:      attempt.ID,
		Score:          summary.Score,
		TotalQuestions: summary.Total,
		Percentage:     summary.Percentage,
		SubmittedAt:    submittedAt,
	}

	userAnswers := make([]domain.UserAnswer, 0, len(merged))
	for questionID, qs := range summary.PerQuestion {
		if qs.Selected < 0 {
			continue
		}
		userAnswers = append(userAnswers, domain.UserAnswer{
			ID:            uuid.NewString(),
			AttemptID:     attempt.ID,
			QuestionID:    questionID,
			SelectedIndex: qs.Selected,
			Correct:       qs.IsCorrect,
		})
	}

	if err := s.attempts.Finalize(ctx, attempt, result, userAnswers); err != nil {
		return domain.Result{}, err
	}
	return result, nil
}

// GetResult reads the frozen result for a completed attempt (owner only).
func (s *AttemptService) GetResult(ctx context.Context, attemptID, userID string) (domain.Result, error) {
	if _, err := s.GetAttempt(ctx, attemptID, userID); err != nil {
		return domain.Result{}, err
	}
	return s.results.ResultByAttempt(ctx, attemptID)
}

// ListUserAttempts returns the user's attempt history, most recent first.
func (s *AttemptService) ListUserAttempts(ctx context.Context, userID string) ([]domain.Attempt, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.attempts.ListByUser(ctx, userID)
}

// StatsForUser aggregates completed attempts into the participant summary.
func (s *AttemptService) StatsForUser(ctx context.Context, userID string) (domain.UserStats, error) {
	attempts, err := s.ListUserAttempts(ctx, userID)
	if err != nil {
		return domain.UserStats{}, err
	}

	stats := domain.UserStats{}
	quizzes := make(map[string]struct{})
	sum := 0
	for _, attempt := range attempts {
		if !attempt.Completed {
			continue
		}
		stats.TotalAttempts++
		quizzes[attempt.QuizID] = struct{}{}
		pct := domain.Percentage(attempt.Score, attempt.TotalQuestions)
		sum += pct
		if pct > stats.BestPercentage {
			stats.BestPercentage = pct
		}
	}
	stats.QuizzesTaken = len(quizzes)
	if stats.TotalAttempts > 0 {
		stats.AveragePercentage = (sum + stats.TotalAttempts/2) / stats.TotalAttempts
	}
	return stats, nil
}
