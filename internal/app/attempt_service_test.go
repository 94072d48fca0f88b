package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
)

func TestStartAttemptResumesInProgress(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	first, err := service.StartAttempt(ctx, "u1", "quiz-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if first.TotalQuestions != 2 || !first.InProgress() {
		t.Fatalf("unexpected new attempt: %+v", first)
	}

	second, err := service.StartAttempt(ctx, "u1", "quiz-1")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected resume of %s, got new attempt %s", first.ID, second.ID)
	}
}

func TestStartAttemptUnknownQuizOrUser(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	if _, err := service.StartAttempt(ctx, "u1", "quiz-missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
	if _, err := service.StartAttempt(ctx, "stranger", "quiz-1"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestRecordProgressMergesLastWriteWins(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	attempt, err := service.StartAttempt(ctx, "u1", "quiz-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := service.RecordProgress(ctx, attempt.ID, "u1", map[string]any{"q1": 0}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	updated, err := service.RecordProgress(ctx, attempt.ID, "u1", map[string]any{"q1": 2, "q2": 1})
	if err != nil {
		t.Fatalf("second save: %v", err)
	}

	if updated.Answers["q1"] != 2 || updated.Answers["q2"] != 1 {
		t.Fatalf("expected merged answers with q1 overwritten, got %v", updated.Answers)
	}
	if updated.Completed || updated.Score != 0 {
		t.Fatalf("progress must not score or complete: %+v", updated)
	}
}

func TestRecordProgressSkipsMalformedEntries(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	attempt, _ := service.StartAttempt(ctx, "u1", "quiz-1")
	updated, err := service.RecordProgress(ctx, attempt.ID, "u1", map[string]any{
		"q1": "not-a-number",
		"q2": float64(1),
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok := updated.Answers["q1"]; ok {
		t.Fatalf("expected malformed q1 skipped, got %v", updated.Answers)
	}
	if updated.Answers["q2"] != 1 {
		t.Fatalf("expected q2 kept, got %v", updated.Answers)
	}
}

func TestOwnershipEnforcedEverywhere(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	attempt, _ := service.StartAttempt(ctx, "u1", "quiz-1")

	if _, err := service.GetAttempt(ctx, attempt.ID, "u2"); !errors.Is(err, domain.ErrNotAttemptOwner) {
		t.Fatalf("get: expected ownership error, got %v", err)
	}
	if _, err := service.RecordProgress(ctx, attempt.ID, "u2", map[string]any{"q1": 0}); !errors.Is(err, domain.ErrNotAttemptOwner) {
		t.Fatalf("progress: expected ownership error, got %v", err)
	}
	if _, err := service.Finalize(ctx, attempt.ID, "u2", nil); !errors.Is(err, domain.ErrNotAttemptOwner) {
		t.Fatalf("finalize: expected ownership error, got %v", err)
	}
	if _, err := service.GetResult(ctx, attempt.ID, "u2"); !errors.Is(err, domain.ErrNotAttemptOwner) {
		t.Fatalf("result: expected ownership error, got %v", err)
	}
}

func TestFinalizeScoresAndFreezes(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	now := start
	service := newTestServiceWithClock(t, func() time.Time { return now })

	attempt, err := service.StartAttempt(ctx, "u1", "quiz-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	now = start.Add(90 * time.Second)
	result, err := service.Finalize(ctx, attempt.ID, "u1", map[string]any{"q1": 0, "q2": 1})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if result.Score != 2 || result.TotalQuestions != 2 || result.Percentage != 100 {
		t.Fatalf("expected perfect result, got %+v", result)
	}
	if !result.SubmittedAt.Equal(now) {
		t.Fatalf("expected submittedAt %v, got %v", now, result.SubmittedAt)
	}

	final, err := service.GetAttempt(ctx, attempt.ID, "u1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !final.Completed || final.SubmittedAt == nil || final.Score != 2 {
		t.Fatalf("attempt not frozen: %+v", final)
	}
	if final.TimeTakenSeconds != 90 {
		t.Fatalf("expected 90s taken, got %d", final.TimeTakenSeconds)
	}
}

func TestFinalizePartialAndEmptyAnswers(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	attempt, _ := service.StartAttempt(ctx, "u1", "quiz-1")
	result, err := service.Finalize(ctx, attempt.ID, "u1", map[string]any{"q1": 0, "q2": 0})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if result.Score != 1 || result.Percentage != 50 {
		t.Fatalf("expected 1/2 at 50%%, got %+v", result)
	}

	attempt2, _ := service.StartAttempt(ctx, "u2", "quiz-1")
	result2, err := service.Finalize(ctx, attempt2.ID, "u2", map[string]any{})
	if err != nil {
		t.Fatalf("finalize empty: %v", err)
	}
	if result2.Score != 0 || result2.TotalQuestions != 2 || result2.Percentage != 0 {
		t.Fatalf("expected 0/2 at 0%%, got %+v", result2)
	}
}

func TestFinalizeMergesEarlierProgress(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	attempt, _ := service.StartAttempt(ctx, "u1", "quiz-1")
	if _, err := service.RecordProgress(ctx, attempt.ID, "u1", map[string]any{"q1": 0}); err != nil {
		t.Fatalf("progress: %v", err)
	}

	// Submit only q2; q1 must survive from the recorded progress.
	result, err := service.Finalize(ctx, attempt.ID, "u1", map[string]any{"q2": 1})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if result.Score != 2 {
		t.Fatalf("expected recorded q1 to count, got %+v", result)
	}
}

func TestFinalizeExactlyOnce(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	attempt, _ := service.StartAttempt(ctx, "u1", "quiz-1")
	first, err := service.Finalize(ctx, attempt.ID, "u1", map[string]any{"q1": 0, "q2": 1})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if _, err := service.Finalize(ctx, attempt.ID, "u1", map[string]any{"q1": 0, "q2": 0}); !errors.Is(err, domain.ErrAttemptCompleted) {
		t.Fatalf("expected already-completed error, got %v", err)
	}

	// The stored result is untouched by the rejected resubmit.
	result, err := service.GetResult(ctx, attempt.ID, "u1")
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if result.ID != first.ID || result.Score != first.Score {
		t.Fatalf("result changed after double submit: %+v vs %+v", result, first)
	}
}

func TestRecordProgressRejectedAfterCompletion(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	attempt, _ := service.StartAttempt(ctx, "u1", "quiz-1")
	if _, err := service.Finalize(ctx, attempt.ID, "u1", nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if _, err := service.RecordProgress(ctx, attempt.ID, "u1", map[string]any{"q1": 0}); !errors.Is(err, domain.ErrAttemptCompleted) {
		t.Fatalf("expected completed error, got %v", err)
	}
}

func TestStartAttemptAllowsNewAfterCompletion(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	first, _ := service.StartAttempt(ctx, "u1", "quiz-1")
	if _, err := service.Finalize(ctx, first.ID, "u1", nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	second, err := service.StartAttempt(ctx, "u1", "quiz-1")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("expected a fresh attempt after completion")
	}
}

func TestUserHistoryAndStats(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	first, _ := service.StartAttempt(ctx, "u1", "quiz-1")
	if _, err := service.Finalize(ctx, first.ID, "u1", map[string]any{"q1": 0, "q2": 1}); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	second, _ := service.StartAttempt(ctx, "u1", "quiz-1")
	if _, err := service.Finalize(ctx, second.ID, "u1", map[string]any{"q1": 0, "q2": 0}); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	attempts, err := service.ListUserAttempts(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(attempts))
	}

	stats, err := service.StatsForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalAttempts != 2 || stats.BestPercentage != 100 || stats.AveragePercentage != 75 || stats.QuizzesTaken != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func newTestService(t *testing.T) *app.AttemptService {
	t.Helper()
	return newTestServiceWithClock(t, time.Now)
}

func newTestServiceWithClock(t *testing.T, now func() time.Time) *app.AttemptService {
	t.Helper()
	store := memory.NewAttemptStore()
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{
		"quiz-1": {
			ID:               "quiz-1",
			Title:            "Arithmetic warmup",
			TimeLimitMinutes: 5,
			Active:           true,
			Questions: []domain.Question{
				{
					ID:   "q1",
					Text: "What is 2 + 2?",
					Options: []domain.Option{
						{ID: "o1", Text: "4", Correct: true},
						{ID: "o2", Text: "5"},
					},
				},
				{
					ID:   "q2",
					Text: "What is 3 x 3?",
					Options: []domain.Option{
						{ID: "o1", Text: "6"},
						{ID: "o2", Text: "9", Correct: true},
					},
				},
			},
		},
	}), 5*time.Minute)
	users := memory.NewStaticUserRepository(map[string]domain.User{
		"u1": {ID: "u1", Name: "Alice"},
		"u2": {ID: "u2", Name: "Bob"},
	})
	return app.NewAttemptServiceWithClock(store, store, quizRepo, users, now)
}
