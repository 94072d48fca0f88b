package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-attempt-service/internal/domain"
)

const attemptColumns = `id, user_id, quiz_id, started_at, submitted_at, score, total_questions, completed, answers, time_taken`

// AttemptStore persists attempts, results, and per-question answers in
// Postgres. The schema carries the two safeguards the lifecycle needs: a
// partial unique index on (user_id, quiz_id) WHERE submitted_at IS NULL,
// and a unique results.attempt_id. Finalize runs in one transaction with a
// row lock so concurrent double-submits serialize.
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

func (s *AttemptStore) Create(ctx context.Context, attempt domain.Attempt) error {
	answers, err := json.Marshal(attempt.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO attempts (id, user_id, quiz_id, started_at, score, total_questions, completed, answers)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		attempt.ID, attempt.UserID, attempt.QuizID, attempt.StartedAt,
		attempt.Score, attempt.TotalQuestions, attempt.Completed, answers)
	if err != nil {
		return fmt.Errorf("create attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) Get(ctx context.Context, attemptID string) (domain.Attempt, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id=$1`, attemptID)
	attempt, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("load attempt: %w", err)
	}
	return attempt, nil
}

func (s *AttemptStore) FindInProgress(ctx context.Context, userID, quizID string) (domain.Attempt, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE user_id=$1 AND quiz_id=$2 AND submitted_at IS NULL`,
		userID, quizID)
	attempt, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, false, nil
	}
	if err != nil {
		return domain.Attempt{}, false, fmt.Errorf("find in-progress attempt: %w", err)
	}
	return attempt, true, nil
}

func (s *AttemptStore) MergeAnswers(ctx context.Context, attemptID string, answers map[string]int) (domain.Attempt, error) {
	patch, err := json.Marshal(answers)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("marshal answers: %w", err)
	}

	// jsonb || merges by key with the right operand winning, which is
	// exactly the last-write-wins contract; the WHERE clause keeps
	// completed attempts immutable.
	row := s.pool.QueryRow(ctx,
		`UPDATE attempts SET answers = answers || $2::jsonb
		 WHERE id=$1 AND submitted_at IS NULL
		 RETURNING `+attemptColumns,
		attemptID, patch)
	attempt, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.Get(ctx, attemptID); getErr != nil {
			return domain.Attempt{}, getErr
		}
		return domain.Attempt{}, domain.ErrAttemptCompleted
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("merge answers: %w", err)
	}
	return attempt, nil
}

func (s *AttemptStore) Finalize(ctx context.Context, attempt domain.Attempt, result domain.Result, answers []domain.UserAnswer) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin finalize: %w", err)
	}
	defer tx.Rollback(ctx)

	var completed bool
	err = tx.QueryRow(ctx, `SELECT completed FROM attempts WHERE id=$1 FOR UPDATE`, attempt.ID).Scan(&completed)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrAttemptNotFound
	}
	if err != nil {
		return fmt.Errorf("lock attempt: %w", err)
	}
	if completed {
		return domain.ErrAttemptCompleted
	}

	answersJSON, err := json.Marshal(attempt.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = tx.Exec(ctx,
		`UPDATE attempts SET submitted_at=$2, score=$3, total_questions=$4, completed=TRUE, answers=$5, time_taken=$6
		 WHERE id=$1`,
		attempt.ID, attempt.SubmittedAt, attempt.Score, attempt.TotalQuestions, answersJSON, attempt.TimeTakenSeconds)
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO results (id, attempt_id, score, total_questions, percentage, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		result.ID, result.AttemptID, result.Score, result.TotalQuestions, result.Percentage, result.SubmittedAt)
	if err != nil {
		return fmt.Errorf("create result: %w", err)
	}

	for _, answer := range answers {
		_, err = tx.Exec(ctx,
			`INSERT INTO user_answers (id, attempt_id, question_id, selected_index, correct)
			 VALUES ($1, $2, $3, $4, $5)`,
			answer.ID, answer.AttemptID, answer.QuestionID, answer.SelectedIndex, answer.Correct)
		if err != nil {
			return fmt.Errorf("create user answer: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit finalize: %w", err)
	}
	return nil
}

func (s *AttemptStore) ListByUser(ctx context.Context, userID string) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE user_id=$1 ORDER BY started_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

func (s *AttemptStore) ResultByAttempt(ctx context.Context, attemptID string) (domain.Result, error) {
	var result domain.Result
	err := s.pool.QueryRow(ctx,
		`SELECT id, attempt_id, score, total_questions, percentage, submitted_at FROM results WHERE attempt_id=$1`,
		attemptID).Scan(&result.ID, &result.AttemptID, &result.Score, &result.TotalQuestions, &result.Percentage, &result.SubmittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Result{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.Result{}, fmt.Errorf("load result: %w", err)
	}
	return result, nil
}

func scanAttempt(row pgx.Row) (domain.Attempt, error) {
	var attempt domain.Attempt
	var answersJSON []byte
	err := row.Scan(&attempt.ID, &attempt.UserID, &attempt.QuizID, &attempt.StartedAt, &attempt.SubmittedAt,
		&attempt.Score, &attempt.TotalQuestions, &attempt.Completed, &answersJSON, &attempt.TimeTakenSeconds)
	if err != nil {
		return domain.Attempt{}, err
	}
	attempt.Answers = map[string]int{}
	if len(answersJSON) > 0 {
		if err := json.Unmarshal(answersJSON, &attempt.Answers); err != nil {
			return domain.Attempt{}, fmt.Errorf("unmarshal answers: %w", err)
		}
	}
	return attempt, nil
}
