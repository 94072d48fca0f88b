package redis

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-attempt-service/internal/domain"
)

// QuizLoader fetches quiz content from a backing store (e.g., Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizRepository caches the answer key in Redis (hash per quiz) and falls
// back to a loader on cache miss. The key is positional:
// HSET quiz:{quizID}:answers {questionID} {correctOptionIndex}
// with -1 for questions that have no option marked correct, so the cached
// hash always covers every question and the question count survives.
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	answerKey := r.answersKey(quizID)

	answers, err := r.client.HGetAll(ctx, answerKey).Result()
	if err == nil && len(answers) > 0 {
		return buildQuizFromCache(quizID, answers), nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		answers, err := r.client.HGetAll(ctx, answerKey).Result()
		if err == nil && len(answers) > 0 {
			return buildQuizFromCache(quizID, answers), nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		ttl := r.ttlWithJitter()
		pipe := r.client.Pipeline()
		for _, q := range quiz.Questions {
			idx := correctIndex(q)
			pipe.HSet(ctx, answerKey, q.ID, idx)
		}
		if ttl > 0 {
			pipe.Expire(ctx, answerKey, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizRepository) answersKey(quizID string) string {
	return "quiz:" + quizID + ":answers"
}

// buildQuizFromCache rebuilds a grading-only view of the quiz: question
// text and option text are not cached in this lightweight form, but the
// question count and each correct option position are preserved exactly.
func buildQuizFromCache(quizID string, answers map[string]string) domain.Quiz {
	questions := make([]domain.Question, 0, len(answers))
	for questionID, idxStr := range answers {
		idx, err := strconv.Atoi(idxStr)
		if err != nil || idx < 0 {
			// No answer key for this question; it still counts toward the total.
			questions = append(questions, domain.Question{ID: questionID})
			continue
		}
		options := make([]domain.Option, idx+1)
		options[idx].Correct = true
		questions = append(questions, domain.Question{
			ID:      questionID,
			Options: options,
		})
	}
	return domain.Quiz{ID: quizID, Questions: questions}
}

func correctIndex(q domain.Question) int {
	for i, opt := range q.Options {
		if opt.Correct {
			return i
		}
	}
	return -1
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
