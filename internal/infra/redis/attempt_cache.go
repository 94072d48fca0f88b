package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// AttemptCache decorates an AttemptRepository with a Redis index of
// in-progress attempts, keyed by (user, quiz), so resume lookups skip the
// backing store on the hot path. The store stays authoritative; cache
// writes are best-effort and stale entries are verified before use.
type AttemptCache struct {
	app.AttemptRepository
	client *redis.Client
	ttl    time.Duration
}

func NewAttemptCache(inner app.AttemptRepository, client *redis.Client, ttl time.Duration) *AttemptCache {
	return &AttemptCache{AttemptRepository: inner, client: client, ttl: ttl}
}

func (c *AttemptCache) Create(ctx context.Context, attempt domain.Attempt) error {
	if err := c.AttemptRepository.Create(ctx, attempt); err != nil {
		return err
	}
	_ = c.client.Set(ctx, c.key(attempt.UserID, attempt.QuizID), attempt.ID, c.ttl).Err()
	return nil
}

func (c *AttemptCache) FindInProgress(ctx context.Context, userID, quizID string) (domain.Attempt, bool, error) {
	key := c.key(userID, quizID)
	if attemptID, err := c.client.Get(ctx, key).Result(); err == nil && attemptID != "" {
		attempt, err := c.AttemptRepository.Get(ctx, attemptID)
		if err == nil && attempt.UserID == userID && attempt.QuizID == quizID && attempt.InProgress() {
			return attempt, true, nil
		}
		// Stale marker (finalized or deleted attempt): drop it.
		_ = c.client.Del(ctx, key).Err()
	}

	attempt, ok, err := c.AttemptRepository.FindInProgress(ctx, userID, quizID)
	if err != nil || !ok {
		return attempt, ok, err
	}
	_ = c.client.Set(ctx, key, attempt.ID, c.ttl).Err()
	return attempt, true, nil
}

func (c *AttemptCache) Finalize(ctx context.Context, attempt domain.Attempt, result domain.Result, answers []domain.UserAnswer) error {
	if err := c.AttemptRepository.Finalize(ctx, attempt, result, answers); err != nil {
		return err
	}
	_ = c.client.Del(ctx, c.key(attempt.UserID, attempt.QuizID)).Err()
	return nil
}

func (c *AttemptCache) key(userID, quizID string) string {
	return "attempt:inprogress:" + userID + ":" + quizID
}
