package memory

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-attempt-service/internal/domain"
)

// QuizLoader fetches quiz content from a backing store (e.g., Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// negativeTTL bounds how long an unknown quiz id is remembered. Attempt
// starts probe caller-supplied ids, so misses must not hammer the loader.
const negativeTTL = 30 * time.Second

// QuizRepository keeps loaded quizzes in process memory with a jittered TTL
// and collapses concurrent loads for the same quiz into one loader call.
type QuizRepository struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	group  singleflight.Group
	rnd    *rand.Rand

	mu      sync.RWMutex
	entries map[string]quizEntry
}

type quizEntry struct {
	quiz    domain.Quiz
	missing bool
	staleAt time.Time
}

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		loader:  loader,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		entries: make(map[string]quizEntry),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, err, ok := r.fresh(quizID); ok {
		return quiz, err
	}

	result, err, _ := r.group.Do(quizID, func() (interface{}, error) {
		// A concurrent caller may have filled the entry while we waited.
		if quiz, err, ok := r.fresh(quizID); ok {
			return quiz, err
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		switch {
		case errors.Is(err, domain.ErrQuizNotFound):
			r.store(quizID, quizEntry{missing: true, staleAt: r.clock().Add(negativeTTL)})
			return domain.Quiz{}, err
		case err != nil:
			return domain.Quiz{}, err
		}

		r.store(quizID, quizEntry{quiz: quiz, staleAt: r.clock().Add(r.ttlWithJitter())})
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// fresh returns the cached outcome for the quiz when it has not expired.
func (r *QuizRepository) fresh(quizID string) (domain.Quiz, error, bool) {
	r.mu.RLock()
	entry, ok := r.entries[quizID]
	r.mu.RUnlock()
	if !ok || !entry.staleAt.After(r.clock()) {
		return domain.Quiz{}, nil, false
	}
	if entry.missing {
		return domain.Quiz{}, domain.ErrQuizNotFound, true
	}
	return entry.quiz, nil, true
}

func (r *QuizRepository) store(quizID string, entry quizEntry) {
	r.mu.Lock()
	r.entries[quizID] = entry
	r.mu.Unlock()
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// up to 10% jitter so entries do not expire in lockstep
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuizLoader serves quizzes from a fixed map (tests/demo mode).
type StaticQuizLoader struct {
	quizzes map[string]domain.Quiz
}

func NewStaticQuizLoader(quizzes map[string]domain.Quiz) *StaticQuizLoader {
	return &StaticQuizLoader{quizzes: quizzes}
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}
