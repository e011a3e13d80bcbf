package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-duel-service/internal/domain"
)

// QuestionLoader fetches the published, non-deleted question pool from a backing store.
type QuestionLoader interface {
	LoadPublished(ctx context.Context) ([]domain.Question, error)
}

const poolKey = "published"

// QuestionRepository caches the published pool with TTL and samples from it.
type QuestionRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache cachedPool
}

type cachedPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SampleQuestions picks n distinct questions uniformly at random.
func (r *QuestionRepository) SampleQuestions(ctx context.Context, n int) ([]domain.Question, error) {
	pool, err := r.pool(ctx)
	if err != nil {
		return nil, err
	}
	if len(pool) < n {
		return nil, domain.ErrInsufficientQuestions
	}

	r.rndMu.Lock()
	picked := r.rnd.Perm(len(pool))[:n]
	r.rndMu.Unlock()

	out := make([]domain.Question, 0, n)
	for _, i := range picked {
		out = append(out, pool[i])
	}
	return out, nil
}

func (r *QuestionRepository) pool(ctx context.Context) ([]domain.Question, error) {
	now := r.clock()

	r.mu.RLock()
	if r.cache.questions != nil && r.cache.expiresAt.After(now) {
		pool := r.cache.questions
		r.mu.RUnlock()
		return pool, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(poolKey, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if r.cache.questions != nil && r.cache.expiresAt.After(now) {
			pool := r.cache.questions
			r.mu.RUnlock()
			return pool, nil
		}
		r.mu.RUnlock()

		questions, err := r.loader.LoadPublished(ctx)
		if err != nil {
			return nil, err
		}
		if questions == nil {
			questions = []domain.Question{}
		}

		r.mu.Lock()
		r.cache = cachedPool{
			questions: questions,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// StaticQuestionLoader is a simple loader backed by an in-memory slice (useful for tests/demos).
type StaticQuestionLoader struct {
	questions []domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadPublished(_ context.Context) ([]domain.Question, error) {
	out := make([]domain.Question, len(l.questions))
	copy(out, l.questions)
	return out, nil
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
