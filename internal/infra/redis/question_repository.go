package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-duel-service/internal/domain"
)

// QuestionLoader fetches the published question pool from a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadPublished(ctx context.Context) ([]domain.Question, error)
}

// QuestionRepository caches the published pool in Redis and samples it with SRANDMEMBER.
// Ids are stored as:        SADD questions:pool {questionID}
// Questions are stored as:  HSET questions:items {questionID} {json}
type QuestionRepository struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

const (
	poolKey  = "questions:pool"
	itemsKey = "questions:items"
)

func NewQuestionRepository(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) SampleQuestions(ctx context.Context, n int) ([]domain.Question, error) {
	size, err := r.client.SCard(ctx, poolKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read question pool: %w", err)
	}
	if size == 0 {
		if size, err = r.fill(ctx); err != nil {
			return nil, err
		}
	}
	if size < int64(n) {
		return nil, domain.ErrInsufficientQuestions
	}

	// A positive count returns distinct members.
	ids, err := r.client.SRandMemberN(ctx, poolKey, int64(n)).Result()
	if err != nil {
		return nil, fmt.Errorf("sample question ids: %w", err)
	}
	if len(ids) < n {
		return nil, domain.ErrInsufficientQuestions
	}
	values, err := r.client.HMGet(ctx, itemsKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load sampled questions: %w", err)
	}

	out := make([]domain.Question, 0, n)
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Pool expired between the two reads.
			return nil, fmt.Errorf("question pool changed while sampling")
		}
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return nil, fmt.Errorf("decode question: %w", err)
		}
		out = append(out, q)
	}
	return out, nil
}

// InvalidateQuestionPool drops the cached pool so the next sample on any instance reloads it.
func InvalidateQuestionPool(ctx context.Context, client *redis.Client) error {
	return client.Del(ctx, poolKey, itemsKey).Err()
}

// fill reloads the pool from the loader; concurrent misses share one load.
func (r *QuestionRepository) fill(ctx context.Context) (int64, error) {
	result, err, _ := r.sf.Do(poolKey, func() (interface{}, error) {
		// Re-check cache in case another instance filled it.
		if size, err := r.client.SCard(ctx, poolKey).Result(); err == nil && size > 0 {
			return size, nil
		}

		questions, err := r.loader.LoadPublished(ctx)
		if err != nil {
			return int64(0), err
		}
		if len(questions) == 0 {
			return int64(0), nil
		}

		ttl := r.ttlWithJitter()
		pipe := r.client.TxPipeline()
		pipe.Del(ctx, poolKey, itemsKey)
		for _, q := range questions {
			payload, err := json.Marshal(q)
			if err != nil {
				return int64(0), fmt.Errorf("encode question %s: %w", q.ID, err)
			}
			pipe.SAdd(ctx, poolKey, q.ID)
			pipe.HSet(ctx, itemsKey, q.ID, payload)
		}
		if ttl > 0 {
			pipe.Expire(ctx, poolKey, ttl)
			pipe.Expire(ctx, itemsKey, ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return int64(0), fmt.Errorf("cache question pool: %w", err)
		}
		return int64(len(questions)), nil
	})
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
