package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/config"
	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/infra/memory"
	infranats "quiz-duel-service/internal/infra/nats"
	pgstore "quiz-duel-service/internal/infra/postgres"
	infraredis "quiz-duel-service/internal/infra/redis"
)

// dependencies is the wired object graph shared by the start and reap commands.
type dependencies struct {
	service *app.DuelService
	hub     *app.Hub
	closers []func() error
}

func (d *dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func wire(ctx context.Context, cfg config.Config, logger *zap.Logger) (*dependencies, error) {
	deps := &dependencies{hub: app.NewHub()}

	var redisClient *goredis.Client
	if cfg.Redis.Addr != "" {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			_ = redisClient.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		deps.closers = append(deps.closers, redisClient.Close)
	}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(demoQuestions())
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			_ = deps.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		deps.closers = append(deps.closers, func() error { pool.Close(); return nil })
		loader = pgstore.NewQuestionStore(pool)
	} else {
		logger.Warn("postgres not configured, serving built-in demo questions")
	}

	questions := questionSource(cfg, loader, redisClient)

	var (
		duels  app.DuelRepository
		locker app.Locker
	)
	switch cfg.Backend() {
	case config.BackendRedis:
		if redisClient == nil {
			_ = deps.Close()
			return nil, fmt.Errorf("store backend %q requires redis.addr", config.BackendRedis)
		}
		duels = infraredis.NewDuelStore(redisClient)
		locker = infraredis.NewLocker(redisClient,
			config.TTLDuration(cfg.Lock.TTL, infraredis.DefaultLockTTL),
			config.TTLDuration(cfg.Lock.Retry, infraredis.DefaultLockRetry))
	default:
		duels = memory.NewDuelStore()
		locker = memory.NewLocker()
	}

	publishers := app.Publishers{deps.hub}
	if cfg.NATS.URL != "" {
		publisher, err := infranats.Connect(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			_ = deps.Close()
			return nil, err
		}
		deps.closers = append(deps.closers, publisher.Close)
		publishers = append(publishers, publisher)
	}

	deps.service = app.NewDuelService(duels, questions, locker,
		app.WithEvents(publishers),
		app.WithLogger(logger.Named("duels")),
	)
	logger.Info("dependencies wired",
		zap.String("backend", cfg.Backend()),
		zap.Bool("postgres", cfg.Postgres.URL != ""),
		zap.String("questions", fmt.Sprintf("%T", questions)),
		zap.Bool("nats", cfg.NATS.URL != ""))
	return deps, nil
}

const defaultQuestionTTL = 10 * time.Minute

// questionSource caches the pool in redis when available, in process otherwise.
// A zero questions.ttl samples a loader that can sample on its own (postgres) on every call.
func questionSource(cfg config.Config, loader memory.QuestionLoader, redisClient *goredis.Client) app.QuestionRepository {
	ttl := config.TTLDuration(cfg.Questions.TTL, defaultQuestionTTL)
	if sampler, ok := loader.(app.QuestionRepository); ok && ttl == 0 {
		return sampler
	}
	if redisClient != nil {
		return infraredis.NewQuestionRepository(redisClient, loader, ttl)
	}
	return memory.NewQuestionRepository(loader, ttl)
}

// demoQuestions keeps the service playable without a database.
func demoQuestions() []domain.Question {
	return []domain.Question{
		{ID: "demo-1", Body: "How many continents are there on Earth?", CorrectAnswers: []string{"7", "seven"}},
		{ID: "demo-2", Body: "What is the chemical symbol for gold?", CorrectAnswers: []string{"Au"}},
		{ID: "demo-3", Body: "How many sides does a hexagon have?", CorrectAnswers: []string{"6", "six"}},
		{ID: "demo-4", Body: "What planet is known as the Red Planet?", CorrectAnswers: []string{"Mars"}},
		{ID: "demo-5", Body: "What is 12 multiplied by 12?", CorrectAnswers: []string{"144"}},
		{ID: "demo-6", Body: "What is 2 + 2?", CorrectAnswers: []string{"4", "four"}},
		{ID: "demo-7", Body: "How many minutes are in an hour?", CorrectAnswers: []string{"60", "sixty"}},
	}
}
