package app

import (
	"context"

	"quiz-duel-service/internal/domain"
)

// DuelRepository abstracts how duel aggregates are stored (in-memory, Redis, etc).
// Duels are always loaded and saved whole; implementations must not share
// mutable state with callers.
type DuelRepository interface {
	Create(ctx context.Context, duel domain.Duel) error
	Get(ctx context.Context, duelID string) (domain.Duel, error)
	Save(ctx context.Context, duel domain.Duel) error
	// FindPending returns the duel waiting for a second player, if any.
	FindPending(ctx context.Context) (domain.Duel, bool, error)
	// FindLiveByParticipant returns the participant's pending or active duel, if any.
	FindLiveByParticipant(ctx context.Context, participantID string) (domain.Duel, bool, error)
	ListActiveIDs(ctx context.Context) ([]string, error)
	ListByParticipant(ctx context.Context, participantID string) ([]domain.Duel, error)
	// ListStatistics returns per-participant totals over finished duels. Stores fold each
	// duel in exactly once, when it is first saved as finished.
	ListStatistics(ctx context.Context) (map[string]domain.Statistics, error)
}

// QuestionRepository samples published, non-deleted questions uniformly at random.
type QuestionRepository interface {
	SampleQuestions(ctx context.Context, n int) ([]domain.Question, error)
}

// Locker hands out exclusive locks by key. The returned unlock must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// EventPublisher receives duel lifecycle events after they were persisted.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.DuelEvent) error
}

const matchmakingLockKey = "matchmaking"

func duelLockKey(duelID string) string {
	return "duel:" + duelID
}
