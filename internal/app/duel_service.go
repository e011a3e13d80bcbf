package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quiz-duel-service/internal/domain"
)

// errUnchanged aborts a locked mutation without saving.
var errUnchanged = errors.New("duel unchanged")

// DuelService contains the matchmaking, lifecycle and answer use cases.
type DuelService struct {
	duels     DuelRepository
	questions QuestionRepository
	locker    Locker
	events    EventPublisher
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// Option customizes a DuelService.
type Option func(*DuelService)

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *DuelService) { s.now = now }
}

// WithIDGenerator replaces the uuid-based id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *DuelService) { s.newID = newID }
}

// WithEvents sets the publisher notified after every persisted change.
func WithEvents(events EventPublisher) Option {
	return func(s *DuelService) { s.events = events }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *DuelService) { s.logger = logger }
}

func NewDuelService(duels DuelRepository, questions QuestionRepository, locker Locker, opts ...Option) *DuelService {
	s := &DuelService{
		duels:     duels,
		questions: questions,
		locker:    locker,
		events:    Publishers{},
		logger:    zap.NewNop(),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Join puts the participant into the waiting duel, or opens a new one when nobody waits.
// The whole find-pending-or-create decision runs under the system-wide matchmaking lock.
func (s *DuelService) Join(ctx context.Context, participantID string) (domain.DuelSummary, error) {
	unlock, err := s.locker.Lock(ctx, matchmakingLockKey)
	if err != nil {
		return domain.DuelSummary{}, fmt.Errorf("acquire matchmaking lock: %w", err)
	}
	defer unlock()

	if _, live, err := s.duels.FindLiveByParticipant(ctx, participantID); err != nil {
		return domain.DuelSummary{}, err
	} else if live {
		return domain.DuelSummary{}, domain.ErrAlreadyInDuel
	}

	player := domain.NewPlayer(s.newID(), participantID)

	pending, found, err := s.duels.FindPending(ctx)
	if err != nil {
		return domain.DuelSummary{}, err
	}
	if !found {
		duel := domain.NewDuel(s.newID(), player, s.now())
		if err := s.duels.Create(ctx, duel); err != nil {
			return domain.DuelSummary{}, fmt.Errorf("create duel: %w", err)
		}
		s.logger.Info("duel created", zap.String("duelId", duel.ID), zap.String("participantId", participantID))
		s.publish(ctx, domain.EventDuelCreated, duel)
		return duel.Summary(), nil
	}

	duel, err := s.activate(ctx, pending.ID, player)
	if err != nil {
		return domain.DuelSummary{}, err
	}
	return duel.Summary(), nil
}

// activate seats the second player and assigns the question set under the duel lock.
func (s *DuelService) activate(ctx context.Context, duelID string, second domain.Player) (domain.Duel, error) {
	duel, _, err := s.mutate(ctx, duelID, func(d *domain.Duel) error {
		questions, err := s.questions.SampleQuestions(ctx, domain.QuestionsPerDuel)
		if err != nil {
			return err
		}
		return d.Activate(second, questions, s.now())
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientQuestions) {
			s.logger.Error("cannot activate duel", zap.String("duelId", duelID), zap.Error(err))
		}
		return domain.Duel{}, err
	}
	s.logger.Info("duel activated",
		zap.String("duelId", duel.ID),
		zap.String("firstParticipantId", duel.FirstPlayer.ParticipantID),
		zap.String("secondParticipantId", second.ParticipantID))
	s.publish(ctx, domain.EventDuelActivated, duel)
	return duel, nil
}

// ActiveDuelFor returns the participant's active duel, provided they still have questions to answer.
func (s *DuelService) ActiveDuelFor(ctx context.Context, participantID string) (domain.Duel, error) {
	duel, live, err := s.duels.FindLiveByParticipant(ctx, participantID)
	if err != nil {
		return domain.Duel{}, err
	}
	if !live || duel.Status != domain.StatusActive {
		return domain.Duel{}, domain.ErrNotInActiveDuel
	}
	if duel.AnsweredAll(duel.PlayerOf(participantID)) {
		return domain.Duel{}, domain.ErrAlreadyAnsweredAll
	}
	return duel, nil
}

// SubmitAnswer evaluates the answer against the participant's current question
// and finishes the duel once both players answered everything.
func (s *DuelService) SubmitAnswer(ctx context.Context, participantID, text string) (domain.AnswerResult, error) {
	current, err := s.ActiveDuelFor(ctx, participantID)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	var recorded domain.Answer
	duel, finished, err := s.tryFinalize(ctx, current.ID, func(d *domain.Duel) error {
		// Re-validate: the duel may have been reaped between the lookup and the lock.
		if d.Status != domain.StatusActive {
			return domain.ErrNotInActiveDuel
		}
		answer, err := d.RecordAnswer(participantID, s.newID(), text, s.now())
		if err != nil {
			return err
		}
		recorded = answer
		return nil
	})
	if err != nil {
		return domain.AnswerResult{}, err
	}

	s.logger.Debug("answer recorded",
		zap.String("duelId", duel.ID),
		zap.String("participantId", participantID),
		zap.String("questionId", recorded.QuestionID),
		zap.String("status", string(recorded.Status)))
	s.publish(ctx, domain.EventDuelAnswered, duel)
	if finished {
		s.logFinished(duel, "answers")
		s.publish(ctx, domain.EventDuelFinished, duel)
	}
	return recorded.Result(), nil
}

// TryFinalize finishes the duel if both players already answered every question.
// It reports whether this call finished the duel; finished duels are left untouched.
func (s *DuelService) TryFinalize(ctx context.Context, duelID string) (bool, error) {
	duel, finished, err := s.tryFinalize(ctx, duelID, func(d *domain.Duel) error {
		if d.Status != domain.StatusActive || !d.BothAnsweredAll() {
			return errUnchanged
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if finished {
		s.logFinished(duel, "finalize")
		s.publish(ctx, domain.EventDuelFinished, duel)
	}
	return finished, nil
}

// ReapDuel auto-fails the lagging player of a stalled duel once grace has passed
// since the other player answered their last question, then finishes the duel.
func (s *DuelService) ReapDuel(ctx context.Context, duelID string, grace time.Duration) (bool, error) {
	duel, finished, err := s.tryFinalize(ctx, duelID, func(d *domain.Duel) error {
		if d.Status != domain.StatusActive {
			return errUnchanged
		}
		laggard, finishedAt, ok := d.Laggard()
		if !ok {
			return errUnchanged
		}
		now := s.now()
		if now.Sub(finishedAt) < grace {
			return errUnchanged
		}
		filled := d.FillUnanswered(laggard, s.newID, now)
		s.logger.Info("auto-failed lagging player",
			zap.String("duelId", d.ID),
			zap.String("participantId", laggard.ParticipantID),
			zap.Int("answers", len(filled)))
		return nil
	})
	if err != nil {
		return false, err
	}
	if finished {
		s.logFinished(duel, "timeout")
		s.publish(ctx, domain.EventDuelFinished, duel)
	}
	return finished, nil
}

// tryFinalize is the single path to a finished duel. Under the duel lock it
// applies prepare and then finalizes the duel when both players are done.
func (s *DuelService) tryFinalize(ctx context.Context, duelID string, prepare func(*domain.Duel) error) (domain.Duel, bool, error) {
	finished := false
	duel, _, err := s.mutate(ctx, duelID, func(d *domain.Duel) error {
		if err := prepare(d); err != nil {
			return err
		}
		if d.Status != domain.StatusActive || !d.BothAnsweredAll() {
			return nil
		}
		if err := d.Finalize(s.now()); err != nil {
			return err
		}
		finished = true
		return nil
	})
	return duel, finished, err
}

// mutate runs load-mutate-save for one duel under its exclusive lock.
// fn returning errUnchanged skips the save without failing.
func (s *DuelService) mutate(ctx context.Context, duelID string, fn func(*domain.Duel) error) (domain.Duel, bool, error) {
	unlock, err := s.locker.Lock(ctx, duelLockKey(duelID))
	if err != nil {
		return domain.Duel{}, false, fmt.Errorf("acquire duel lock: %w", err)
	}
	defer unlock()

	duel, err := s.duels.Get(ctx, duelID)
	if err != nil {
		return domain.Duel{}, false, err
	}
	if err := fn(&duel); err != nil {
		if errors.Is(err, errUnchanged) {
			return duel, false, nil
		}
		return domain.Duel{}, false, err
	}
	if err := s.duels.Save(ctx, duel); err != nil {
		return domain.Duel{}, false, fmt.Errorf("save duel: %w", err)
	}
	return duel, true, nil
}

// CurrentDuel returns the participant's pending or active duel.
func (s *DuelService) CurrentDuel(ctx context.Context, participantID string) (domain.DuelSummary, error) {
	duel, live, err := s.duels.FindLiveByParticipant(ctx, participantID)
	if err != nil {
		return domain.DuelSummary{}, err
	}
	if !live {
		return domain.DuelSummary{}, domain.ErrDuelNotFound
	}
	return duel.Summary(), nil
}

// DuelByID returns any duel the participant plays in.
func (s *DuelService) DuelByID(ctx context.Context, duelID, participantID string) (domain.DuelSummary, error) {
	duel, err := s.duels.Get(ctx, duelID)
	if err != nil {
		return domain.DuelSummary{}, err
	}
	if !duel.HasParticipant(participantID) {
		return domain.DuelSummary{}, domain.ErrForbidden
	}
	return duel.Summary(), nil
}

func (s *DuelService) publish(ctx context.Context, eventType string, duel domain.Duel) {
	event := domain.DuelEvent{Type: eventType, Duel: duel.Summary(), At: s.now()}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("publish duel event failed",
			zap.String("type", eventType),
			zap.String("duelId", duel.ID),
			zap.Error(err))
	}
}

func (s *DuelService) logFinished(duel domain.Duel, trigger string) {
	s.logger.Info("duel finished",
		zap.String("duelId", duel.ID),
		zap.String("trigger", trigger),
		zap.Int("firstScore", duel.FirstPlayer.Score),
		zap.Int("secondScore", duel.SecondPlayer.Score))
}
