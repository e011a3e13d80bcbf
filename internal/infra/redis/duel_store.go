package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"quiz-duel-service/internal/domain"
)

// DuelStore keeps each duel aggregate as one JSON value and maintains id indexes next to it:
//
//	duel:{id}                   JSON aggregate
//	duels:pending               id of the duel waiting for a second player
//	duels:active                set of active duel ids
//	duels:finished              set of finished duel ids
//	participants:ranked         set of participants with at least one finished duel
//	participant:{pid}:live      id of the participant's pending/active duel
//	participant:{pid}:duels     set of every duel id the participant played in
//	participant:{pid}:stats     hash of games/sum/wins/losses/draws over finished duels
type DuelStore struct {
	client *redis.Client
}

func NewDuelStore(client *redis.Client) *DuelStore {
	return &DuelStore{client: client}
}

const (
	pendingKey  = "duels:pending"
	activeKey   = "duels:active"
	finishedKey = "duels:finished"
	rankedKey   = "participants:ranked"
)

func duelKey(id string) string { return "duel:" + id }

func liveKey(participantID string) string { return "participant:" + participantID + ":live" }

func participantDuelsKey(participantID string) string {
	return "participant:" + participantID + ":duels"
}

func statsKey(participantID string) string { return "participant:" + participantID + ":stats" }

// statsRecord is the participant:{pid}:stats hash.
type statsRecord struct {
	Games  int `redis:"games"`
	Sum    int `redis:"sum"`
	Wins   int `redis:"wins"`
	Losses int `redis:"losses"`
	Draws  int `redis:"draws"`
}

func outcomeField(outcome *domain.Outcome) string {
	if outcome == nil {
		return ""
	}
	switch *outcome {
	case domain.OutcomeWin:
		return "wins"
	case domain.OutcomeLose:
		return "losses"
	case domain.OutcomeDraw:
		return "draws"
	}
	return ""
}

func (s *DuelStore) Create(ctx context.Context, duel domain.Duel) error {
	payload, err := json.Marshal(duel)
	if err != nil {
		return fmt.Errorf("encode duel: %w", err)
	}
	created, err := s.client.SetNX(ctx, duelKey(duel.ID), payload, 0).Result()
	if err != nil {
		return fmt.Errorf("create duel: %w", err)
	}
	if !created {
		return fmt.Errorf("duel %s already exists", duel.ID)
	}
	return s.writeIndexes(ctx, duel, nil)
}

func (s *DuelStore) Get(ctx context.Context, duelID string) (domain.Duel, error) {
	payload, err := s.client.Get(ctx, duelKey(duelID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Duel{}, domain.ErrDuelNotFound
	}
	if err != nil {
		return domain.Duel{}, fmt.Errorf("get duel: %w", err)
	}
	return decodeDuel(payload)
}

// Save overwrites an existing duel. Callers hold the duel lock.
func (s *DuelStore) Save(ctx context.Context, duel domain.Duel) error {
	exists, err := s.client.Exists(ctx, duelKey(duel.ID)).Result()
	if err != nil {
		return fmt.Errorf("check duel: %w", err)
	}
	if exists == 0 {
		return domain.ErrDuelNotFound
	}
	payload, err := json.Marshal(duel)
	if err != nil {
		return fmt.Errorf("encode duel: %w", err)
	}
	return s.writeIndexes(ctx, duel, payload)
}

// writeIndexes stores the payload (if any) and moves the indexes in one MULTI/EXEC.
func (s *DuelStore) writeIndexes(ctx context.Context, duel domain.Duel, payload []byte) error {
	pipe := s.client.TxPipeline()
	if payload != nil {
		pipe.Set(ctx, duelKey(duel.ID), payload, 0)
	}
	for _, p := range duel.Players() {
		pipe.SAdd(ctx, participantDuelsKey(p.ParticipantID), duel.ID)
		if duel.Status.Live() {
			pipe.Set(ctx, liveKey(p.ParticipantID), duel.ID, 0)
		} else {
			compareAndDelete.Eval(ctx, pipe, []string{liveKey(p.ParticipantID)}, duel.ID)
		}
	}
	switch duel.Status {
	case domain.StatusPendingSecondPlayer:
		pipe.Set(ctx, pendingKey, duel.ID, 0)
	case domain.StatusActive:
		compareAndDelete.Eval(ctx, pipe, []string{pendingKey}, duel.ID)
		pipe.SAdd(ctx, activeKey, duel.ID)
	case domain.StatusFinished:
		compareAndDelete.Eval(ctx, pipe, []string{pendingKey}, duel.ID)
		pipe.SRem(ctx, activeKey, duel.ID)
		keys := []string{finishedKey, rankedKey}
		args := []interface{}{duel.ID}
		for _, p := range duel.Players() {
			keys = append(keys, statsKey(p.ParticipantID))
			args = append(args, p.ParticipantID, p.Score, outcomeField(p.Outcome))
		}
		recordFinished.Eval(ctx, pipe, keys, args...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write duel %s: %w", duel.ID, err)
	}
	return nil
}

func (s *DuelStore) FindPending(ctx context.Context) (domain.Duel, bool, error) {
	return s.findByPointer(ctx, pendingKey)
}

func (s *DuelStore) FindLiveByParticipant(ctx context.Context, participantID string) (domain.Duel, bool, error) {
	return s.findByPointer(ctx, liveKey(participantID))
}

func (s *DuelStore) findByPointer(ctx context.Context, key string) (domain.Duel, bool, error) {
	id, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Duel{}, false, nil
	}
	if err != nil {
		return domain.Duel{}, false, fmt.Errorf("read %s: %w", key, err)
	}
	duel, err := s.Get(ctx, id)
	if errors.Is(err, domain.ErrDuelNotFound) {
		return domain.Duel{}, false, nil
	}
	if err != nil {
		return domain.Duel{}, false, err
	}
	return duel, true, nil
}

func (s *DuelStore) ListActiveIDs(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, activeKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list active duels: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *DuelStore) ListByParticipant(ctx context.Context, participantID string) ([]domain.Duel, error) {
	return s.listSet(ctx, participantDuelsKey(participantID))
}

func (s *DuelStore) ListStatistics(ctx context.Context) (map[string]domain.Statistics, error) {
	participants, err := s.client.SMembers(ctx, rankedKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rankedKey, err)
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(participants))
	for i, participantID := range participants {
		cmds[i] = pipe.HGetAll(ctx, statsKey(participantID))
	}
	if len(participants) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("load statistics: %w", err)
		}
	}

	out := make(map[string]domain.Statistics, len(participants))
	for i, participantID := range participants {
		var rec statsRecord
		if err := cmds[i].Scan(&rec); err != nil {
			return nil, fmt.Errorf("decode statistics of %s: %w", participantID, err)
		}
		out[participantID] = domain.Statistics{
			SumScore:    rec.Sum,
			GamesCount:  rec.Games,
			WinsCount:   rec.Wins,
			LossesCount: rec.Losses,
			DrawsCount:  rec.Draws,
		}.WithAverage()
	}
	return out, nil
}

func (s *DuelStore) listSet(ctx context.Context, setKey string) ([]domain.Duel, error) {
	ids, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", setKey, err)
	}
	if len(ids) == 0 {
		return []domain.Duel{}, nil
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = duelKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load duels: %w", err)
	}

	duels := make([]domain.Duel, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		duel, err := decodeDuel([]byte(raw))
		if err != nil {
			return nil, err
		}
		duels = append(duels, duel)
	}
	return duels, nil
}

func decodeDuel(payload []byte) (domain.Duel, error) {
	var duel domain.Duel
	if err := json.Unmarshal(payload, &duel); err != nil {
		return domain.Duel{}, fmt.Errorf("decode duel: %w", err)
	}
	return duel, nil
}
