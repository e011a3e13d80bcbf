package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"quiz-duel-service/internal/domain"
)

// DuelStore is an in-memory implementation of app.DuelRepository.
// Duels are kept by id; the indexes only hold ids, never pointers into other duels.
type DuelStore struct {
	mu            sync.RWMutex
	duels         map[string]domain.Duel
	pendingID     string
	active        map[string]struct{}
	live          map[string]string              // participant -> pending/active duel id
	byParticipant map[string]map[string]struct{} // participant -> every duel id
	finished      map[string]struct{}
	stats         map[string]domain.Statistics // participant -> totals over finished duels
}

func NewDuelStore() *DuelStore {
	return &DuelStore{
		duels:         make(map[string]domain.Duel),
		active:        make(map[string]struct{}),
		live:          make(map[string]string),
		byParticipant: make(map[string]map[string]struct{}),
		finished:      make(map[string]struct{}),
		stats:         make(map[string]domain.Statistics),
	}
}

func (s *DuelStore) Create(_ context.Context, duel domain.Duel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.duels[duel.ID]; ok {
		return fmt.Errorf("duel %s already exists", duel.ID)
	}
	s.putLocked(duel)
	return nil
}

func (s *DuelStore) Get(_ context.Context, duelID string) (domain.Duel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	duel, ok := s.duels[duelID]
	if !ok {
		return domain.Duel{}, domain.ErrDuelNotFound
	}
	return duel.Clone(), nil
}

func (s *DuelStore) Save(_ context.Context, duel domain.Duel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.duels[duel.ID]; !ok {
		return domain.ErrDuelNotFound
	}
	s.putLocked(duel)
	return nil
}

func (s *DuelStore) FindPending(_ context.Context) (domain.Duel, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pendingID == "" {
		return domain.Duel{}, false, nil
	}
	return s.duels[s.pendingID].Clone(), true, nil
}

func (s *DuelStore) FindLiveByParticipant(_ context.Context, participantID string) (domain.Duel, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.live[participantID]
	if !ok {
		return domain.Duel{}, false, nil
	}
	return s.duels[id].Clone(), true, nil
}

func (s *DuelStore) ListActiveIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.active), nil
}

func (s *DuelStore) ListByParticipant(_ context.Context, participantID string) ([]domain.Duel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectLocked(s.byParticipant[participantID]), nil
}

func (s *DuelStore) ListStatistics(_ context.Context) (map[string]domain.Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Statistics, len(s.stats))
	for participantID, stats := range s.stats {
		out[participantID] = stats
	}
	return out, nil
}

// putLocked stores a copy of the duel and moves its indexes to match its status.
func (s *DuelStore) putLocked(duel domain.Duel) {
	duel = duel.Clone()
	s.duels[duel.ID] = duel

	for _, p := range duel.Players() {
		ids, ok := s.byParticipant[p.ParticipantID]
		if !ok {
			ids = make(map[string]struct{})
			s.byParticipant[p.ParticipantID] = ids
		}
		ids[duel.ID] = struct{}{}
	}

	switch duel.Status {
	case domain.StatusPendingSecondPlayer:
		s.pendingID = duel.ID
	case domain.StatusActive:
		s.active[duel.ID] = struct{}{}
		if s.pendingID == duel.ID {
			s.pendingID = ""
		}
	case domain.StatusFinished:
		delete(s.active, duel.ID)
		if _, seen := s.finished[duel.ID]; !seen {
			s.finished[duel.ID] = struct{}{}
			for _, p := range duel.Players() {
				stats := s.stats[p.ParticipantID]
				stats.Add(*p)
				s.stats[p.ParticipantID] = stats
			}
		}
		if s.pendingID == duel.ID {
			s.pendingID = ""
		}
	}

	for _, p := range duel.Players() {
		if duel.Status.Live() {
			s.live[p.ParticipantID] = duel.ID
		} else if s.live[p.ParticipantID] == duel.ID {
			delete(s.live, p.ParticipantID)
		}
	}
}

func (s *DuelStore) collectLocked(ids map[string]struct{}) []domain.Duel {
	out := make([]domain.Duel, 0, len(ids))
	for _, id := range sortedKeys(ids) {
		out = append(out, s.duels[id].Clone())
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
