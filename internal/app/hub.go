package app

import (
	"context"
	"errors"
	"sync"

	"quiz-duel-service/internal/domain"
)

// Hub fans duel events out to in-process subscribers, keyed by participant.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.DuelEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[chan domain.DuelEvent]struct{})}
}

// Subscribe returns a channel receiving events for duels the participant plays in.
// The caller must invoke the returned cancel function to avoid leaks.
func (h *Hub) Subscribe(participantID string) (<-chan domain.DuelEvent, func()) {
	ch := make(chan domain.DuelEvent, 8)

	h.mu.Lock()
	subs, ok := h.subscribers[participantID]
	if !ok {
		subs = make(map[chan domain.DuelEvent]struct{})
		h.subscribers[participantID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs, ok := h.subscribers[participantID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(h.subscribers, participantID)
		}
	}
	return ch, cancel
}

// Publish delivers the event to both players' subscribers. It never blocks.
func (h *Hub) Publish(_ context.Context, event domain.DuelEvent) error {
	participants := []string{event.Duel.FirstPlayerProgress.Player.ID}
	if event.Duel.SecondPlayerProgress != nil {
		participants = append(participants, event.Duel.SecondPlayerProgress.Player.ID)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, participantID := range participants {
		for ch := range h.subscribers[participantID] {
			select {
			case ch <- event:
			default:
				// Slow subscriber: drop the oldest event so the latest state always lands.
				select {
				case <-ch:
				default:
				}
				ch <- event
			}
		}
	}
	return nil
}

// Publishers fans an event out to several publishers and joins their errors.
type Publishers []EventPublisher

func (p Publishers) Publish(ctx context.Context, event domain.DuelEvent) error {
	var errs []error
	for _, publisher := range p {
		if err := publisher.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
