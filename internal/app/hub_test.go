package app_test

import (
	"context"
	"errors"
	"testing"

	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/domain"
)

func eventFor(typ string, participants ...string) domain.DuelEvent {
	summary := domain.DuelSummary{ID: "d1", FirstPlayerProgress: domain.PlayerProgress{Player: domain.PlayerRef{ID: participants[0]}}}
	if len(participants) > 1 {
		summary.SecondPlayerProgress = &domain.PlayerProgress{Player: domain.PlayerRef{ID: participants[1]}}
	}
	return domain.DuelEvent{Type: typ, Duel: summary}
}

func TestHubDropsStaleEventsForSlowSubscribers(t *testing.T) {
	hub := app.NewHub()
	events, cancel := hub.Subscribe("u2")
	defer cancel()

	for i := 0; i < 20; i++ {
		_ = hub.Publish(context.Background(), eventFor(domain.EventDuelAnswered, "u1", "u2"))
	}
	_ = hub.Publish(context.Background(), eventFor(domain.EventDuelFinished, "u1", "u2"))

	var last domain.DuelEvent
	for len(events) > 0 {
		last = <-events
	}
	if last.Type != domain.EventDuelFinished {
		t.Fatalf("expected the latest event to survive, got %s", last.Type)
	}
}

func TestHubOnlyNotifiesPlayers(t *testing.T) {
	hub := app.NewHub()
	stranger, cancel := hub.Subscribe("u9")
	_ = hub.Publish(context.Background(), eventFor(domain.EventDuelCreated, "u1"))
	if len(stranger) != 0 {
		t.Fatalf("stranger must not receive the event")
	}
	cancel()
	if _, ok := <-stranger; ok {
		t.Fatalf("expected closed channel after cancel")
	}
	cancel()
}

type failingPublisher struct{ err error }

func (p failingPublisher) Publish(context.Context, domain.DuelEvent) error { return p.err }

func TestPublishersJoinErrors(t *testing.T) {
	hub := app.NewHub()
	events, cancel := hub.Subscribe("u1")
	defer cancel()

	boom := errors.New("boom")
	publishers := app.Publishers{failingPublisher{err: boom}, hub}
	err := publishers.Publish(context.Background(), eventFor(domain.EventDuelCreated, "u1"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("a failing publisher must not stop the others")
	}
}
