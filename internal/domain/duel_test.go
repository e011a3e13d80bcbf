package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

var base = time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)

func sampleQuestions(n int) []Question {
	out := make([]Question, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, Question{
			ID:             fmt.Sprintf("q%d", i),
			Body:           fmt.Sprintf("question %d", i),
			CorrectAnswers: []string{fmt.Sprintf("a%d", i)},
		})
	}
	return out
}

func activeDuel(t *testing.T) Duel {
	t.Helper()
	d := NewDuel("d1", NewPlayer("p1", "u1"), base)
	if err := d.Activate(NewPlayer("p2", "u2"), sampleQuestions(5), base.Add(time.Second)); err != nil {
		t.Fatalf("activate: %v", err)
	}
	return d
}

func answer(t *testing.T, d *Duel, participant, text string, at time.Time) Answer {
	t.Helper()
	a, err := d.RecordAnswer(participant, fmt.Sprintf("%s-%d", participant, at.UnixNano()), text, at)
	if err != nil {
		t.Fatalf("record answer for %s: %v", participant, err)
	}
	return a
}

func TestPendingDuelHasNoSecondPlayerOrQuestions(t *testing.T) {
	d := NewDuel("d1", NewPlayer("p1", "u1"), base)
	if d.Status != StatusPendingSecondPlayer || d.SecondPlayer != nil || d.Questions != nil {
		t.Fatalf("unexpected pending duel %+v", d)
	}
	if d.StartedAt != nil || d.FinishedAt != nil {
		t.Fatalf("pending duel must not carry lifecycle dates")
	}
	s := d.Summary()
	if s.SecondPlayerProgress != nil || s.Questions != nil {
		t.Fatalf("expected nil progress and questions, got %+v", s)
	}
}

func TestActivateRequiresFiveQuestions(t *testing.T) {
	d := NewDuel("d1", NewPlayer("p1", "u1"), base)
	err := d.Activate(NewPlayer("p2", "u2"), sampleQuestions(4), base)
	if !errors.Is(err, ErrInsufficientQuestions) {
		t.Fatalf("expected insufficient questions, got %v", err)
	}
	if d.Status != StatusPendingSecondPlayer {
		t.Fatalf("failed activation must not change status")
	}
}

func TestActivateAssignsOrderedQuestions(t *testing.T) {
	d := activeDuel(t)
	if d.Status != StatusActive || d.StartedAt == nil || d.FinishedAt != nil {
		t.Fatalf("unexpected active duel %+v", d)
	}
	if len(d.Questions) != QuestionsPerDuel {
		t.Fatalf("expected 5 assignments, got %d", len(d.Questions))
	}
	for i, q := range d.Questions {
		if q.Position != i+1 {
			t.Fatalf("assignment %d has position %d", i, q.Position)
		}
	}
	if err := d.Activate(NewPlayer("p3", "u3"), sampleQuestions(5), base); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition on re-activation, got %v", err)
	}
}

func TestRecordAnswerFollowsPositionAndTrims(t *testing.T) {
	d := activeDuel(t)

	a := answer(t, &d, "u1", "  a1 ", base.Add(2*time.Second))
	if a.QuestionID != "q1" || a.Status != AnswerCorrect {
		t.Fatalf("expected correct answer to q1, got %+v", a)
	}
	a = answer(t, &d, "u1", "A2", base.Add(3*time.Second))
	if a.QuestionID != "q2" || a.Status != AnswerIncorrect {
		t.Fatalf("expected case-sensitive miss on q2, got %+v", a)
	}
	if d.FirstPlayer.Score != 1 {
		t.Fatalf("expected score 1, got %d", d.FirstPlayer.Score)
	}
	if d.SecondPlayer.Score != 0 || len(d.SecondPlayer.Answers) != 0 {
		t.Fatalf("second player must be untouched")
	}
}

func TestRecordAnswerRejectsSixthAnswer(t *testing.T) {
	d := activeDuel(t)
	for i := 1; i <= 5; i++ {
		answer(t, &d, "u1", fmt.Sprintf("a%d", i), base.Add(time.Duration(i)*time.Second))
	}
	if _, err := d.RecordAnswer("u1", "x", "a1", base.Add(time.Minute)); !errors.Is(err, ErrAlreadyAnsweredAll) {
		t.Fatalf("expected already answered all, got %v", err)
	}
	if len(d.FirstPlayer.Answers) != QuestionsPerDuel {
		t.Fatalf("answers must never exceed question count")
	}
}

func TestFinalizeFasterPlayerGetsBonus(t *testing.T) {
	d := activeDuel(t)
	for i := 1; i <= 5; i++ {
		at := base.Add(time.Duration(i*10) * time.Second)
		answer(t, &d, "u1", fmt.Sprintf("a%d", i), at)
		answer(t, &d, "u2", fmt.Sprintf("a%d", i), at.Add(time.Second))
	}
	if !d.BothAnsweredAll() {
		t.Fatalf("expected both players done")
	}
	if err := d.Finalize(base.Add(time.Minute)); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if d.FirstPlayer.Score != 6 || d.SecondPlayer.Score != 5 {
		t.Fatalf("expected 6-5, got %d-%d", d.FirstPlayer.Score, d.SecondPlayer.Score)
	}
	if *d.FirstPlayer.Outcome != OutcomeWin || *d.SecondPlayer.Outcome != OutcomeLose {
		t.Fatalf("unexpected outcomes %s/%s", *d.FirstPlayer.Outcome, *d.SecondPlayer.Outcome)
	}
	if d.Status != StatusFinished || d.FinishedAt == nil {
		t.Fatalf("expected finished duel")
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	d := activeDuel(t)
	for i := 1; i <= 5; i++ {
		answer(t, &d, "u1", "wrong", base.Add(time.Duration(i)*time.Second))
		answer(t, &d, "u2", fmt.Sprintf("a%d", i), base.Add(time.Duration(i)*time.Second+time.Millisecond))
	}
	if err := d.Finalize(base.Add(time.Minute)); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	finishedAt := *d.FinishedAt
	first, second := d.FirstPlayer.Score, d.SecondPlayer.Score

	if err := d.Finalize(base.Add(2 * time.Minute)); !errors.Is(err, ErrDuelFinished) {
		t.Fatalf("expected duel finished on second finalize, got %v", err)
	}
	if d.FirstPlayer.Score != first || d.SecondPlayer.Score != second || !d.FinishedAt.Equal(finishedAt) {
		t.Fatalf("second finalize must not change the duel")
	}
	// u1 was faster but has no correct answer; u2 is slower: nobody gets the bonus.
	if first != 0 || second != 5 {
		t.Fatalf("expected 0-5, got %d-%d", first, second)
	}
}

func TestFinalizeDrawAndEqualTimestamps(t *testing.T) {
	d := activeDuel(t)
	for i := 1; i <= 5; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		answer(t, &d, "u1", fmt.Sprintf("a%d", i), at)
		answer(t, &d, "u2", fmt.Sprintf("a%d", i), at)
	}
	if err := d.Finalize(base.Add(time.Minute)); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if d.FirstPlayer.Score != 5 || d.SecondPlayer.Score != 5 {
		t.Fatalf("equal timestamps must not award a bonus, got %d-%d", d.FirstPlayer.Score, d.SecondPlayer.Score)
	}
	if *d.FirstPlayer.Outcome != OutcomeDraw || *d.SecondPlayer.Outcome != OutcomeDraw {
		t.Fatalf("expected draw")
	}
}

func TestFillUnansweredAndBonusAgainstTimedOutPlayer(t *testing.T) {
	d := activeDuel(t)
	texts := []string{"a1", "a2", "a3", "no", "no"}
	for i, text := range texts {
		answer(t, &d, "u1", text, base.Add(time.Duration(i+2)*time.Second))
	}

	n := 0
	filled := d.FillUnanswered(d.SecondPlayer, func() string { n++; return fmt.Sprintf("f%d", n) }, base.Add(time.Minute))
	if len(filled) != 5 {
		t.Fatalf("expected 5 synthesized answers, got %d", len(filled))
	}
	for _, a := range filled {
		if a.Status != AnswerIncorrect || a.Body != TimeoutAnswerBody {
			t.Fatalf("unexpected synthesized answer %+v", a)
		}
	}
	if err := d.Finalize(base.Add(time.Minute)); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if d.FirstPlayer.Score != 4 || d.SecondPlayer.Score != 0 {
		t.Fatalf("expected 4-0, got %d-%d", d.FirstPlayer.Score, d.SecondPlayer.Score)
	}
	if *d.FirstPlayer.Outcome != OutcomeWin || *d.SecondPlayer.Outcome != OutcomeLose {
		t.Fatalf("unexpected outcomes")
	}
}

func TestCloneDoesNotShareAnswers(t *testing.T) {
	d := activeDuel(t)
	c := d.Clone()
	answer(t, &c, "u1", "a1", base.Add(time.Second))
	if len(d.FirstPlayer.Answers) != 0 {
		t.Fatalf("clone mutated original answers")
	}
	c.Questions[0].CorrectAnswers[0] = "changed"
	if d.Questions[0].CorrectAnswers[0] != "a1" {
		t.Fatalf("clone shares accepted answers")
	}
}

func TestStatisticsAdd(t *testing.T) {
	win, lose := OutcomeWin, OutcomeLose
	var s Statistics
	s.Add(Player{Score: 6, Outcome: &win})
	s.Add(Player{Score: 1, Outcome: &lose})
	s.Add(Player{Score: 3, Outcome: &win})
	if s.GamesCount != 3 || s.SumScore != 10 || s.WinsCount != 2 || s.LossesCount != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
	if s.AvgScores != 3.33 {
		t.Fatalf("expected avg 3.33, got %v", s.AvgScores)
	}
}

func TestLaggard(t *testing.T) {
	d := activeDuel(t)
	if _, _, ok := d.Laggard(); ok {
		t.Fatalf("nobody finished, expected no laggard")
	}
	for i := 1; i <= 5; i++ {
		answer(t, &d, "u2", fmt.Sprintf("a%d", i), base.Add(time.Duration(i)*time.Second))
	}
	answer(t, &d, "u1", "a1", base.Add(10*time.Second))

	lagging, finishedAt, ok := d.Laggard()
	if !ok || lagging.ParticipantID != "u1" {
		t.Fatalf("expected u1 lagging, got %+v ok=%v", lagging, ok)
	}
	if !finishedAt.Equal(base.Add(5 * time.Second)) {
		t.Fatalf("expected finish at 5th answer, got %v", finishedAt)
	}
}
