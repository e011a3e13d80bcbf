package domain

import (
	"slices"
	"strings"
	"time"
)

// TimeoutAnswerBody is the body recorded for answers synthesized by the reaper.
const TimeoutAnswerBody = "incorrect"

// NewPlayer creates a fresh player with a zero score.
func NewPlayer(id, participantID string) Player {
	return Player{ID: id, ParticipantID: participantID, Answers: []Answer{}}
}

// NewDuel creates a duel waiting for its second player.
func NewDuel(id string, first Player, now time.Time) Duel {
	return Duel{
		ID:          id,
		FirstPlayer: first,
		Status:      StatusPendingSecondPlayer,
		CreatedAt:   now,
	}
}

// Activate seats the second player, fixes the question set and starts the duel.
func (d *Duel) Activate(second Player, questions []Question, now time.Time) error {
	if d.Status != StatusPendingSecondPlayer {
		return ErrInvalidTransition
	}
	if len(questions) < QuestionsPerDuel {
		return ErrInsufficientQuestions
	}

	assignments := make([]QuestionAssignment, 0, QuestionsPerDuel)
	for i, q := range questions[:QuestionsPerDuel] {
		assignments = append(assignments, QuestionAssignment{
			QuestionID:     q.ID,
			Position:       i + 1,
			Body:           q.Body,
			CorrectAnswers: slices.Clone(q.CorrectAnswers),
		})
	}

	started := now
	d.SecondPlayer = &second
	d.Questions = assignments
	d.Status = StatusActive
	d.StartedAt = &started
	return nil
}

// HasParticipant reports whether the participant plays in this duel.
func (d *Duel) HasParticipant(participantID string) bool {
	return d.PlayerOf(participantID) != nil
}

// PlayerOf returns the participant's player, or nil.
func (d *Duel) PlayerOf(participantID string) *Player {
	if d.FirstPlayer.ParticipantID == participantID {
		return &d.FirstPlayer
	}
	if d.SecondPlayer != nil && d.SecondPlayer.ParticipantID == participantID {
		return d.SecondPlayer
	}
	return nil
}

// Players returns pointers to the seated players, first player first.
func (d *Duel) Players() []*Player {
	if d.SecondPlayer == nil {
		return []*Player{&d.FirstPlayer}
	}
	return []*Player{&d.FirstPlayer, d.SecondPlayer}
}

// AnsweredAll reports whether the player has an answer for every assigned question.
func (d *Duel) AnsweredAll(p *Player) bool {
	return len(d.Questions) > 0 && len(p.Answers) >= len(d.Questions)
}

// BothAnsweredAll reports whether the duel is ready to be finalized by the evaluator.
func (d *Duel) BothAnsweredAll() bool {
	return d.SecondPlayer != nil && d.AnsweredAll(&d.FirstPlayer) && d.AnsweredAll(d.SecondPlayer)
}

// NextQuestion returns the lowest-position assignment the player has not answered yet.
func (d *Duel) NextQuestion(p *Player) (QuestionAssignment, bool) {
	pending := d.unanswered(p)
	if len(pending) == 0 {
		return QuestionAssignment{}, false
	}
	return pending[0], true
}

func (d *Duel) unanswered(p *Player) []QuestionAssignment {
	answered := make(map[string]struct{}, len(p.Answers))
	for _, a := range p.Answers {
		answered[a.QuestionID] = struct{}{}
	}
	pending := make([]QuestionAssignment, 0, len(d.Questions))
	for _, q := range d.Questions {
		if _, ok := answered[q.QuestionID]; !ok {
			pending = append(pending, q)
		}
	}
	slices.SortFunc(pending, func(a, b QuestionAssignment) int { return a.Position - b.Position })
	return pending
}

// IsCorrect checks the trimmed text against the accepted answers, case-sensitively.
func IsCorrect(q QuestionAssignment, text string) bool {
	return slices.Contains(q.CorrectAnswers, strings.TrimSpace(text))
}

// RecordAnswer evaluates text against the participant's current question,
// bumps the score on a correct answer and appends the answer.
func (d *Duel) RecordAnswer(participantID, answerID, text string, now time.Time) (Answer, error) {
	if d.Status == StatusFinished {
		return Answer{}, ErrDuelFinished
	}
	if d.Status != StatusActive {
		return Answer{}, ErrNotInActiveDuel
	}
	player := d.PlayerOf(participantID)
	if player == nil {
		return Answer{}, ErrNotInActiveDuel
	}
	question, ok := d.NextQuestion(player)
	if !ok {
		return Answer{}, ErrAlreadyAnsweredAll
	}

	status := AnswerIncorrect
	if IsCorrect(question, text) {
		status = AnswerCorrect
		player.Score++
	}
	answer := Answer{
		ID:         answerID,
		PlayerID:   player.ID,
		QuestionID: question.QuestionID,
		Body:       text,
		Status:     status,
		CreatedAt:  now,
	}
	player.Answers = append(player.Answers, answer)
	return answer, nil
}

// FillUnanswered appends an Incorrect answer for every question the player skipped.
// Scores are untouched.
func (d *Duel) FillUnanswered(p *Player, newID func() string, now time.Time) []Answer {
	pending := d.unanswered(p)
	filled := make([]Answer, 0, len(pending))
	for _, q := range pending {
		answer := Answer{
			ID:         newID(),
			PlayerID:   p.ID,
			QuestionID: q.QuestionID,
			Body:       TimeoutAnswerBody,
			Status:     AnswerIncorrect,
			CreatedAt:  now,
		}
		p.Answers = append(p.Answers, answer)
		filled = append(filled, answer)
	}
	return filled
}

// LastAnswerAt returns the timestamp of the player's latest answer.
func (p *Player) LastAnswerAt() (time.Time, bool) {
	if len(p.Answers) == 0 {
		return time.Time{}, false
	}
	last := p.Answers[0].CreatedAt
	for _, a := range p.Answers[1:] {
		if a.CreatedAt.After(last) {
			last = a.CreatedAt
		}
	}
	return last, true
}

func (p *Player) hasCorrect() bool {
	for _, a := range p.Answers {
		if a.Status == AnswerCorrect {
			return true
		}
	}
	return false
}

// Finalize applies the speed bonus, settles outcomes and finishes the duel.
// A finished duel is left untouched and ErrDuelFinished is returned.
func (d *Duel) Finalize(now time.Time) error {
	if d.Status == StatusFinished {
		return ErrDuelFinished
	}
	if d.Status != StatusActive || d.SecondPlayer == nil {
		return ErrInvalidTransition
	}

	d.applySpeedBonus()
	d.settleOutcomes()

	finished := now
	d.Status = StatusFinished
	d.FinishedAt = &finished
	return nil
}

func (d *Duel) applySpeedBonus() {
	first, second := &d.FirstPlayer, d.SecondPlayer
	switch {
	case d.earnsBonus(first, second):
		first.Score++
	case d.earnsBonus(second, first):
		second.Score++
	}
}

// earnsBonus: answered everything, at least one correct, and strictly faster
// than the opponent. An opponent without answers counts as infinitely slow.
func (d *Duel) earnsBonus(p, opponent *Player) bool {
	if !d.AnsweredAll(p) || !p.hasCorrect() {
		return false
	}
	last, _ := p.LastAnswerAt()
	opponentLast, ok := opponent.LastAnswerAt()
	if !ok {
		return true
	}
	return last.Before(opponentLast)
}

func (d *Duel) settleOutcomes() {
	first, second := &d.FirstPlayer, d.SecondPlayer
	var a, b Outcome
	switch {
	case first.Score > second.Score:
		a, b = OutcomeWin, OutcomeLose
	case first.Score < second.Score:
		a, b = OutcomeLose, OutcomeWin
	default:
		a, b = OutcomeDraw, OutcomeDraw
	}
	first.Outcome = &a
	second.Outcome = &b
}

// Clone returns a deep copy so stores never share slices with callers.
func (d Duel) Clone() Duel {
	out := d
	out.FirstPlayer = d.FirstPlayer.clone()
	if d.SecondPlayer != nil {
		second := d.SecondPlayer.clone()
		out.SecondPlayer = &second
	}
	if d.Questions != nil {
		out.Questions = make([]QuestionAssignment, len(d.Questions))
		for i, q := range d.Questions {
			q.CorrectAnswers = slices.Clone(q.CorrectAnswers)
			out.Questions[i] = q
		}
	}
	if d.StartedAt != nil {
		t := *d.StartedAt
		out.StartedAt = &t
	}
	if d.FinishedAt != nil {
		t := *d.FinishedAt
		out.FinishedAt = &t
	}
	return out
}

func (p Player) clone() Player {
	out := p
	out.Answers = slices.Clone(p.Answers)
	if out.Answers == nil {
		out.Answers = []Answer{}
	}
	if p.Outcome != nil {
		o := *p.Outcome
		out.Outcome = &o
	}
	return out
}

// Laggard returns the player still answering when exactly one player has
// answered everything, together with the moment the other one finished.
func (d *Duel) Laggard() (*Player, time.Time, bool) {
	if d.SecondPlayer == nil {
		return nil, time.Time{}, false
	}
	firstDone, secondDone := d.AnsweredAll(&d.FirstPlayer), d.AnsweredAll(d.SecondPlayer)
	if firstDone == secondDone {
		return nil, time.Time{}, false
	}
	done, lagging := &d.FirstPlayer, d.SecondPlayer
	if secondDone {
		done, lagging = d.SecondPlayer, &d.FirstPlayer
	}
	finishedAt, ok := done.LastAnswerAt()
	if !ok {
		return nil, time.Time{}, false
	}
	return lagging, finishedAt, true
}
