package domain

import "math"

// Summary maps the aggregate to its participant-facing view.
func (d Duel) Summary() DuelSummary {
	summary := DuelSummary{
		ID:                  d.ID,
		FirstPlayerProgress: progressOf(d.FirstPlayer),
		Status:              d.Status,
		PairCreatedDate:     d.CreatedAt,
		StartGameDate:       d.StartedAt,
		FinishGameDate:      d.FinishedAt,
	}
	if d.SecondPlayer != nil {
		second := progressOf(*d.SecondPlayer)
		summary.SecondPlayerProgress = &second
	}
	if len(d.Questions) > 0 {
		summary.Questions = make([]QuestionView, 0, len(d.Questions))
		for _, q := range d.Questions {
			summary.Questions = append(summary.Questions, QuestionView{ID: q.QuestionID, Body: q.Body})
		}
	}
	return summary
}

func progressOf(p Player) PlayerProgress {
	answers := make([]AnswerResult, 0, len(p.Answers))
	for _, a := range p.Answers {
		answers = append(answers, a.Result())
	}
	return PlayerProgress{
		Answers: answers,
		Player:  PlayerRef{ID: p.ParticipantID},
		Score:   p.Score,
	}
}

// Result is the view returned to the participant who submitted the answer.
func (a Answer) Result() AnswerResult {
	return AnswerResult{QuestionID: a.QuestionID, AnswerStatus: a.Status, AddedAt: a.CreatedAt}
}

// Add folds one finished duel's player into the statistics.
func (s *Statistics) Add(p Player) {
	s.GamesCount++
	s.SumScore += p.Score
	if p.Outcome != nil {
		switch *p.Outcome {
		case OutcomeWin:
			s.WinsCount++
		case OutcomeLose:
			s.LossesCount++
		case OutcomeDraw:
			s.DrawsCount++
		}
	}
	*s = s.WithAverage()
}

// WithAverage recomputes AvgScores from the counters, rounded to two decimals.
func (s Statistics) WithAverage() Statistics {
	if s.GamesCount == 0 {
		s.AvgScores = 0
		return s
	}
	s.AvgScores = math.Round(float64(s.SumScore)/float64(s.GamesCount)*100) / 100
	return s
}
