package domain

import "time"

// QuestionsPerDuel is the fixed size of every duel's question set.
const QuestionsPerDuel = 5

// DuelStatus is the lifecycle state of a duel.
type DuelStatus string

const (
	StatusPendingSecondPlayer DuelStatus = "PendingSecondPlayer"
	StatusActive              DuelStatus = "Active"
	StatusFinished            DuelStatus = "Finished"
)

// Live reports whether the duel still blocks its players from joining another one.
func (s DuelStatus) Live() bool {
	return s == StatusPendingSecondPlayer || s == StatusActive
}

// AnswerStatus is the correctness verdict of a single answer.
type AnswerStatus string

const (
	AnswerCorrect   AnswerStatus = "Correct"
	AnswerIncorrect AnswerStatus = "Incorrect"
)

// Outcome is a player's final result in a finished duel.
type Outcome string

const (
	OutcomeWin  Outcome = "Win"
	OutcomeLose Outcome = "Lose"
	OutcomeDraw Outcome = "Draw"
)

// Question is a published quiz question with its accepted answers.
type Question struct {
	ID             string   `json:"id"`
	Body           string   `json:"body"`
	CorrectAnswers []string `json:"correctAnswers"`
}

// QuestionAssignment binds a question to a duel at a 1-based position.
// Body and accepted answers are snapshotted at activation.
type QuestionAssignment struct {
	QuestionID     string   `json:"questionId"`
	Position       int      `json:"position"`
	Body           string   `json:"body"`
	CorrectAnswers []string `json:"correctAnswers"`
}

// Answer is one player's immutable response to one assigned question.
type Answer struct {
	ID         string       `json:"id"`
	PlayerID   string       `json:"playerId"`
	QuestionID string       `json:"questionId"`
	Body       string       `json:"body"`
	Status     AnswerStatus `json:"status"`
	CreatedAt  time.Time    `json:"createdAt"`
}

// Player is a participant's scoring context inside exactly one duel.
type Player struct {
	ID            string   `json:"id"`
	ParticipantID string   `json:"participantId"`
	Score         int      `json:"score"`
	Outcome       *Outcome `json:"outcome,omitempty"`
	Answers       []Answer `json:"answers"`
}

// Duel is the aggregate root owning both players and the question set.
type Duel struct {
	ID           string               `json:"id"`
	FirstPlayer  Player               `json:"firstPlayer"`
	SecondPlayer *Player              `json:"secondPlayer,omitempty"`
	Status       DuelStatus           `json:"status"`
	Questions    []QuestionAssignment `json:"questions,omitempty"`
	CreatedAt    time.Time            `json:"createdAt"`
	StartedAt    *time.Time           `json:"startedAt,omitempty"`
	FinishedAt   *time.Time           `json:"finishedAt,omitempty"`
}

// AnswerResult is what a participant gets back after submitting an answer.
type AnswerResult struct {
	QuestionID   string       `json:"questionId"`
	AnswerStatus AnswerStatus `json:"answerStatus"`
	AddedAt      time.Time    `json:"addedAt"`
}

// PlayerRef identifies a participant in views.
type PlayerRef struct {
	ID string `json:"id"`
}

// PlayerProgress is the read view of one player inside a duel.
type PlayerProgress struct {
	Answers []AnswerResult `json:"answers"`
	Player  PlayerRef      `json:"player"`
	Score   int            `json:"score"`
}

// QuestionView is the read view of an assigned question; accepted answers stay hidden.
type QuestionView struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

// DuelSummary is the read view of a duel exposed to participants.
type DuelSummary struct {
	ID                   string          `json:"id"`
	FirstPlayerProgress  PlayerProgress  `json:"firstPlayerProgress"`
	SecondPlayerProgress *PlayerProgress `json:"secondPlayerProgress"`
	Questions            []QuestionView  `json:"questions"`
	Status               DuelStatus      `json:"status"`
	PairCreatedDate      time.Time       `json:"pairCreatedDate"`
	StartGameDate        *time.Time      `json:"startGameDate"`
	FinishGameDate       *time.Time      `json:"finishGameDate"`
}

// Statistics aggregates a participant's finished duels.
type Statistics struct {
	SumScore    int     `json:"sumScore"`
	AvgScores   float64 `json:"avgScores"`
	GamesCount  int     `json:"gamesCount"`
	WinsCount   int     `json:"winsCount"`
	LossesCount int     `json:"lossesCount"`
	DrawsCount  int     `json:"drawsCount"`
}

// LeaderboardEntry is one row of the top-players table.
type LeaderboardEntry struct {
	Statistics
	Player PlayerRef `json:"player"`
}

// Page is a paginated slice of items.
type Page[T any] struct {
	PagesCount int `json:"pagesCount"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
	Items      []T `json:"items"`
}

// DuelEvent announces a duel lifecycle change to subscribers.
type DuelEvent struct {
	Type string      `json:"type"`
	Duel DuelSummary `json:"duel"`
	At   time.Time   `json:"at"`
}

const (
	EventDuelCreated   = "duel.created"
	EventDuelActivated = "duel.activated"
	EventDuelAnswered  = "duel.answered"
	EventDuelFinished  = "duel.finished"
)
