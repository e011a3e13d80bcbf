package domain

import "errors"

var (
	// ErrAlreadyInDuel is returned when a participant joins while a pending or active duel is still live.
	ErrAlreadyInDuel = errors.New("participant is already in a pending or active duel")
	// ErrNotInActiveDuel is returned when a participant submits an answer without an active duel.
	ErrNotInActiveDuel = errors.New("participant is not in an active duel")
	// ErrAlreadyAnsweredAll is returned when a participant has no questions left to answer.
	ErrAlreadyAnsweredAll = errors.New("participant has already answered all questions")
	// ErrDuelNotFound indicates a duel could not be located.
	ErrDuelNotFound = errors.New("duel not found")
	// ErrForbidden is returned when a participant reads a duel they do not play in.
	ErrForbidden = errors.New("participant is not a player of this duel")
	// ErrInsufficientQuestions indicates the question pool cannot fill a duel.
	ErrInsufficientQuestions = errors.New("not enough published questions to start a duel")
	// ErrDuelFinished is returned when a finished duel is mutated again.
	ErrDuelFinished = errors.New("duel already finished")
	// ErrInvalidTransition guards the Pending -> Active -> Finished state machine.
	ErrInvalidTransition = errors.New("invalid duel status transition")
)
