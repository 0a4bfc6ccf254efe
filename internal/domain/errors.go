package domain

import "errors"

var (
	// ErrGameInProgress is returned when an unknown name tries to join mid-game.
	ErrGameInProgress = errors.New("game already in progress")
	// ErrNoPlayers is returned when the host starts with an empty lobby.
	ErrNoPlayers = errors.New("need at least one player to start")
	// ErrNoQuestions is returned when the question bank cannot supply a single question.
	ErrNoQuestions = errors.New("question bank is empty")
	// ErrNotInProgress is returned for answers or advances outside a running game.
	ErrNotInProgress = errors.New("game is not in progress")
	// ErrUnknownPlayer is returned when a connection acts before joining.
	ErrUnknownPlayer = errors.New("player not recognized, please rejoin")
	// ErrQuestionNotFound indicates an admin request for a missing question ID.
	ErrQuestionNotFound = errors.New("question not found")
)
