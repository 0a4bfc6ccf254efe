package domain

// EventType names a domain event produced by a session mutation. The broadcast
// gateway serializes these verbatim as the websocket message type.
type EventType string

const (
	EventPlayerJoined   EventType = "playerJoined"
	EventPlayerLeft     EventType = "playerLeft"
	EventPlayerAnswered EventType = "playerAnswered"
	EventGameStarted    EventType = "gameStarted"
	EventNextQuestion   EventType = "nextQuestion"
	EventGameOver       EventType = "gameOver"
	EventGameReset      EventType = "gameReset"
)

// Event is one fan-out notification. Payload shape depends on Type; the
// correct answer never appears in player-facing payloads.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// RosterPayload accompanies playerJoined and playerLeft.
type RosterPayload struct {
	Players []PlayerView `json:"players"`
	Name    string       `json:"name"`
}

// AnsweredPayload accompanies playerAnswered. The selection itself is withheld
// so observers only learn that the player has locked in.
type AnsweredPayload struct {
	Name string `json:"name"`
}

// QuestionPayload accompanies gameStarted and nextQuestion.
type QuestionPayload struct {
	Question       QuestionView  `json:"question"`
	QuestionIndex  int           `json:"questionIndex"`
	TotalQuestions int           `json:"totalQuestions"`
	Players        []PlayerView  `json:"players"`
	ScoreChanges   []ScoreChange `json:"scoreChanges,omitempty"`
}

// ScoreChange reports the outcome of one player's round when the host advances.
type ScoreChange struct {
	Name     string `json:"name"`
	Previous int    `json:"previousScore"`
	Score    int    `json:"newScore"`
	Correct  bool   `json:"isCorrect"`
}

// GameOverPayload accompanies gameOver.
type GameOverPayload struct {
	Players     []PlayerView       `json:"players"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	Winners     []LeaderboardEntry `json:"winners"`
}
