package domain

import "time"

// Phase is the top-level state of the single process-wide game session.
type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhaseInProgress Phase = "inProgress"
	PhaseOver       Phase = "over"
)

// ConnID identifies one live transport connection. It is issued by the game
// service and freely rebindable: a player's name owns their state, the ConnID
// only points at whichever connection currently speaks for that name.
type ConnID int64

// Player is the durable per-name game state. Name is the identity key;
// everything else survives connection churn.
type Player struct {
	Name          string
	Score         int
	PendingAnswer string // option ID, meaningful only when HasPending
	HasPending    bool
	JoinOrder     int // arrival position, tie-breaker for the leaderboard
	Connected     bool
}

// PlayerView is the snapshot-friendly form of a Player.
type PlayerView struct {
	Name      string `json:"name"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
	Answered  bool   `json:"answered"`
}

// Option is one possible answer for a question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models an MCQ question with exactly one correct option and an
// optional image reference served by the static layer.
type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Image   string   `json:"image,omitempty"`
	Options []Option `json:"options"`
}

// CorrectOption returns the ID of the designated correct option.
func (q Question) CorrectOption() string {
	for _, opt := range q.Options {
		if opt.Correct {
			return opt.ID
		}
	}
	return ""
}

// QuestionView is the player-facing form of a question: same shape, correct
// flag withheld. Host-facing payloads carry the full Question instead.
type QuestionView struct {
	ID      string       `json:"id"`
	Prompt  string       `json:"prompt"`
	Image   string       `json:"image,omitempty"`
	Options []OptionView `json:"options"`
}

// OptionView hides the Correct flag.
type OptionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// View strips the correct-answer flag for broadcast to players.
func (q Question) View() QuestionView {
	opts := make([]OptionView, len(q.Options))
	for i, opt := range q.Options {
		opts[i] = OptionView{ID: opt.ID, Text: opt.Text}
	}
	return QuestionView{ID: q.ID, Prompt: q.Prompt, Image: q.Image, Options: opts}
}

// AnswerRecord is one player's final selection for one question of a game.
// Resubmitting before the host advances overwrites the record in place.
type AnswerRecord struct {
	QuestionIndex int       `json:"questionIndex"`
	QuestionID    string    `json:"questionId"`
	Prompt        string    `json:"prompt"`
	Selected      string    `json:"selected"`
	CorrectOption string    `json:"correctOption"`
	Correct       bool      `json:"correct"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// LeaderboardEntry is one row of the final ranking.
type LeaderboardEntry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// GameRecord is the immutable archive entry appended once per finished game.
type GameRecord struct {
	GameID         string                    `json:"gameId"`
	FinishedAt     time.Time                 `json:"finishedAt"`
	TotalQuestions int                       `json:"totalQuestions"`
	Responses      map[string][]AnswerRecord `json:"responses"`
	Leaderboard    []LeaderboardEntry        `json:"leaderboard"`
}

// StudentHistory aggregates one player's results across archived games.
type StudentHistory struct {
	Name    string   `json:"name"`
	GameIDs []string `json:"gameIds"`
}

// DashboardData is the teacher dashboard payload: every archived game plus the
// per-student index.
type DashboardData struct {
	Games    []GameRecord              `json:"quizzes"`
	Students map[string]StudentHistory `json:"students"`
}

// Snapshot is the full current-state view sent to every observer on connect.
// Late and returning observers only ever get snapshots, never event replay.
type Snapshot struct {
	Phase          Phase              `json:"phase"`
	Players        []PlayerView       `json:"players"`
	QuestionIndex  int                `json:"questionIndex"`
	TotalQuestions int                `json:"totalQuestions"`
	Question       *QuestionView      `json:"question,omitempty"`
	HostQuestion   *Question          `json:"hostQuestion,omitempty"`
	Leaderboard    []LeaderboardEntry `json:"leaderboard,omitempty"`
	Winners        []LeaderboardEntry `json:"winners,omitempty"`
}
