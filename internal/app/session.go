package app

import (
	"sort"
	"time"

	"classquiz-service/internal/domain"
)

// session is the authoritative state of the single process-wide game. It is
// never touched outside GameService's mutex; every method here assumes the
// caller holds that lock.
type session struct {
	gameID         string
	phase          domain.Phase
	questions      []domain.Question
	questionIndex  int
	totalQuestions int

	// players keyed by name; a disconnected player stays here (Connected=false)
	// until the grace period removes them for good.
	players map[string]*domain.Player
	joinSeq int

	// conns maps each live connection to the name it speaks for. Rebinding a
	// name to a new connection retires the old entry without touching the
	// player's state.
	conns map[domain.ConnID]string

	// disconnected holds the provisional-disconnect records, keyed by name.
	disconnected map[string]*ghost

	// responses accumulates per-player answer records for the current game;
	// resubmissions for the same question overwrite in place.
	responses map[string][]domain.AnswerRecord

	leaderboard []domain.LeaderboardEntry
	winners     []domain.LeaderboardEntry
}

// ghost is a provisionally-disconnected player awaiting reconnection. The
// timer is the cancelable removal scheduled for when the grace period lapses.
type ghost struct {
	name           string
	disconnectedAt time.Time
	timer          *time.Timer
}

func newSession() *session {
	return &session{
		phase:        domain.PhaseLobby,
		players:      make(map[string]*domain.Player),
		conns:        make(map[domain.ConnID]string),
		disconnected: make(map[string]*ghost),
		responses:    make(map[string][]domain.AnswerRecord),
	}
}

// connFor returns the connection currently bound to name, if any.
func (s *session) connFor(name string) (domain.ConnID, bool) {
	for conn, n := range s.conns {
		if n == name {
			return conn, true
		}
	}
	return 0, false
}

// cancelGhost stops the pending removal for name. Stopping an already-fired
// timer is harmless; the expiry path re-checks the map before acting.
func (s *session) cancelGhost(name string) {
	if g, ok := s.disconnected[name]; ok {
		if g.timer != nil {
			g.timer.Stop()
		}
		delete(s.disconnected, name)
	}
}

// currentQuestion returns the in-flight question, or false outside a game.
func (s *session) currentQuestion() (domain.Question, bool) {
	if s.phase != domain.PhaseInProgress || s.questionIndex >= len(s.questions) {
		return domain.Question{}, false
	}
	return s.questions[s.questionIndex], true
}

// recordAnswer stores or overwrites the player's answer record for the
// in-flight question; only the latest submission per question is ever scored.
func (s *session) recordAnswer(name string, q domain.Question, option string, at time.Time) {
	rec := domain.AnswerRecord{
		QuestionIndex: s.questionIndex,
		QuestionID:    q.ID,
		Prompt:        q.Prompt,
		Selected:      option,
		CorrectOption: q.CorrectOption(),
		Correct:       option == q.CorrectOption(),
		SubmittedAt:   at,
	}
	records := s.responses[name]
	for i := range records {
		if records[i].QuestionIndex == s.questionIndex {
			records[i] = rec
			return
		}
	}
	s.responses[name] = append(records, rec)
}

// playerViews renders the roster in join order. Disconnected players remain
// visible until their grace period expires.
func (s *session) playerViews() []domain.PlayerView {
	ordered := s.playersInJoinOrder()
	views := make([]domain.PlayerView, len(ordered))
	for i, p := range ordered {
		views[i] = domain.PlayerView{
			Name:      p.Name,
			Score:     p.Score,
			Connected: p.Connected,
			Answered:  p.HasPending,
		}
	}
	return views
}

func (s *session) playersInJoinOrder() []*domain.Player {
	ordered := make([]*domain.Player, 0, len(s.players))
	for _, p := range s.players {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].JoinOrder < ordered[j].JoinOrder
	})
	return ordered
}

// computeStandings fills the final leaderboard and winners. The sort is stable
// over join order, so tied players rank by who arrived first; winners are
// everyone at the maximum score, which in an all-wrong game means everyone at
// zero.
func (s *session) computeStandings() {
	ordered := s.playersInJoinOrder()
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})

	s.leaderboard = make([]domain.LeaderboardEntry, len(ordered))
	for i, p := range ordered {
		s.leaderboard[i] = domain.LeaderboardEntry{Name: p.Name, Score: p.Score}
	}

	s.winners = nil
	if len(s.leaderboard) > 0 {
		max := s.leaderboard[0].Score
		for _, e := range s.leaderboard {
			if e.Score == max {
				s.winners = append(s.winners, e)
			}
		}
	}
}

// snapshot renders the full current state for a newly-connected observer.
// Host snapshots carry the raw question (correct flag included); player
// snapshots get the redacted view.
func (s *session) snapshot(host bool) domain.Snapshot {
	snap := domain.Snapshot{
		Phase:          s.phase,
		Players:        s.playerViews(),
		QuestionIndex:  s.questionIndex,
		TotalQuestions: s.totalQuestions,
	}
	if q, ok := s.currentQuestion(); ok {
		if host {
			hq := q
			snap.HostQuestion = &hq
		}
		view := q.View()
		snap.Question = &view
	}
	if s.phase == domain.PhaseOver {
		snap.Leaderboard = s.leaderboard
		snap.Winners = s.winners
	}
	return snap
}
