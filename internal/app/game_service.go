package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"classquiz-service/internal/domain"
)

// QuestionBank supplies the authoring set of questions (memory, Redis-cached,
// Postgres — the core does not care).
type QuestionBank interface {
	Questions(ctx context.Context) ([]domain.Question, error)
}

// ResultsArchive receives one immutable record per finished game. Writes are
// fire-and-forget from the core's point of view; the archive is never read back.
type ResultsArchive interface {
	AppendGame(ctx context.Context, record domain.GameRecord) error
}

// Options tunes the game service. Zero values fall back to the defaults the
// host UI was built around.
type Options struct {
	QuestionsPerGame int           // default 5
	DisconnectGrace  time.Duration // default 30s
	Clock            func() time.Time
}

// GameService owns the one process-wide game session. All mutations funnel
// through its mutex, so commands apply atomically and in arrival order; each
// mutation fans its domain events out to every subscriber before returning.
type GameService struct {
	bank    QuestionBank
	archive ResultsArchive
	perGame int
	grace   time.Duration
	now     func() time.Time

	connSeq atomic.Int64

	mu          sync.Mutex
	session     *session
	pool        *pool
	subscribers map[chan domain.Event]struct{}
}

func NewGameService(bank QuestionBank, archive ResultsArchive, opts Options) *GameService {
	if opts.QuestionsPerGame <= 0 {
		opts.QuestionsPerGame = 5
	}
	if opts.DisconnectGrace <= 0 {
		opts.DisconnectGrace = 30 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &GameService{
		bank:        bank,
		archive:     archive,
		perGame:     opts.QuestionsPerGame,
		grace:       opts.DisconnectGrace,
		now:         opts.Clock,
		session:     newSession(),
		pool:        newPool(),
		subscribers: make(map[chan domain.Event]struct{}),
	}
}

// NewConn issues a fresh connection identity for the transport layer.
func (g *GameService) NewConn() domain.ConnID {
	return domain.ConnID(g.connSeq.Add(1))
}

// Snapshot returns the full current state for a newly-connected observer.
// Reconnecting observers only ever get snapshots, never replayed events.
func (g *GameService) Snapshot(host bool) domain.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session.snapshot(host)
}

// Subscribe returns a channel receiving every subsequent domain event. The
// caller must invoke the returned cancel function to avoid leaks.
func (g *GameService) Subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 16)

	g.mu.Lock()
	g.subscribers[ch] = struct{}{}
	g.mu.Unlock()

	cancel := func() {
		g.mu.Lock()
		if _, ok := g.subscribers[ch]; ok {
			delete(g.subscribers, ch)
			close(ch)
		}
		g.mu.Unlock()
	}
	return ch, cancel
}

// Join resolves a join request to exactly one logical player: fresh join in
// the lobby, rebind of an already-active name, or restore from the
// provisional-disconnect set. The returned snapshot brings the joining
// connection up to date with whatever the game is doing right now.
func (g *GameService) Join(_ context.Context, conn domain.ConnID, name string) (domain.Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.session
	player, known := s.players[name]

	switch {
	case known:
		// Same name, possibly a stale tab plus a new one: retire the old
		// binding and point the name at this connection. Score and any
		// pending answer stay put. Replaying the same join is a no-op
		// beyond the idempotent re-broadcast below.
		if old, ok := s.connFor(name); ok && old != conn {
			delete(s.conns, old)
		}
		s.cancelGhost(name)
		s.conns[conn] = name
		player.Connected = true
	case s.phase == domain.PhaseLobby:
		s.joinSeq++
		s.players[name] = &domain.Player{
			Name:      name,
			JoinOrder: s.joinSeq,
			Connected: true,
		}
		s.conns[conn] = name
		log.Printf("player %s joined the game", name)
	default:
		// No new players once the questions are rolling; late joiners would
		// unfairly skip part of the game.
		return domain.Snapshot{}, domain.ErrGameInProgress
	}

	g.broadcastLocked(domain.Event{
		Type:    domain.EventPlayerJoined,
		Payload: domain.RosterPayload{Players: s.playerViews(), Name: name},
	})
	return s.snapshot(false), nil
}

// Disconnect moves the player bound to conn into the provisional-disconnect
// set and schedules their removal after the grace period. Players routinely
// flip screens or lose signal between questions; their progress survives until
// the grace period lapses without a rejoin.
func (g *GameService) Disconnect(conn domain.ConnID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.session
	name, ok := s.conns[conn]
	if !ok {
		return
	}
	delete(s.conns, conn)

	// If the name has already been rebound to a newer connection this is just
	// a stale tab closing; nothing to schedule.
	if _, rebound := s.connFor(name); rebound {
		return
	}
	player, ok := s.players[name]
	if !ok {
		return
	}
	player.Connected = false

	s.cancelGhost(name)
	gh := &ghost{name: name, disconnectedAt: g.now()}
	gh.timer = time.AfterFunc(g.grace, func() { g.expireGhost(gh) })
	s.disconnected[name] = gh
	log.Printf("player %s disconnected, holding state for %s", name, g.grace)
}

// expireGhost fires when a grace period lapses. It re-checks under the lock
// that this exact ghost is still pending, so a reconnection that raced the
// timer never produces a second removal or a duplicate departure event.
func (g *GameService) expireGhost(gh *ghost) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.session
	current, ok := s.disconnected[gh.name]
	if !ok || current != gh {
		return
	}
	delete(s.disconnected, gh.name)
	delete(s.players, gh.name)
	log.Printf("player %s removed after grace period", gh.name)

	g.broadcastLocked(domain.Event{
		Type:    domain.EventPlayerLeft,
		Payload: domain.RosterPayload{Players: s.playerViews(), Name: gh.name},
	})
}

// StartGame moves the lobby into play: draws this game's questions, zeroes
// every score and pending answer (each start begins a new scoring epoch), and
// publishes the first question.
func (g *GameService) StartGame(ctx context.Context) error {
	questions, err := g.bank.Questions(ctx)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.session
	if s.phase != domain.PhaseLobby {
		return domain.ErrGameInProgress
	}
	if len(s.players) == 0 {
		return domain.ErrNoPlayers
	}

	g.pool.setQuestions(questions)
	drawn := g.pool.draw(g.perGame)
	if len(drawn) == 0 {
		return domain.ErrNoQuestions
	}

	s.phase = domain.PhaseInProgress
	s.gameID = fmt.Sprintf("game-%d", g.now().UnixMilli())
	s.questions = drawn
	s.questionIndex = 0
	s.totalQuestions = len(drawn)
	s.responses = make(map[string][]domain.AnswerRecord)
	s.leaderboard = nil
	s.winners = nil
	for _, p := range s.players {
		p.Score = 0
		p.PendingAnswer = ""
		p.HasPending = false
	}
	log.Printf("game %s started with %d questions", s.gameID, s.totalQuestions)

	g.broadcastLocked(domain.Event{
		Type: domain.EventGameStarted,
		Payload: domain.QuestionPayload{
			Question:       drawn[0].View(),
			QuestionIndex:  0,
			TotalQuestions: s.totalQuestions,
			Players:        s.playerViews(),
		},
	})
	return nil
}

// SubmitAnswer stores the caller's selection for the in-flight question. A
// later submission for the same question overwrites the earlier one; only the
// latest selection is ever scored.
func (g *GameService) SubmitAnswer(_ context.Context, conn domain.ConnID, option string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.session
	q, ok := s.currentQuestion()
	if !ok {
		return domain.ErrNotInProgress
	}
	name, ok := s.conns[conn]
	if !ok {
		return domain.ErrUnknownPlayer
	}
	player, ok := s.players[name]
	if !ok {
		return domain.ErrUnknownPlayer
	}

	player.PendingAnswer = option
	player.HasPending = true
	s.recordAnswer(name, q, option, g.now())

	g.broadcastLocked(domain.Event{
		Type:    domain.EventPlayerAnswered,
		Payload: domain.AnsweredPayload{Name: name},
	})
	return nil
}

// Advance is the host's explicit move to the next question: score the round
// (absent answers count as incorrect, one point per correct answer), clear
// pending answers, and either publish the next question or finish the game.
func (g *GameService) Advance(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.session
	q, ok := s.currentQuestion()
	if !ok {
		return domain.ErrNotInProgress
	}

	correct := q.CorrectOption()
	changes := make([]domain.ScoreChange, 0, len(s.players))
	for _, p := range s.playersInJoinOrder() {
		prev := p.Score
		right := p.HasPending && p.PendingAnswer == correct
		if right {
			p.Score++
		}
		changes = append(changes, domain.ScoreChange{
			Name:     p.Name,
			Previous: prev,
			Score:    p.Score,
			Correct:  right,
		})
		p.PendingAnswer = ""
		p.HasPending = false
	}

	s.questionIndex++
	if s.questionIndex < s.totalQuestions {
		next := s.questions[s.questionIndex]
		g.broadcastLocked(domain.Event{
			Type: domain.EventNextQuestion,
			Payload: domain.QuestionPayload{
				Question:       next.View(),
				QuestionIndex:  s.questionIndex,
				TotalQuestions: s.totalQuestions,
				Players:        s.playerViews(),
				ScoreChanges:   changes,
			},
		})
		return nil
	}

	s.phase = domain.PhaseOver
	s.computeStandings()
	record := g.gameRecordLocked()
	log.Printf("game %s over, %d players on the leaderboard", s.gameID, len(s.leaderboard))

	// The live outcome is authoritative regardless of archive durability:
	// notify everyone first, persist in the background.
	g.broadcastLocked(domain.Event{
		Type: domain.EventGameOver,
		Payload: domain.GameOverPayload{
			Players:     s.playerViews(),
			Leaderboard: s.leaderboard,
			Winners:     s.winners,
		},
	})
	go func() {
		if err := g.archive.AppendGame(context.Background(), record); err != nil {
			log.Printf("failed to archive game %s: %v", record.GameID, err)
		}
	}()
	return nil
}

// Reset returns to an empty lobby from any phase. Always succeeds.
func (g *GameService) Reset(_ context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, gh := range g.session.disconnected {
		if gh.timer != nil {
			gh.timer.Stop()
		}
	}
	g.session = newSession()
	log.Printf("game reset")

	g.broadcastLocked(domain.Event{Type: domain.EventGameReset})
}

// gameRecordLocked copies the finished game into its immutable archive form.
func (g *GameService) gameRecordLocked() domain.GameRecord {
	s := g.session
	responses := make(map[string][]domain.AnswerRecord, len(s.responses))
	for name, records := range s.responses {
		responses[name] = append([]domain.AnswerRecord(nil), records...)
	}
	leaderboard := append([]domain.LeaderboardEntry(nil), s.leaderboard...)
	return domain.GameRecord{
		GameID:         s.gameID,
		FinishedAt:     g.now(),
		TotalQuestions: s.totalQuestions,
		Responses:      responses,
		Leaderboard:    leaderboard,
	}
}

func (g *GameService) broadcastLocked(events ...domain.Event) {
	for _, ev := range events {
		for ch := range g.subscribers {
			select {
			case ch <- ev:
			default:
				// Drop the oldest update rather than let a slow observer
				// block the whole game.
				select {
				case <-ch:
				default:
				}
				ch <- ev
			}
		}
	}
}
