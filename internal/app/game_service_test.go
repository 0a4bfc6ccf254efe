package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"classquiz-service/internal/app"
	"classquiz-service/internal/domain"
	"classquiz-service/internal/infra/memory"
)

func TestStartRequiresPlayersAndQuestions(t *testing.T) {
	ctx := context.Background()

	svc, _ := newTestService(t, testQuestions(1), app.Options{})
	if err := svc.StartGame(ctx); err != domain.ErrNoPlayers {
		t.Fatalf("expected no-players error, got %v", err)
	}

	empty, _ := newTestService(t, nil, app.Options{})
	if _, err := empty.Join(ctx, empty.NewConn(), "alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := empty.StartGame(ctx); err != domain.ErrNoQuestions {
		t.Fatalf("expected no-questions error, got %v", err)
	}
}

func TestLateJoinRejectedForUnknownName(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, testQuestions(1), app.Options{})

	if _, err := svc.Join(ctx, svc.NewConn(), "alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := svc.StartGame(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := svc.Join(ctx, svc.NewConn(), "bob"); err != domain.ErrGameInProgress {
		t.Fatalf("expected game-in-progress rejection, got %v", err)
	}
	// A known name may still rejoin mid-game.
	if _, err := svc.Join(ctx, svc.NewConn(), "alice"); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
}

func TestDuplicateJoinRebindsConnection(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, testQuestions(1), app.Options{})

	conn1 := svc.NewConn()
	conn2 := svc.NewConn()
	if _, err := svc.Join(ctx, conn1, "alice"); err != nil {
		t.Fatalf("join conn1: %v", err)
	}
	if _, err := svc.Join(ctx, conn2, "alice"); err != nil {
		t.Fatalf("join conn2: %v", err)
	}
	// Replaying the same join must stay a no-op.
	if _, err := svc.Join(ctx, conn2, "alice"); err != nil {
		t.Fatalf("replayed join: %v", err)
	}

	snap := svc.Snapshot(false)
	if len(snap.Players) != 1 || snap.Players[0].Name != "alice" {
		t.Fatalf("expected exactly one alice, got %+v", snap.Players)
	}

	if err := svc.StartGame(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	// The newest connection speaks for alice; the stale one was retired.
	if err := svc.SubmitAnswer(ctx, conn2, "b"); err != nil {
		t.Fatalf("submit via conn2: %v", err)
	}
	if err := svc.SubmitAnswer(ctx, conn1, "b"); err != domain.ErrUnknownPlayer {
		t.Fatalf("expected stale handle rejected, got %v", err)
	}
}

func TestLateAnswerOverwritesEarlierOne(t *testing.T) {
	ctx := context.Background()
	svc, archive := newTestService(t, testQuestions(1), app.Options{})

	conn := svc.NewConn()
	mustJoin(t, svc, conn, "alice")
	mustStart(t, svc)

	// "a" is wrong, "b" is right; only the last submission may count.
	if err := svc.SubmitAnswer(ctx, conn, "a"); err != nil {
		t.Fatalf("submit a: %v", err)
	}
	if err := svc.SubmitAnswer(ctx, conn, "b"); err != nil {
		t.Fatalf("submit b: %v", err)
	}
	if err := svc.Advance(ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}

	snap := svc.Snapshot(false)
	if snap.Phase != domain.PhaseOver {
		t.Fatalf("expected game over, got %s", snap.Phase)
	}
	if snap.Leaderboard[0].Score != 1 {
		t.Fatalf("expected score 1 from latest answer, got %d", snap.Leaderboard[0].Score)
	}

	record := archive.wait(t)
	if got := record.Responses["alice"]; len(got) != 1 || got[0].Selected != "b" || !got[0].Correct {
		t.Fatalf("expected one overwritten record selecting b, got %+v", got)
	}
}

func TestLeaderboardTiesKeepJoinOrder(t *testing.T) {
	ctx := context.Background()
	svc, archive := newTestService(t, testQuestions(2), app.Options{QuestionsPerGame: 2})

	conns := map[string]domain.ConnID{}
	for _, name := range []string{"A", "B", "C"} {
		conn := svc.NewConn()
		mustJoin(t, svc, conn, name)
		conns[name] = conn
	}
	mustStart(t, svc)

	// Everyone answers both questions correctly: all finish tied at 2.
	for round := 0; round < 2; round++ {
		for _, name := range []string{"C", "A", "B"} { // submission order must not matter
			if err := svc.SubmitAnswer(ctx, conns[name], "b"); err != nil {
				t.Fatalf("submit %s: %v", name, err)
			}
		}
		if err := svc.Advance(ctx); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}

	snap := svc.Snapshot(false)
	want := []string{"A", "B", "C"}
	for i, name := range want {
		if snap.Leaderboard[i].Name != name || snap.Leaderboard[i].Score != 2 {
			t.Fatalf("expected %s tied at 2 in slot %d, got %+v", name, i, snap.Leaderboard)
		}
	}
	if len(snap.Winners) != 3 {
		t.Fatalf("expected all three winners, got %+v", snap.Winners)
	}

	// Total points awarded must equal the number of correct answer records.
	record := archive.wait(t)
	correct := 0
	for _, records := range record.Responses {
		for _, rec := range records {
			if rec.Correct {
				correct++
			}
		}
	}
	total := 0
	for _, e := range snap.Leaderboard {
		total += e.Score
	}
	if total != correct {
		t.Fatalf("score sum %d != correct records %d", total, correct)
	}
}

func TestAllIncorrectGameCrownsEveryone(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, testQuestions(1), app.Options{})

	alice := svc.NewConn()
	bob := svc.NewConn()
	mustJoin(t, svc, alice, "alice")
	mustJoin(t, svc, bob, "bob")
	mustStart(t, svc)

	if err := svc.SubmitAnswer(ctx, alice, "a"); err != nil { // wrong
		t.Fatalf("submit: %v", err)
	}
	// bob never answers at all
	if err := svc.Advance(ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}

	snap := svc.Snapshot(false)
	if len(snap.Winners) != 2 {
		t.Fatalf("expected both players as winners at zero, got %+v", snap.Winners)
	}
	for _, w := range snap.Winners {
		if w.Score != 0 {
			t.Fatalf("expected zero scores, got %+v", snap.Winners)
		}
	}
}

func TestGameTotalShrinksToPoolSize(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, testQuestions(3), app.Options{QuestionsPerGame: 5})

	conn := svc.NewConn()
	mustJoin(t, svc, conn, "alice")
	mustStart(t, svc)

	snap := svc.Snapshot(false)
	if snap.TotalQuestions != 3 {
		t.Fatalf("expected granted total 3, got %d", snap.TotalQuestions)
	}

	for i := 0; i < 3; i++ {
		if err := svc.Advance(ctx); err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
	}
	if snap := svc.Snapshot(false); snap.Phase != domain.PhaseOver || snap.QuestionIndex != 3 {
		t.Fatalf("expected over at index 3, got phase=%s index=%d", snap.Phase, snap.QuestionIndex)
	}
	if err := svc.Advance(ctx); err != domain.ErrNotInProgress {
		t.Fatalf("expected advance rejected after over, got %v", err)
	}
}

func TestReconnectWithinGraceKeepsScoreAndPendingAnswer(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, testQuestions(4), app.Options{QuestionsPerGame: 4})

	conn := svc.NewConn()
	mustJoin(t, svc, conn, "alice")
	mustStart(t, svc)

	// Three correct rounds bring alice to score 3.
	for i := 0; i < 3; i++ {
		if err := svc.SubmitAnswer(ctx, conn, "b"); err != nil {
			t.Fatalf("submit round %d: %v", i, err)
		}
		if err := svc.Advance(ctx); err != nil {
			t.Fatalf("advance round %d: %v", i, err)
		}
	}
	// Pending (unscored) answer on the fourth question, then the tab drops.
	if err := svc.SubmitAnswer(ctx, conn, "b"); err != nil {
		t.Fatalf("submit pending: %v", err)
	}
	svc.Disconnect(conn)

	snap := svc.Snapshot(false)
	if len(snap.Players) != 1 || snap.Players[0].Connected {
		t.Fatalf("expected alice held as disconnected, got %+v", snap.Players)
	}

	conn2 := svc.NewConn()
	joined, err := svc.Join(ctx, conn2, "alice")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if joined.Players[0].Score != 3 || !joined.Players[0].Answered {
		t.Fatalf("expected score 3 and pending answer retained, got %+v", joined.Players[0])
	}

	// The retained pending answer still scores when the host advances.
	if err := svc.Advance(ctx); err != nil {
		t.Fatalf("final advance: %v", err)
	}
	final := svc.Snapshot(false)
	if final.Leaderboard[0].Score != 4 {
		t.Fatalf("expected final score 4, got %+v", final.Leaderboard)
	}
}

func TestGraceExpiryRemovesPlayerExactlyOnce(t *testing.T) {
	svc, _ := newTestService(t, testQuestions(1), app.Options{DisconnectGrace: 30 * time.Millisecond})

	events, cancel := svc.Subscribe()
	defer cancel()

	conn := svc.NewConn()
	mustJoin(t, svc, conn, "bob")
	svc.Disconnect(conn)

	departures := 0
	deadline := time.After(2 * time.Second)
	// Wait past the grace period and drain events; exactly one departure.
	settle := time.After(200 * time.Millisecond)
	for done := false; !done; {
		select {
		case ev := <-events:
			if ev.Type == domain.EventPlayerLeft {
				departures++
			}
		case <-settle:
			done = true
		case <-deadline:
			t.Fatal("timed out waiting for events to settle")
		}
	}
	if departures != 1 {
		t.Fatalf("expected exactly one playerLeft, got %d", departures)
	}
	if snap := svc.Snapshot(false); len(snap.Players) != 0 {
		t.Fatalf("expected empty roster after grace expiry, got %+v", snap.Players)
	}
}

func TestResetReturnsToEmptyLobby(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, testQuestions(2), app.Options{QuestionsPerGame: 2})

	conn := svc.NewConn()
	mustJoin(t, svc, conn, "alice")
	mustStart(t, svc)

	svc.Reset(ctx)

	snap := svc.Snapshot(false)
	if snap.Phase != domain.PhaseLobby || len(snap.Players) != 0 || snap.TotalQuestions != 0 {
		t.Fatalf("expected empty lobby after reset, got %+v", snap)
	}
	// Reset from the lobby is equally fine.
	svc.Reset(ctx)
}

func TestArchiveFailureDoesNotBlockGameOver(t *testing.T) {
	ctx := context.Background()
	bank, _ := memory.NewQuestionBank("")
	bank.Seed(testQuestions(1))
	archive := &recordingArchive{records: make(chan domain.GameRecord, 1), err: errors.New("disk full")}
	svc := app.NewGameService(bank, archive, app.Options{})

	conn := svc.NewConn()
	mustJoin(t, svc, conn, "alice")
	mustStart(t, svc)
	if err := svc.Advance(ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}

	if snap := svc.Snapshot(false); snap.Phase != domain.PhaseOver {
		t.Fatalf("expected game over despite archive failure, got %s", snap.Phase)
	}
	archive.wait(t) // the write was still attempted
}

func mustJoin(t *testing.T, svc *app.GameService, conn domain.ConnID, name string) {
	t.Helper()
	if _, err := svc.Join(context.Background(), conn, name); err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
}

func mustStart(t *testing.T, svc *app.GameService) {
	t.Helper()
	if err := svc.StartGame(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
}

// recordingArchive captures archive writes so tests can assert on them; the
// write happens on a background goroutine after gameOver.
type recordingArchive struct {
	records chan domain.GameRecord
	err     error
}

func (a *recordingArchive) AppendGame(_ context.Context, record domain.GameRecord) error {
	a.records <- record
	return a.err
}

func (a *recordingArchive) wait(t *testing.T) domain.GameRecord {
	t.Helper()
	select {
	case record := <-a.records:
		return record
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for archive write")
		return domain.GameRecord{}
	}
}

func newTestService(t *testing.T, questions []domain.Question, opts app.Options) (*app.GameService, *recordingArchive) {
	t.Helper()
	bank, err := memory.NewQuestionBank("")
	if err != nil {
		t.Fatalf("new bank: %v", err)
	}
	bank.Seed(questions)
	archive := &recordingArchive{records: make(chan domain.GameRecord, 4)}
	return app.NewGameService(bank, archive, opts), archive
}

// testQuestions builds n questions where option "b" is always the correct one.
func testQuestions(n int) []domain.Question {
	questions := make([]domain.Question, n)
	for i := range questions {
		questions[i] = domain.Question{
			ID:     "q" + string(rune('1'+i)),
			Prompt: "Select the right option",
			Options: []domain.Option{
				{ID: "a", Text: "Wrong"},
				{ID: "b", Text: "Right", Correct: true},
			},
		}
	}
	return questions
}
