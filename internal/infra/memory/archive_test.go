package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"classquiz-service/internal/domain"
)

func TestArchiveIndexesByStudent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "students.json")

	archive, err := NewResultsArchive(path)
	if err != nil {
		t.Fatalf("new archive: %v", err)
	}

	record := domain.GameRecord{
		GameID:         "game-1",
		FinishedAt:     time.Now(),
		TotalQuestions: 3,
		Responses: map[string][]domain.AnswerRecord{
			"alice": {{QuestionIndex: 0, Selected: "a", Correct: true}},
			"bob":   {{QuestionIndex: 0, Selected: "b", Correct: false}},
		},
		Leaderboard: []domain.LeaderboardEntry{{Name: "alice", Score: 1}, {Name: "bob", Score: 0}},
	}
	if err := archive.AppendGame(ctx, record); err != nil {
		t.Fatalf("append: %v", err)
	}

	// Reload from disk to verify persistence shape.
	reloaded, err := NewResultsArchive(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	data, err := reloaded.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if len(data.Games) != 1 || data.Games[0].GameID != "game-1" {
		t.Fatalf("expected one archived game, got %+v", data.Games)
	}
	if got := data.Students["alice"].GameIDs; len(got) != 1 || got[0] != "game-1" {
		t.Fatalf("expected alice indexed to game-1, got %+v", got)
	}
	if _, ok := data.Students["bob"]; !ok {
		t.Fatalf("expected bob in student index")
	}
}
