package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"classquiz-service/internal/domain"
)

// ResultsArchive appends finished games to memory and, when given a path,
// mirrors the whole archive to a JSON file after every append. The file keeps
// the historical shape the teacher dashboard reads: a quizzes list plus a
// per-student index.
type ResultsArchive struct {
	path string

	mu       sync.RWMutex
	games    []domain.GameRecord
	students map[string]domain.StudentHistory
}

type archiveFile struct {
	Students map[string]domain.StudentHistory `json:"students"`
	Quizzes  []domain.GameRecord              `json:"quizzes"`
}

// NewResultsArchive loads any existing archive from path; an empty path keeps
// the archive purely in memory.
func NewResultsArchive(path string) (*ResultsArchive, error) {
	a := &ResultsArchive{path: path, students: make(map[string]domain.StudentHistory)}
	if path == "" {
		return a, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return a, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read results archive: %w", err)
	}
	var file archiveFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse results archive: %w", err)
	}
	a.games = file.Quizzes
	if file.Students != nil {
		a.students = file.Students
	}
	return a, nil
}

// AppendGame implements app.ResultsArchive. Records are immutable once
// appended; the per-student index is updated alongside.
func (a *ResultsArchive) AppendGame(_ context.Context, record domain.GameRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.games = append(a.games, record)
	for name := range record.Responses {
		history, ok := a.students[name]
		if !ok {
			history = domain.StudentHistory{Name: name}
		}
		history.GameIDs = append(history.GameIDs, record.GameID)
		a.students[name] = history
	}
	return a.persistLocked()
}

// Dashboard returns the aggregates the teacher view renders.
func (a *ResultsArchive) Dashboard(_ context.Context) (domain.DashboardData, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	games := append([]domain.GameRecord(nil), a.games...)
	students := make(map[string]domain.StudentHistory, len(a.students))
	for name, history := range a.students {
		students[name] = history
	}
	return domain.DashboardData{Games: games, Students: students}, nil
}

func (a *ResultsArchive) persistLocked() error {
	if a.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(archiveFile{Students: a.students, Quizzes: a.games}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results archive: %w", err)
	}
	if err := os.WriteFile(a.path, data, 0o644); err != nil {
		return fmt.Errorf("write results archive: %w", err)
	}
	return nil
}
