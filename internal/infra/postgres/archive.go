package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"classquiz-service/internal/domain"
	"github.com/uptrace/bun"
)

// gameRow is the bun model for one archived game. The per-player responses
// stay as a JSONB document; the indexed columns cover what the dashboard
// filters on.
type gameRow struct {
	bun.BaseModel `bun:"table:game_records"`

	GameID         string    `bun:"game_id,pk"`
	FinishedAt     time.Time `bun:"finished_at,notnull"`
	TotalQuestions int       `bun:"total_questions,notnull"`
	Data           []byte    `bun:"data,type:jsonb,notnull"`
}

// ResultsArchive persists finished games to Postgres via bun.
type ResultsArchive struct {
	db *bun.DB
}

func NewResultsArchive(db *bun.DB) *ResultsArchive {
	return &ResultsArchive{db: db}
}

// AppendGame implements app.ResultsArchive.
func (a *ResultsArchive) AppendGame(ctx context.Context, record domain.GameRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal game record: %w", err)
	}
	row := &gameRow{
		GameID:         record.GameID,
		FinishedAt:     record.FinishedAt,
		TotalQuestions: record.TotalQuestions,
		Data:           data,
	}
	if _, err := a.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert game record: %w", err)
	}
	return nil
}

// Dashboard rebuilds the teacher-dashboard aggregates from the archived rows.
func (a *ResultsArchive) Dashboard(ctx context.Context) (domain.DashboardData, error) {
	var rows []gameRow
	if err := a.db.NewSelect().Model(&rows).Order("finished_at ASC").Scan(ctx); err != nil {
		return domain.DashboardData{}, fmt.Errorf("select game records: %w", err)
	}

	data := domain.DashboardData{
		Games:    make([]domain.GameRecord, 0, len(rows)),
		Students: make(map[string]domain.StudentHistory),
	}
	for _, row := range rows {
		var record domain.GameRecord
		if err := json.Unmarshal(row.Data, &record); err != nil {
			return domain.DashboardData{}, fmt.Errorf("unmarshal game record %s: %w", row.GameID, err)
		}
		data.Games = append(data.Games, record)
		for name := range record.Responses {
			history, ok := data.Students[name]
			if !ok {
				history = domain.StudentHistory{Name: name}
			}
			history.GameIDs = append(history.GameIDs, record.GameID)
			data.Students[name] = history
		}
	}
	return data, nil
}
