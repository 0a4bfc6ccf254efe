package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"classquiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionStore keeps the question bank in Postgres, one JSONB document per
// question. It serves both the admin CRUD surface and the loader behind the
// caching layers.
type QuestionStore struct {
	pool *pgxpool.Pool
}

func NewQuestionStore(pool *pgxpool.Pool) *QuestionStore {
	return &QuestionStore{pool: pool}
}

// LoadQuestions returns the full bank for the caching layers.
func (s *QuestionStore) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM questions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var q domain.Question
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Questions implements app.QuestionBank for setups without a cache in front.
func (s *QuestionStore) Questions(ctx context.Context) ([]domain.Question, error) {
	return s.LoadQuestions(ctx)
}

// List implements the admin CRUD surface.
func (s *QuestionStore) List(ctx context.Context) ([]domain.Question, error) {
	return s.LoadQuestions(ctx)
}

func (s *QuestionStore) Create(ctx context.Context, q domain.Question) (domain.Question, error) {
	q.ID = fmt.Sprintf("q-%d", time.Now().UnixNano())
	data, err := json.Marshal(q)
	if err != nil {
		return domain.Question{}, fmt.Errorf("marshal question: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `INSERT INTO questions (id, data) VALUES ($1, $2)`, q.ID, data); err != nil {
		return domain.Question{}, fmt.Errorf("insert question: %w", err)
	}
	return q, nil
}

func (s *QuestionStore) Update(ctx context.Context, q domain.Question) (domain.Question, error) {
	data, err := json.Marshal(q)
	if err != nil {
		return domain.Question{}, fmt.Errorf("marshal question: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `UPDATE questions SET data=$2 WHERE id=$1`, q.ID, data)
	if err != nil {
		return domain.Question{}, fmt.Errorf("update question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (s *QuestionStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM questions WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

// Get returns a single question by ID.
func (s *QuestionStore) Get(ctx context.Context, id string) (domain.Question, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM questions WHERE id=$1`, id).Scan(&raw)
	if err == pgx.ErrNoRows {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("get question: %w", err)
	}
	var q domain.Question
	if err := json.Unmarshal(raw, &q); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal question: %w", err)
	}
	return q, nil
}
