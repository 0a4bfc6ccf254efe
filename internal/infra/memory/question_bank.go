package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"classquiz-service/internal/domain"
)

// QuestionBank is the authoring store for questions. It lives in memory and,
// when given a path, mirrors every mutation to a JSON file so the bank
// survives restarts.
type QuestionBank struct {
	path string

	mu        sync.RWMutex
	questions []domain.Question
	seq       int64
}

type bankFile struct {
	Questions []domain.Question `json:"questions"`
}

// NewQuestionBank builds a bank seeded from the JSON file at path, if it
// exists. An empty path keeps the bank purely in memory.
func NewQuestionBank(path string) (*QuestionBank, error) {
	b := &QuestionBank{path: path, seq: time.Now().UnixMilli()}
	if path == "" {
		return b, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}
	var file bankFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	b.questions = file.Questions
	return b, nil
}

// Seed replaces the bank contents without persisting; used for demos and tests.
func (b *QuestionBank) Seed(questions []domain.Question) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.questions = questions
}

// Questions implements app.QuestionBank.
func (b *QuestionBank) Questions(_ context.Context) ([]domain.Question, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]domain.Question(nil), b.questions...), nil
}

// LoadQuestions lets the bank double as a loader behind the caching layers.
func (b *QuestionBank) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	return b.Questions(ctx)
}

// List returns the full bank for the admin view.
func (b *QuestionBank) List(ctx context.Context) ([]domain.Question, error) {
	return b.Questions(ctx)
}

// Create adds a question, assigning it a fresh ID.
func (b *QuestionBank) Create(_ context.Context, q domain.Question) (domain.Question, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	q.ID = fmt.Sprintf("q-%d", b.seq)
	b.questions = append(b.questions, q)
	return q, b.persistLocked()
}

// Update replaces the question with the same ID.
func (b *QuestionBank) Update(_ context.Context, q domain.Question) (domain.Question, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.questions {
		if b.questions[i].ID == q.ID {
			b.questions[i] = q
			return q, b.persistLocked()
		}
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}

// Delete removes the question with the given ID.
func (b *QuestionBank) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.questions {
		if b.questions[i].ID == id {
			b.questions = append(b.questions[:i], b.questions[i+1:]...)
			return b.persistLocked()
		}
	}
	return domain.ErrQuestionNotFound
}

func (b *QuestionBank) persistLocked() error {
	if b.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(bankFile{Questions: b.questions}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal question bank: %w", err)
	}
	if err := os.WriteFile(b.path, data, 0o644); err != nil {
		return fmt.Errorf("write question bank: %w", err)
	}
	return nil
}
