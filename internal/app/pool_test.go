package app

import (
	"testing"

	"classquiz-service/internal/domain"
)

func TestDrawReturnsDistinctQuestions(t *testing.T) {
	p := newPool()
	p.setQuestions(poolQuestions(6))

	// Draw across the exhaustion boundary several times; no single draw may
	// repeat a question.
	for round := 0; round < 5; round++ {
		drawn := p.draw(4)
		if len(drawn) != 4 {
			t.Fatalf("round %d: expected 4 questions, got %d", round, len(drawn))
		}
		seen := map[string]bool{}
		for _, q := range drawn {
			if seen[q.ID] {
				t.Fatalf("round %d: question %s dealt twice", round, q.ID)
			}
			seen[q.ID] = true
		}
	}
}

func TestDrawGrantsAtMostTheWholeSet(t *testing.T) {
	p := newPool()
	p.setQuestions(poolQuestions(3))

	drawn := p.draw(5)
	if len(drawn) != 3 {
		t.Fatalf("expected the whole set of 3, got %d", len(drawn))
	}

	if got := newPool().draw(5); got != nil {
		t.Fatalf("expected nil from an empty pool, got %v", got)
	}
}

func TestSetQuestionsDropsDeletedFromDeck(t *testing.T) {
	p := newPool()
	p.setQuestions(poolQuestions(4))
	p.draw(1) // leave a partial deck behind

	p.setQuestions(poolQuestions(2))
	for round := 0; round < 4; round++ {
		for _, q := range p.draw(2) {
			if q.ID != "q1" && q.ID != "q2" {
				t.Fatalf("deleted question %s still in circulation", q.ID)
			}
		}
	}
}

func poolQuestions(n int) []domain.Question {
	questions := make([]domain.Question, n)
	for i := range questions {
		questions[i] = domain.Question{
			ID:      "q" + string(rune('1'+i)),
			Prompt:  "p",
			Options: []domain.Option{{ID: "a", Correct: true}, {ID: "b"}},
		}
	}
	return questions
}
