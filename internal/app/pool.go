package app

import (
	"math/rand"
	"time"

	"classquiz-service/internal/domain"
)

// pool deals questions for successive games. The deck outlives a single game:
// questions already dealt stay out of circulation until the deck runs dry, at
// which point the full set is reshuffled (uniform Fisher-Yates). This keeps
// consecutive games from replaying the same questions in the same order.
type pool struct {
	rnd       *rand.Rand
	questions []domain.Question
	remaining []domain.Question
}

func newPool() *pool {
	return &pool{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// setQuestions replaces the authored set. Entries still waiting in the deck
// survive only if their question still exists in the new set.
func (p *pool) setQuestions(questions []domain.Question) {
	p.questions = questions

	current := make(map[string]bool, len(questions))
	for _, q := range questions {
		current[q.ID] = true
	}
	kept := p.remaining[:0]
	for _, q := range p.remaining {
		if current[q.ID] {
			kept = append(kept, q)
		}
	}
	p.remaining = kept
}

// draw deals up to n distinct questions. If the authored set holds fewer than
// n, the whole set is dealt; callers must use the returned length as the game
// total rather than the requested count.
func (p *pool) draw(n int) []domain.Question {
	if len(p.questions) == 0 {
		return nil
	}
	if n > len(p.questions) {
		n = len(p.questions)
	}

	drawn := make([]domain.Question, 0, n)
	seen := make(map[string]bool, n)
	for len(drawn) < n {
		if len(p.remaining) == 0 {
			p.reshuffle()
		}
		q := p.remaining[0]
		p.remaining = p.remaining[1:]
		// A reshuffle mid-draw can resurface a question dealt moments ago;
		// skip it so one game never repeats a question.
		if seen[q.ID] {
			continue
		}
		seen[q.ID] = true
		drawn = append(drawn, q)
	}
	return drawn
}

func (p *pool) reshuffle() {
	deck := make([]domain.Question, len(p.questions))
	copy(deck, p.questions)
	for i := len(deck) - 1; i > 0; i-- {
		j := p.rnd.Intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
	p.remaining = deck
}
