package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"classquiz-service/internal/domain"
)

// QuestionAdmin is the CRUD surface over the question bank.
type QuestionAdmin interface {
	List(ctx context.Context) ([]domain.Question, error)
	Create(ctx context.Context, q domain.Question) (domain.Question, error)
	Update(ctx context.Context, q domain.Question) (domain.Question, error)
	Delete(ctx context.Context, id string) error
}

// AdminHandler serves the question-bank editing API for the admin view.
// Invalidate, when set, drops any read-through cache after a mutation.
type AdminHandler struct {
	bank       QuestionAdmin
	invalidate func(ctx context.Context)
}

func NewAdminHandler(bank QuestionAdmin, invalidate func(ctx context.Context)) *AdminHandler {
	return &AdminHandler{bank: bank, invalidate: invalidate}
}

// Collection handles /api/admin/questions (list and create).
func (h *AdminHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		questions, err := h.bank.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, questions)
	case http.MethodPost:
		q, ok := decodeQuestion(w, r)
		if !ok {
			return
		}
		created, err := h.bank.Create(r.Context(), q)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		h.bust(r.Context())
		writeJSON(w, http.StatusOK, created)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// Item handles /api/admin/questions/{id} (update and delete).
func (h *AdminHandler) Item(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/admin/questions/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodPut:
		q, ok := decodeQuestion(w, r)
		if !ok {
			return
		}
		q.ID = id
		updated, err := h.bank.Update(r.Context(), q)
		if errors.Is(err, domain.ErrQuestionNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		h.bust(r.Context())
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		err := h.bank.Delete(r.Context(), id)
		if errors.Is(err, domain.ErrQuestionNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		h.bust(r.Context())
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) bust(ctx context.Context) {
	if h.invalidate != nil {
		h.invalidate(ctx)
	}
}

func decodeQuestion(w http.ResponseWriter, r *http.Request) (domain.Question, bool) {
	var q domain.Question
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return domain.Question{}, false
	}
	if q.Prompt == "" || len(q.Options) < 2 {
		http.Error(w, "question needs a prompt and at least two options", http.StatusBadRequest)
		return domain.Question{}, false
	}
	if q.CorrectOption() == "" {
		http.Error(w, "question needs exactly one correct option", http.StatusBadRequest)
		return domain.Question{}, false
	}
	return q, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
