package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"quizmaster/internal/domain"
)

// QuizLister enumerates the quiz library for the room-creation screen.
type QuizLister interface {
	ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error)
}

// QuizHandler serves the library index.
type QuizHandler struct {
	lister QuizLister
}

func NewQuizHandler(lister QuizLister) *QuizHandler {
	return &QuizHandler{lister: lister}
}

func (h *QuizHandler) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.lister.ListQuizzes(r.Context())
	if err != nil {
		log.Printf("list quizzes: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if summaries == nil {
		summaries = []domain.QuizSummary{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summaries)
}
