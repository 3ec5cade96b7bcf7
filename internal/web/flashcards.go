package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/conorfennell/lingosrs/internal/domain"
	"github.com/conorfennell/lingosrs/internal/srs"
)

type reviewRequest struct {
	FlashcardID string        `json:"flashcardId"`
	Rating      domain.Rating `json:"rating"`
}

// handleListCards returns a page of the caller's cards.
func (s *Server) handleListCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, err := intParam(q.Get("page"), "page")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		limit, err := intParam(q.Get("limit"), "limit")
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		result, err := s.cards.ListCards(r.Context(), UserID(r.Context()), srs.ListQuery{
			Page:     page,
			Limit:    limit,
			Search:   q.Get("q"),
			Language: domain.Language(q.Get("language")),
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// handleCreateCard stores a new card for the caller.
func (s *Server) handleCreateCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in srs.CreateCardInput
		if err := decodeJSON(w, r, &in); err != nil {
			s.writeError(w, r, err)
			return
		}
		card, err := s.cards.CreateCard(r.Context(), UserID(r.Context()), in)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, card)
	}
}

// handleReviewQueue returns the caller's due cards, earliest first.
func (s *Server) handleReviewQueue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cards, err := s.cards.ListDueCards(r.Context(), UserID(r.Context()))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, cards)
	}
}

// handleSubmitReview records a rating for one card.
func (s *Server) handleSubmitReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reviewRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if req.FlashcardID == "" {
			s.writeError(w, r, fmt.Errorf("%w: flashcardId is required", domain.ErrValidation))
			return
		}
		result, err := s.cards.SubmitReview(r.Context(), UserID(r.Context()), req.FlashcardID, req.Rating)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleGetCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		card, err := s.cards.GetCard(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

func (s *Server) handleUpdateCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in srs.UpdateCardInput
		if err := decodeJSON(w, r, &in); err != nil {
			s.writeError(w, r, err)
			return
		}
		card, err := s.cards.UpdateCard(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), in)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

func (s *Server) handleDeleteCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.cards.DeleteCard(r.Context(), UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handlePreview shows the outcome of each rating without reviewing.
func (s *Server) handlePreview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		preview, err := s.cards.PreviewReview(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, preview)
	}
}

func (s *Server) handleReviewHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := intParam(r.URL.Query().Get("limit"), "limit")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		logs, err := s.cards.ReviewHistory(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), limit)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, logs)
	}
}

// intParam parses an optional integer query parameter; empty means 0.
func intParam(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrValidation, name)
	}
	return n, nil
}
