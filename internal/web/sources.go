package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/conorfennell/lingosrs/internal/domain"
)

type addSourceRequest struct {
	Path     string          `json:"path"`
	Language domain.Language `json:"language"`
}

func (s *Server) handleListSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := s.sources.ListSources(r.Context(), UserID(r.Context()))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sources)
	}
}

// handleAddSource registers a directory or git repository of decks.
func (s *Server) handleAddSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addSourceRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		src, err := s.sources.AddSource(r.Context(), UserID(r.Context()), req.Path, req.Language)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, src)
	}
}

func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.sources.RemoveSource(r.Context(), UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handlePostSync syncs the caller's sources and waits for the result.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reports, err := s.sources.SyncUser(r.Context(), UserID(r.Context()))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, reports)
	}
}
