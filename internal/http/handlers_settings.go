package http

import (
	"net/http"

	"budgetflow/internal/log"
	"budgetflow/internal/storage"
)

type categoriesBody struct {
	Categories []string `json:"categories"`
}

func (s *Server) handleGetFixCosts(w http.ResponseWriter, r *http.Request) {
	entries, err := s.session.FixCosts(r.Context())
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, entriesBody{Entries: entries})
}

func (s *Server) handlePutFixCosts(w http.ResponseWriter, r *http.Request) {
	var body entriesBody
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, log.OpWrite, err)
		return
	}
	if err := s.session.SaveFixCosts(r.Context(), body.Entries); err != nil {
		s.writeError(w, r, log.OpWrite, err)
		return
	}
	s.handleGetFixCosts(w, r)
}

func (s *Server) handleGetEssential(w http.ResponseWriter, r *http.Request) {
	names, err := s.session.EssentialCategories(r.Context())
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, categoriesBody{Categories: names})
}

func (s *Server) handlePutEssential(w http.ResponseWriter, r *http.Request) {
	var body categoriesBody
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, log.OpWrite, err)
		return
	}
	if err := s.session.SaveEssentialCategories(r.Context(), body.Categories); err != nil {
		s.writeError(w, r, log.OpWrite, err)
		return
	}
	s.handleGetEssential(w, r)
}

func (s *Server) handleGetTracking(w http.ResponseWriter, r *http.Request) {
	t, err := s.session.Tracking(r.Context())
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handlePutTracking(w http.ResponseWriter, r *http.Request) {
	var body storage.Tracking
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, log.OpWrite, err)
		return
	}
	if err := s.session.SaveTracking(r.Context(), body); err != nil {
		s.writeError(w, r, log.OpWrite, err)
		return
	}
	s.handleGetTracking(w, r)
}
