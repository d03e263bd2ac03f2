package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goliatone/go-community/core"
)

func practiceFilter(r *http.Request) (core.PracticeFilter, error) {
	page, err := queryPage(r)
	if err != nil {
		return core.PracticeFilter{}, err
	}
	from, err := queryTime(r, "from")
	if err != nil {
		return core.PracticeFilter{}, err
	}
	to, err := queryTime(r, "to")
	if err != nil {
		return core.PracticeFilter{}, err
	}
	return core.PracticeFilter{
		UserID:      queryString(r, "user_id"),
		From:        from,
		To:          to,
		PageRequest: page,
	}, nil
}

func (s *Server) handleListPractice(w http.ResponseWriter, r *http.Request) {
	filter, err := practiceFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.service.ListPracticeSessions(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondPage(s, w, r, result)
}

func (s *Server) handleLogPractice(w http.ResponseWriter, r *http.Request) {
	var req logPracticeRequest
	if err := s.bind(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	session, err := s.service.LogPracticeSession(r.Context(), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, session)
}

func (s *Server) handleStartPractice(w http.ResponseWriter, r *http.Request) {
	var req startPracticeRequest
	if err := s.bind(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	session, err := s.service.StartPracticeSession(r.Context(), core.StartPracticeInput{Topic: req.Topic, Notes: req.Notes})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, session)
}

func (s *Server) handlePracticeSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := practiceFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	summary, err := s.service.PracticeSummary(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, summary)
}

func (s *Server) handleGetPractice(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.GetPracticeSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, session)
}

func (s *Server) handleStopPractice(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.StopPracticeSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, session)
}

func (s *Server) handleDeletePractice(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeletePracticeSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.noContent(w)
}
