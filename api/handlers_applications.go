package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goliatone/go-community/core"
)

func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.service.ListApplications(r.Context(), core.ApplicationFilter{
		Status:      core.ApplicationStatus(queryString(r, "status")),
		ApplicantID: queryString(r, "applicant_id"),
		PageRequest: page,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondPage(s, w, r, result)
}

func (s *Server) handleSubmitApplication(w http.ResponseWriter, r *http.Request) {
	var req submitApplicationRequest
	if err := s.bind(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	application, err := s.service.SubmitApplication(r.Context(), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, application)
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	application, err := s.service.GetApplication(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, application)
}

func (s *Server) handleDeleteApplication(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteApplication(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.noContent(w)
}

func (s *Server) handleWithdrawApplication(w http.ResponseWriter, r *http.Request) {
	application, err := s.service.WithdrawApplication(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, application)
}

func (s *Server) handleDecideApplication(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := s.bind(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	application, err := s.service.DecideApplication(r.Context(), core.DecideApplicationInput{
		ApplicationID: chi.URLParam(r, "id"),
		Status:        req.Status,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, application)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := s.bind(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.service.CastVote(r.Context(), core.CastVoteInput{
		ApplicationID: chi.URLParam(r, "id"),
		Decision:      req.Decision,
		Comment:       req.Comment,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, result)
}

func (s *Server) handleListVotes(w http.ResponseWriter, r *http.Request) {
	votes, err := s.service.ListVotes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if votes == nil {
		votes = []core.Vote{}
	}
	s.respond(w, r, http.StatusOK, votes)
}
