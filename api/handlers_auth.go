package api

import (
	"net/http"
	"strings"

	"github.com/goliatone/go-community/core"
)

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := s.bind(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	var (
		pair core.TokenPair
		err  error
	)
	if userID := strings.TrimSpace(req.UserID); userID != "" {
		pair, err = s.service.IssueTokens(r.Context(), userID)
	} else {
		pair, err = s.service.IssueForIdentity(r.Context(), req.Provider, req.ExternalID)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	s.respond(w, r, http.StatusOK, pair)
}

func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := s.bind(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	pair, err := s.service.RefreshTokens(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	s.respond(w, r, http.StatusOK, pair)
}

func (s *Server) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := s.bind(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.service.RevokeTokens(r.Context(), req.RefreshToken); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.noContent(w)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := principalOf(r)
	out := meResponse{Principal: principal}
	if principal.UserID != "" {
		user, err := s.service.GetUser(r.Context(), principal.UserID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out.User = &user
	}
	s.respond(w, r, http.StatusOK, out)
}
