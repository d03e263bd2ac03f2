package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goliatone/go-community/core"
)

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.service.ListUsers(r.Context(), core.UserFilter{
		Query:       queryString(r, "q"),
		Role:        core.Role(queryString(r, "role")),
		Status:      core.UserStatus(queryString(r, "status")),
		PageRequest: page,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondPage(s, w, r, result)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := s.bind(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := s.service.CreateUser(r.Context(), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, user)
}

func (s *Server) handleLookupUser(w http.ResponseWriter, r *http.Request) {
	provider := queryString(r, "provider")
	externalID := queryString(r, "external_id")
	if provider == "" || externalID == "" {
		s.writeError(w, r, core.BadInput("provider and external_id are required"))
		return
	}
	user, err := s.service.LookupUser(r.Context(), provider, externalID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, user)
}

func (s *Server) handleGetUserByUsername(w http.ResponseWriter, r *http.Request) {
	user, err := s.service.GetUserByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.service.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := s.bind(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := s.service.UpdateUser(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.noContent(w)
}

func (s *Server) handleListIdentities(w http.ResponseWriter, r *http.Request) {
	identities, err := s.service.ListIdentities(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if identities == nil {
		identities = []core.Identity{}
	}
	s.respond(w, r, http.StatusOK, identities)
}

func (s *Server) handleLinkIdentity(w http.ResponseWriter, r *http.Request) {
	var req linkIdentityRequest
	if err := s.bind(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	identity, err := s.service.LinkIdentity(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, identity)
}

func (s *Server) handleGetIdentity(w http.ResponseWriter, r *http.Request) {
	identity, err := s.service.GetIdentity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, identity)
}

func (s *Server) handleUpdateIdentity(w http.ResponseWriter, r *http.Request) {
	var req updateIdentityRequest
	if err := s.bind(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	identity, err := s.service.UpdateIdentity(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, identity)
}

func (s *Server) handleUnlinkIdentity(w http.ResponseWriter, r *http.Request) {
	if err := s.service.UnlinkIdentity(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.noContent(w)
}
