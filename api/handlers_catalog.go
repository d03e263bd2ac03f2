package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goliatone/go-community/core"
)

// projects

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.service.ListProjects(r.Context(), core.ProjectFilter{
		OwnerID:     queryString(r, "owner_id"),
		Status:      core.ProjectStatus(queryString(r, "status")),
		Tag:         queryString(r, "tag"),
		Query:       queryString(r, "q"),
		PageRequest: page,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondPage(s, w, r, result)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := s.bind(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	project, err := s.service.CreateProject(r.Context(), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, project)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.service.GetProject(r.Context(), chi.URLParam(r, "idOrSlug"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, project)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var req updateProjectRequest
	if err := s.bind(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	project, err := s.service.UpdateProject(r.Context(), chi.URLParam(r, "idOrSlug"), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, project)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteProject(r.Context(), chi.URLParam(r, "idOrSlug")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.noContent(w)
}

// treasuries

func (s *Server) handleListTreasuries(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.service.ListTreasuries(r.Context(), core.TreasuryFilter{
		Chain:       queryString(r, "chain"),
		PageRequest: page,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondPage(s, w, r, result)
}

func (s *Server) handleCreateTreasury(w http.ResponseWriter, r *http.Request) {
	var req createTreasuryRequest
	if err := s.bind(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	treasury, err := s.service.CreateTreasury(r.Context(), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, treasury)
}

func (s *Server) handleGetTreasury(w http.ResponseWriter, r *http.Request) {
	treasury, err := s.service.GetTreasury(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, treasury)
}

func (s *Server) handleUpdateTreasury(w http.ResponseWriter, r *http.Request) {
	var req updateTreasuryRequest
	if err := s.bind(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	treasury, err := s.service.UpdateTreasury(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, treasury)
}

func (s *Server) handleDeleteTreasury(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteTreasury(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.noContent(w)
}

// vanishing channels

func (s *Server) handleListVanishing(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.service.ListVanishingChannels(r.Context(), core.VanishingChannelFilter{
		GuildID:     queryString(r, "guild_id"),
		PageRequest: page,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondPage(s, w, r, result)
}

func (s *Server) handleUpsertVanishing(w http.ResponseWriter, r *http.Request) {
	var req upsertVanishingRequest
	if err := s.bind(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	channel, err := s.service.UpsertVanishingChannel(r.Context(), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, channel)
}

func (s *Server) handleGetVanishingByChannel(w http.ResponseWriter, r *http.Request) {
	channel, err := s.service.GetVanishingChannelByChannel(r.Context(), chi.URLParam(r, "channel_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, channel)
}

func (s *Server) handlePutVanishingByChannel(w http.ResponseWriter, r *http.Request) {
	var req putVanishingRequest
	if err := s.bind(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	channel, err := s.service.UpsertVanishingChannel(r.Context(), core.UpsertVanishingChannelInput{
		GuildID:            req.GuildID,
		ChannelID:          chi.URLParam(r, "channel_id"),
		VanishAfterSeconds: req.VanishAfterSeconds,
		Enabled:            req.Enabled,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, channel)
}

func (s *Server) handleGetVanishing(w http.ResponseWriter, r *http.Request) {
	channel, err := s.service.GetVanishingChannel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, channel)
}

func (s *Server) handleUpdateVanishing(w http.ResponseWriter, r *http.Request) {
	var req updateVanishingRequest
	if err := s.bind(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	channel, err := s.service.UpdateVanishingChannel(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, channel)
}

func (s *Server) handleDeleteVanishing(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteVanishingChannel(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.noContent(w)
}
