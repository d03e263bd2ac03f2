package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goliatone/go-community/core"
	goerrors "github.com/goliatone/go-errors"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready == nil {
		s.respond(w, r, http.StatusOK, healthResponse{Status: "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.ready(ctx); err != nil {
		s.logger.WithContext(r.Context()).Warn("readiness check failed", "error", err.Error())
		s.respond(w, r, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Error: err.Error()})
		return
	}
	s.respond(w, r, http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	doc, err := s.OpenAPI()
	if err != nil {
		s.writeError(w, r, core.Internal(err, "build openapi document"))
		return
	}
	s.writeJSON(w, r, http.StatusOK, doc)
}

// webhooks

func (s *Server) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	active, err := queryBool(r, "active")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.service.ListWebhooks(r.Context(), core.WebhookFilter{
		OwnerID:     queryString(r, "owner_id"),
		Active:      active,
		PageRequest: page,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondPage(s, w, r, result)
}

func (s *Server) handleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	var req createWebhookRequest
	if err := s.bind(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	subscription, err := s.service.CreateWebhook(r.Context(), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	s.respond(w, r, http.StatusCreated, subscription)
}

func (s *Server) handleGetWebhook(w http.ResponseWriter, r *http.Request) {
	subscription, err := s.service.GetWebhook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, subscription)
}

func (s *Server) handleUpdateWebhook(w http.ResponseWriter, r *http.Request) {
	var req updateWebhookRequest
	if err := s.bind(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	subscription, err := s.service.UpdateWebhook(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, subscription)
}

func (s *Server) handleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteWebhook(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.noContent(w)
}

func (s *Server) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.service.ListDeliveries(r.Context(), chi.URLParam(r, "id"), page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondPage(s, w, r, result)
}

func (s *Server) handleGetDelivery(w http.ResponseWriter, r *http.Request) {
	delivery, err := s.service.GetDelivery(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, delivery)
}

func (s *Server) handlePingWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhooks == nil {
		s.writeError(w, r, errDispatcherUnavailable())
		return
	}
	delivery, err := s.webhooks.Ping(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusAccepted, delivery)
}

func (s *Server) handleRetryDelivery(w http.ResponseWriter, r *http.Request) {
	if s.webhooks == nil {
		s.writeError(w, r, errDispatcherUnavailable())
		return
	}
	delivery, err := s.webhooks.Redeliver(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusAccepted, delivery)
}

func errDispatcherUnavailable() error {
	return goerrors.New("webhook dispatcher is not configured", goerrors.CategoryExternal).
		WithTextCode(core.ErrorDeliveryFailed).
		WithCode(http.StatusServiceUnavailable)
}

// logs

func (s *Server) handleAppendLog(w http.ResponseWriter, r *http.Request) {
	var req appendLogRequest
	if err := s.bind(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	in := req.input()
	if in.RequestID == "" {
		in.RequestID = middleware.GetReqID(r.Context())
	}
	entry, err := s.service.AppendLog(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, entry)
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	since, err := queryTime(r, "since")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	until, err := queryTime(r, "until")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.service.ListLogs(r.Context(), core.LogFilter{
		Level:       core.LogLevel(queryString(r, "level")),
		Source:      queryString(r, "source"),
		UserID:      queryString(r, "user_id"),
		Since:       since,
		Until:       until,
		PageRequest: page,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondPage(s, w, r, result)
}
