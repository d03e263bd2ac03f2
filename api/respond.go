package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/goliatone/go-community/core"
	goerrors "github.com/goliatone/go-errors"
)

type envelope struct {
	Data any       `json:"data"`
	Meta *pageMeta `json:"meta,omitempty"`
}

type pageMeta struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Category   string         `json:"category"`
	Code       int            `json:"code"`
	TextCode   string         `json:"text_code"`
	Message    string         `json:"message"`
	RequestID  string         `json:"request_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Validation []fieldIssue   `json:"validation,omitempty"`
}

type fieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

type serviceErrorer interface {
	ToServiceError() *goerrors.Error
}

type retryAfterer interface {
	RetryAfterSeconds() int
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	s.writeJSON(w, r, status, envelope{Data: data})
}

func respondPage[T any](s *Server, w http.ResponseWriter, r *http.Request, page core.Page[T]) {
	items := page.Items
	if items == nil {
		items = []T{}
	}
	s.writeJSON(w, r, http.StatusOK, envelope{
		Data: items,
		Meta: &pageMeta{Page: page.Page, PerPage: page.PerPage, Total: page.Total},
	})
}

func (s *Server) noContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithContext(r.Context()).Warn("encode response failed", "error", err.Error())
	}
}

// writeError renders err in the error envelope. Internal failures are logged
// with their cause and reported without it.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var rich *goerrors.Error
	var converter serviceErrorer
	if errors.As(err, &converter) {
		rich = core.MapError(converter.ToServiceError())
	} else {
		rich = core.MapError(err)
	}
	if rich == nil {
		rich = core.Internal(err, "")
	}

	status := rich.Code
	if status < 400 || status > 599 {
		status = core.ServiceHTTPStatus(rich.Category)
	}

	var retry retryAfterer
	if errors.As(err, &retry) && retry.RetryAfterSeconds() > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retry.RetryAfterSeconds()))
	}

	body := errorBody{
		Category:  fmt.Sprint(rich.Category),
		Code:      status,
		TextCode:  rich.TextCode,
		Message:   rich.Message,
		RequestID: middleware.GetReqID(r.Context()),
		Metadata:  rich.Metadata,
	}
	for _, field := range rich.ValidationErrors {
		body.Validation = append(body.Validation, fieldIssue{
			Field:   field.Field,
			Message: field.Message,
			Value:   field.Value,
		})
	}

	if status >= http.StatusInternalServerError {
		s.logger.WithContext(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", fmt.Sprint(err),
		)
		if rich.Category == goerrors.CategoryInternal {
			body.Message = "An unexpected error occurred"
			body.Metadata = nil
		}
	}
	s.writeJSON(w, r, status, errorEnvelope{Error: body})
}
