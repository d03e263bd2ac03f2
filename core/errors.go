package core

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput       = "COMMUNITY_BAD_INPUT"
	ErrorNotFound       = "COMMUNITY_NOT_FOUND"
	ErrorConflict       = "COMMUNITY_CONFLICT"
	ErrorUnauthorized   = "COMMUNITY_UNAUTHORIZED"
	ErrorForbidden      = "COMMUNITY_FORBIDDEN"
	ErrorTokenReused    = "COMMUNITY_TOKEN_REUSED"
	ErrorRateLimited    = "COMMUNITY_RATE_LIMITED"
	ErrorDeliveryFailed = "COMMUNITY_DELIVERY_FAILED"
	ErrorInternal       = "COMMUNITY_INTERNAL_ERROR"
)

// MapError normalizes any error into the community error envelope.
func MapError(err error) *goerrors.Error {
	return serviceErrorMapper(err)
}

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return newServiceError("resource not found", goerrors.CategoryNotFound, ErrorNotFound)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "duplicate key"), strings.Contains(msg, "unique constraint"):
		return newServiceError("resource already exists", goerrors.CategoryConflict, ErrorConflict)
	case strings.Contains(msg, "foreign key"):
		return newServiceError("referenced resource does not exist", goerrors.CategoryBadInput, ErrorBadInput)
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newServiceError(err.Error(), goerrors.CategoryRateLimit, ErrorRateLimited)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func newServiceError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = ServiceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryAuth:
		return ErrorUnauthorized
	case goerrors.CategoryAuthz:
		return ErrorForbidden
	case goerrors.CategoryConflict:
		return ErrorConflict
	case goerrors.CategoryRateLimit:
		return ErrorRateLimited
	case goerrors.CategoryExternal:
		return ErrorDeliveryFailed
	default:
		return ErrorInternal
	}
}

// ServiceHTTPStatus maps an error category to the HTTP status used in responses.
func ServiceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func BadInput(message string, fields ...goerrors.FieldError) *goerrors.Error {
	err := newServiceError(message, goerrors.CategoryBadInput, ErrorBadInput)
	if len(fields) > 0 {
		err.ValidationErrors = append(err.ValidationErrors, fields...)
	}
	return err
}

func NotFound(resource, id string) *goerrors.Error {
	return newServiceError(resource+" not found", goerrors.CategoryNotFound, ErrorNotFound).
		WithMetadata(map[string]any{"resource": resource, "id": id})
}

func Conflict(message string) *goerrors.Error {
	return newServiceError(message, goerrors.CategoryConflict, ErrorConflict)
}

func Unauthorized(message string) *goerrors.Error {
	return newServiceError(message, goerrors.CategoryAuth, ErrorUnauthorized)
}

func Forbidden(message string) *goerrors.Error {
	return newServiceError(message, goerrors.CategoryAuthz, ErrorForbidden)
}

func Internal(err error, message string) *goerrors.Error {
	if err == nil {
		return newServiceError(message, goerrors.CategoryInternal, ErrorInternal)
	}
	return ensureServiceErrorEnvelope(goerrors.Wrap(err, goerrors.CategoryInternal, message))
}

func fieldError(field, message string, value any) goerrors.FieldError {
	return goerrors.FieldError{Field: field, Message: message, Value: value}
}

// IsNotFound reports whether err maps to a not found category.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	return goerrors.IsNotFound(err)
}
