package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goliatone/go-community/core"
	goerrors "github.com/goliatone/go-errors"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// bind decodes a single JSON object into dst, rejecting unknown fields, and
// runs the validate tags on the result.
func (s *Server) bind(r *http.Request, dst any) error {
	if r.Body == nil {
		return core.BadInput("request body is required")
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return decodeError(err)
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return core.BadInput("request body must contain a single JSON object")
	}
	return s.validateStruct(dst)
}

func (s *Server) validateStruct(value any) error {
	err := s.validate.Struct(value)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return core.BadInput(err.Error())
	}
	fields := make([]goerrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, goerrors.FieldError{
			Field:   fe.Field(),
			Message: validationMessage(fe),
			Value:   fe.Value(),
		})
	}
	return core.BadInput("request validation failed", fields...)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without", "required_with":
		return fmt.Sprintf("is required %s %s", strings.TrimPrefix(fe.Tag(), "required_"), fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "url", "http_url":
		return "must be a valid URL"
	case "uuid":
		return "must be a UUID"
	case "gtefield":
		return "must not be before " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}

func decodeError(err error) error {
	var maxBytes *http.MaxBytesError
	var syntax *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &maxBytes):
		return core.BadInput("request body too large").
			WithMetadata(map[string]any{"limit_bytes": maxBytes.Limit})
	case errors.Is(err, io.EOF):
		return core.BadInput("request body is required")
	case errors.As(err, &syntax):
		return core.BadInput(fmt.Sprintf("malformed JSON at offset %d", syntax.Offset))
	case errors.As(err, &typeErr):
		return core.BadInput("invalid field type", goerrors.FieldError{
			Field:   typeErr.Field,
			Message: "must be " + typeErr.Type.String(),
		})
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return core.BadInput("unknown field", goerrors.FieldError{Field: field, Message: "is not allowed"})
	default:
		return core.BadInput("malformed JSON body")
	}
}

func queryPage(r *http.Request) (core.PageRequest, error) {
	page, err := queryInt(r, "page")
	if err != nil {
		return core.PageRequest{}, err
	}
	perPage, err := queryInt(r, "per_page")
	if err != nil {
		return core.PageRequest{}, err
	}
	return core.PageRequest{Page: page, PerPage: perPage}, nil
}

func queryString(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := queryString(r, key)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, core.BadInput("invalid query parameter", goerrors.FieldError{Field: key, Message: "must be a non-negative integer", Value: raw})
	}
	return value, nil
}

func queryBool(r *http.Request, key string) (*bool, error) {
	raw := queryString(r, key)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, core.BadInput("invalid query parameter", goerrors.FieldError{Field: key, Message: "must be true or false", Value: raw})
	}
	return &value, nil
}

func queryTime(r *http.Request, key string) (*time.Time, error) {
	raw := queryString(r, key)
	if raw == "" {
		return nil, nil
	}
	value, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, core.BadInput("invalid query parameter", goerrors.FieldError{Field: key, Message: "must be an RFC 3339 timestamp", Value: raw})
	}
	value = value.UTC()
	return &value, nil
}
