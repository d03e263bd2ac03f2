package api

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3gen"
)

const (
	securityBearer = "bearerAuth"
	securityAPIKey = "apiKeyAuth"
	errorSchema    = "Error"
	pageMetaSchema = "PageMeta"
)

var pathParamPattern = regexp.MustCompile(`\{([^}/]+)\}`)

// OpenAPI returns the OpenAPI 3 document for the route table. It is built once.
func (s *Server) OpenAPI() (*openapi3.T, error) {
	s.docOnce.Do(func() {
		s.doc, s.docErr = s.buildOpenAPI()
	})
	return s.doc, s.docErr
}

func (s *Server) buildOpenAPI() (*openapi3.T, error) {
	schemas := openapi3.Schemas{}
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info:    &openapi3.Info{Title: s.title, Version: s.version},
		Paths:   openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas: schemas,
			SecuritySchemes: openapi3.SecuritySchemes{
				securityBearer: &openapi3.SecuritySchemeRef{
					Value: openapi3.NewSecurityScheme().WithType("http").WithScheme("bearer").WithBearerFormat("JWT"),
				},
				securityAPIKey: &openapi3.SecuritySchemeRef{
					Value: openapi3.NewSecurityScheme().WithType("apiKey").WithIn("header").WithName(headerAPIKey),
				},
			},
		},
	}

	errRef, err := generateSchema(errorEnvelope{}, schemas)
	if err != nil {
		return nil, fmt.Errorf("api: error schema: %w", err)
	}
	schemas[errorSchema] = errRef
	metaRef, err := generateSchema(pageMeta{}, schemas)
	if err != nil {
		return nil, fmt.Errorf("api: page meta schema: %w", err)
	}
	schemas[pageMetaSchema] = metaRef

	for _, route := range s.routes {
		op, err := s.operation(route, schemas)
		if err != nil {
			return nil, fmt.Errorf("api: %s %s: %w", route.Method, route.Pattern, err)
		}
		doc.AddOperation(route.Pattern, route.Method, op)
	}
	return doc, nil
}

func (s *Server) operation(route Route, schemas openapi3.Schemas) (*openapi3.Operation, error) {
	op := openapi3.NewOperation()
	op.Summary = route.Summary
	op.OperationID = operationID(route)
	if route.Tag != "" {
		op.Tags = []string{route.Tag}
	}

	for _, match := range pathParamPattern.FindAllStringSubmatch(route.Pattern, -1) {
		op.AddParameter(openapi3.NewPathParameter(match[1]).WithSchema(openapi3.NewStringSchema()))
	}
	for _, name := range route.Query {
		op.AddParameter(openapi3.NewQueryParameter(name).WithSchema(queryParamSchema(name)))
	}

	if route.Request != nil {
		ref, err := generateSchema(route.Request, schemas)
		if err != nil {
			return nil, err
		}
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(ref),
		}
	}

	status := route.Status
	if status == 0 {
		status = http.StatusOK
	}
	success := openapi3.NewResponse().WithDescription(http.StatusText(status))
	if route.Response != nil && status != http.StatusNoContent {
		ref, err := generateSchema(route.Response, schemas)
		if err != nil {
			return nil, err
		}
		success = success.WithJSONSchema(dataEnvelopeSchema(ref, route.List))
	}
	op.AddResponse(status, success)

	errRef := openapi3.NewSchemaRef("#/components/schemas/"+errorSchema, nil)
	op.AddResponse(0, openapi3.NewResponse().WithDescription("Error").WithJSONSchemaRef(errRef))

	switch route.Access {
	case AccessAuthenticated, AccessPrivileged:
		requirements := openapi3.NewSecurityRequirements().
			With(openapi3.NewSecurityRequirement().Authenticate(securityBearer)).
			With(openapi3.NewSecurityRequirement().Authenticate(securityAPIKey))
		op.Security = requirements
		if op.Extensions == nil {
			op.Extensions = map[string]any{}
		}
		op.Extensions["x-access"] = route.Access.String()
	}
	return op, nil
}

func generateSchema(value any, schemas openapi3.Schemas) (*openapi3.SchemaRef, error) {
	return openapi3gen.NewSchemaRefForValue(value, schemas)
}

func dataEnvelopeSchema(data *openapi3.SchemaRef, list bool) *openapi3.Schema {
	envelope := openapi3.NewObjectSchema().WithRequired([]string{"data"})
	if !list {
		return envelope.WithPropertyRef("data", data)
	}
	items := openapi3.NewArraySchema()
	items.Items = data
	return envelope.
		WithProperty("data", items).
		WithPropertyRef("meta", openapi3.NewSchemaRef("#/components/schemas/"+pageMetaSchema, nil))
}

func queryParamSchema(name string) *openapi3.Schema {
	switch name {
	case "page", "per_page":
		return openapi3.NewIntegerSchema()
	case "active":
		return openapi3.NewBoolSchema()
	case "from", "to", "since", "until":
		return openapi3.NewDateTimeSchema()
	default:
		return openapi3.NewStringSchema()
	}
}

func operationID(route Route) string {
	parts := []string{strings.ToLower(route.Method)}
	for _, segment := range strings.Split(strings.Trim(route.Pattern, "/"), "/") {
		segment = strings.NewReplacer("{", "by_", "}", "", "-", "_", ".", "_").Replace(segment)
		if segment != "" {
			parts = append(parts, segment)
		}
	}
	return strings.Join(parts, "_")
}
