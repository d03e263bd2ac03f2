// Package api serves the community service over HTTP.
//
// Every route is declared once in a route table. The same table registers the
// chi handlers and builds the OpenAPI document, so the two cannot drift.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/goliatone/go-community/adapters/prometheus"
	"github.com/goliatone/go-community/core"
	glog "github.com/goliatone/go-logger/glog"
)

// Service is the slice of core.Service the HTTP layer calls.
type Service interface {
	IssueTokens(ctx context.Context, userID string) (core.TokenPair, error)
	IssueForIdentity(ctx context.Context, provider, externalID string) (core.TokenPair, error)
	RefreshTokens(ctx context.Context, refreshToken string) (core.TokenPair, error)
	RevokeTokens(ctx context.Context, refreshToken string) error
	AuthenticateAccessToken(ctx context.Context, token string) (core.Principal, error)
	AuthenticateAPIKey(ctx context.Context, key string) (core.Principal, error)

	CreateUser(ctx context.Context, in core.CreateUserInput) (core.User, error)
	GetUser(ctx context.Context, id string) (core.User, error)
	GetUserByUsername(ctx context.Context, username string) (core.User, error)
	ListUsers(ctx context.Context, filter core.UserFilter) (core.Page[core.User], error)
	UpdateUser(ctx context.Context, id string, in core.UpdateUserInput) (core.User, error)
	DeleteUser(ctx context.Context, id string) error
	LookupUser(ctx context.Context, provider, externalID string) (core.User, error)

	LinkIdentity(ctx context.Context, userID string, in core.LinkIdentityInput) (core.Identity, error)
	ListIdentities(ctx context.Context, userID string) ([]core.Identity, error)
	GetIdentity(ctx context.Context, id string) (core.Identity, error)
	UpdateIdentity(ctx context.Context, id string, in core.UpdateIdentityInput) (core.Identity, error)
	UnlinkIdentity(ctx context.Context, id string) error

	SubmitApplication(ctx context.Context, in core.SubmitApplicationInput) (core.Application, error)
	GetApplication(ctx context.Context, id string) (core.Application, error)
	ListApplications(ctx context.Context, filter core.ApplicationFilter) (core.Page[core.Application], error)
	CastVote(ctx context.Context, in core.CastVoteInput) (core.VoteResult, error)
	ListVotes(ctx context.Context, applicationID string) ([]core.Vote, error)
	WithdrawApplication(ctx context.Context, id string) (core.Application, error)
	DecideApplication(ctx context.Context, in core.DecideApplicationInput) (core.Application, error)
	DeleteApplication(ctx context.Context, id string) error

	StartPracticeSession(ctx context.Context, in core.StartPracticeInput) (core.PracticeSession, error)
	StopPracticeSession(ctx context.Context, id string) (core.PracticeSession, error)
	LogPracticeSession(ctx context.Context, in core.LogPracticeInput) (core.PracticeSession, error)
	GetPracticeSession(ctx context.Context, id string) (core.PracticeSession, error)
	ListPracticeSessions(ctx context.Context, filter core.PracticeFilter) (core.Page[core.PracticeSession], error)
	PracticeSummary(ctx context.Context, filter core.PracticeFilter) (core.PracticeSummary, error)
	DeletePracticeSession(ctx context.Context, id string) error

	CreateProject(ctx context.Context, in core.CreateProjectInput) (core.Project, error)
	GetProject(ctx context.Context, idOrSlug string) (core.Project, error)
	ListProjects(ctx context.Context, filter core.ProjectFilter) (core.Page[core.Project], error)
	UpdateProject(ctx context.Context, idOrSlug string, in core.UpdateProjectInput) (core.Project, error)
	DeleteProject(ctx context.Context, idOrSlug string) error

	CreateTreasury(ctx context.Context, in core.CreateTreasuryInput) (core.Treasury, error)
	GetTreasury(ctx context.Context, id string) (core.Treasury, error)
	ListTreasuries(ctx context.Context, filter core.TreasuryFilter) (core.Page[core.Treasury], error)
	UpdateTreasury(ctx context.Context, id string, in core.UpdateTreasuryInput) (core.Treasury, error)
	DeleteTreasury(ctx context.Context, id string) error

	UpsertVanishingChannel(ctx context.Context, in core.UpsertVanishingChannelInput) (core.VanishingChannel, error)
	GetVanishingChannel(ctx context.Context, id string) (core.VanishingChannel, error)
	GetVanishingChannelByChannel(ctx context.Context, channelID string) (core.VanishingChannel, error)
	ListVanishingChannels(ctx context.Context, filter core.VanishingChannelFilter) (core.Page[core.VanishingChannel], error)
	UpdateVanishingChannel(ctx context.Context, id string, in core.UpdateVanishingChannelInput) (core.VanishingChannel, error)
	DeleteVanishingChannel(ctx context.Context, id string) error

	CreateWebhook(ctx context.Context, in core.CreateWebhookInput) (core.WebhookSubscription, error)
	GetWebhook(ctx context.Context, id string) (core.WebhookSubscription, error)
	ListWebhooks(ctx context.Context, filter core.WebhookFilter) (core.Page[core.WebhookSubscription], error)
	UpdateWebhook(ctx context.Context, id string, in core.UpdateWebhookInput) (core.WebhookSubscription, error)
	DeleteWebhook(ctx context.Context, id string) error
	ListDeliveries(ctx context.Context, subscriptionID string, page core.PageRequest) (core.Page[core.WebhookDelivery], error)
	GetDelivery(ctx context.Context, id string) (core.WebhookDelivery, error)

	AppendLog(ctx context.Context, in core.AppendLogInput) (core.LogEntry, error)
	ListLogs(ctx context.Context, filter core.LogFilter) (core.Page[core.LogEntry], error)
}

// WebhookOperator triggers deliveries on demand. webhooks.Dispatcher implements it.
type WebhookOperator interface {
	Ping(ctx context.Context, subscriptionID string) (core.WebhookDelivery, error)
	Redeliver(ctx context.Context, deliveryID string) (core.WebhookDelivery, error)
}

// Limiter admits or throttles a request for key.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// ReadinessCheck reports whether dependencies such as the database are reachable.
type ReadinessCheck func(ctx context.Context) error

type Server struct {
	service        Service
	webhooks       WebhookOperator
	limiter        Limiter
	metrics        *prometheus.HTTPMetrics
	metricsHandler http.Handler
	ready          ReadinessCheck
	logger         core.Logger
	config         core.HTTPConfig
	title          string
	version        string
	validate       *validator.Validate

	routes  []Route
	handler http.Handler

	docOnce sync.Once
	doc     *openapi3.T
	docErr  error
}

type Option func(*Server)

func WithWebhookOperator(operator WebhookOperator) Option {
	return func(s *Server) {
		s.webhooks = operator
	}
}

func WithLimiter(limiter Limiter) Option {
	return func(s *Server) {
		s.limiter = limiter
	}
}

func WithHTTPMetrics(metrics *prometheus.HTTPMetrics) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// WithMetricsHandler exposes handler on GET /metrics.
func WithMetricsHandler(handler http.Handler) Option {
	return func(s *Server) {
		s.metricsHandler = handler
	}
}

func WithReadinessCheck(check ReadinessCheck) Option {
	return func(s *Server) {
		s.ready = check
	}
}

func WithLogger(logger core.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithHTTPConfig(cfg core.HTTPConfig) Option {
	return func(s *Server) {
		s.config = cfg
	}
}

// WithDocumentInfo sets the title and version of the OpenAPI document.
func WithDocumentInfo(title, version string) Option {
	return func(s *Server) {
		if strings.TrimSpace(title) != "" {
			s.title = title
		}
		if strings.TrimSpace(version) != "" {
			s.version = version
		}
	}
}

func NewServer(service Service, opts ...Option) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("api: service is required")
	}
	s := &Server{
		service:  service,
		logger:   glog.Nop(),
		config:   core.DefaultConfig().HTTP,
		title:    "Community API",
		version:  "v1",
		validate: newValidator(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.routes = s.routeTable()
	s.handler = s.buildRouter()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Routes returns a copy of the route table.
func (s *Server) Routes() []Route {
	out := make([]Route, len(s.routes))
	copy(out, s.routes)
	return out
}

// HTTPServer wraps the handler with the configured address and timeouts.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.handler,
		ReadTimeout:       s.config.ReadTimeoutDuration(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.config.WriteTimeoutDuration(),
		IdleTimeout:       60 * time.Second,
	}
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestContext)
	r.Use(s.recoverer)
	r.Use(s.accessLog)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware(routePattern))
	}
	r.Use(s.cors)
	r.Use(s.bodyLimit)
	r.Use(s.authenticate)
	r.Use(s.rateLimit)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		s.writeError(w, req, core.NotFound("route", req.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		s.writeError(w, req, core.BadInput("method not allowed"))
	})

	for _, route := range s.routes {
		r.Method(route.Method, route.Pattern, s.guard(route))
	}
	return r
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
