package api

import (
	"net/http"

	"github.com/goliatone/go-community/core"
)

// Access is the minimum caller level a route admits before the service runs
// its own ownership rules.
type Access int

const (
	AccessPublic Access = iota
	AccessAuthenticated
	AccessPrivileged
)

func (a Access) String() string {
	switch a {
	case AccessAuthenticated:
		return "authenticated"
	case AccessPrivileged:
		return "privileged"
	default:
		return "public"
	}
}

// Route describes one endpoint. Request and Response hold zero values of the
// body types and feed the OpenAPI schema generator.
type Route struct {
	Method   string
	Pattern  string
	Access   Access
	Tag      string
	Summary  string
	Query    []string
	Request  any
	Response any
	List     bool
	Status   int

	handler http.HandlerFunc
}

func (s *Server) guard(route Route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := principalOf(r)
		switch route.Access {
		case AccessAuthenticated:
			if !principal.Authenticated() {
				s.writeError(w, r, core.Unauthorized("authentication required"))
				return
			}
		case AccessPrivileged:
			if !principal.Authenticated() {
				s.writeError(w, r, core.Unauthorized("authentication required"))
				return
			}
			if !principal.Privileged() {
				s.writeError(w, r, core.Forbidden("admin or service role required"))
				return
			}
		}
		route.handler(w, r)
	})
}

func principalOf(r *http.Request) core.Principal {
	if principal, ok := core.PrincipalFromContext(r.Context()); ok {
		return principal
	}
	return core.AnonymousPrincipal()
}

var pageQuery = []string{"page", "per_page"}

func withPage(keys ...string) []string {
	return append(append([]string{}, keys...), pageQuery...)
}

func (s *Server) routeTable() []Route {
	routes := []Route{
		{Method: http.MethodGet, Pattern: "/healthz", Tag: "system", Summary: "Liveness check", Response: healthResponse{}, Status: http.StatusOK, handler: s.handleHealth},
		{Method: http.MethodGet, Pattern: "/readyz", Tag: "system", Summary: "Readiness check", Response: healthResponse{}, Status: http.StatusOK, handler: s.handleReady},
		{Method: http.MethodGet, Pattern: "/openapi.json", Tag: "system", Summary: "OpenAPI document", Status: http.StatusOK, handler: s.handleOpenAPI},
	}
	if s.metricsHandler != nil {
		routes = append(routes, Route{Method: http.MethodGet, Pattern: "/metrics", Tag: "system", Summary: "Prometheus metrics", Status: http.StatusOK, handler: s.metricsHandler.ServeHTTP})
	}

	routes = append(routes,
		// auth
		Route{Method: http.MethodPost, Pattern: "/v1/auth/token", Access: AccessPrivileged, Tag: "auth", Summary: "Issue tokens for a user or linked identity", Request: tokenRequest{}, Response: core.TokenPair{}, Status: http.StatusOK, handler: s.handleIssueToken},
		Route{Method: http.MethodPost, Pattern: "/v1/auth/refresh", Tag: "auth", Summary: "Rotate a refresh token", Request: refreshRequest{}, Response: core.TokenPair{}, Status: http.StatusOK, handler: s.handleRefreshToken},
		Route{Method: http.MethodPost, Pattern: "/v1/auth/revoke", Tag: "auth", Summary: "Revoke a refresh token family", Request: refreshRequest{}, Status: http.StatusNoContent, handler: s.handleRevokeToken},
		Route{Method: http.MethodGet, Pattern: "/v1/auth/me", Access: AccessAuthenticated, Tag: "auth", Summary: "Current principal", Response: meResponse{}, Status: http.StatusOK, handler: s.handleMe},

		// users
		Route{Method: http.MethodGet, Pattern: "/v1/users", Tag: "users", Summary: "List users", Query: withPage("q", "role", "status"), Response: core.User{}, List: true, Status: http.StatusOK, handler: s.handleListUsers},
		Route{Method: http.MethodPost, Pattern: "/v1/users", Access: AccessPrivileged, Tag: "users", Summary: "Create a user", Request: createUserRequest{}, Response: core.User{}, Status: http.StatusCreated, handler: s.handleCreateUser},
		Route{Method: http.MethodGet, Pattern: "/v1/users/lookup", Tag: "users", Summary: "Find the user owning an identity", Query: []string{"provider", "external_id"}, Response: core.User{}, Status: http.StatusOK, handler: s.handleLookupUser},
		Route{Method: http.MethodGet, Pattern: "/v1/users/by-username/{username}", Tag: "users", Summary: "Get a user by username", Response: core.User{}, Status: http.StatusOK, handler: s.handleGetUserByUsername},
		Route{Method: http.MethodGet, Pattern: "/v1/users/{id}", Tag: "users", Summary: "Get a user", Response: core.User{}, Status: http.StatusOK, handler: s.handleGetUser},
		Route{Method: http.MethodPatch, Pattern: "/v1/users/{id}", Access: AccessAuthenticated, Tag: "users", Summary: "Update a user", Request: updateUserRequest{}, Response: core.User{}, Status: http.StatusOK, handler: s.handleUpdateUser},
		Route{Method: http.MethodDelete, Pattern: "/v1/users/{id}", Access: AccessAuthenticated, Tag: "users", Summary: "Delete a user", Status: http.StatusNoContent, handler: s.handleDeleteUser},

		// identities
		Route{Method: http.MethodGet, Pattern: "/v1/users/{id}/identities", Tag: "identities", Summary: "List linked identities", Response: []core.Identity{}, Status: http.StatusOK, handler: s.handleListIdentities},
		Route{Method: http.MethodPost, Pattern: "/v1/users/{id}/identities", Access: AccessAuthenticated, Tag: "identities", Summary: "Link an identity", Request: linkIdentityRequest{}, Response: core.Identity{}, Status: http.StatusCreated, handler: s.handleLinkIdentity},
		Route{Method: http.MethodGet, Pattern: "/v1/identities/{id}", Tag: "identities", Summary: "Get an identity", Response: core.Identity{}, Status: http.StatusOK, handler: s.handleGetIdentity},
		Route{Method: http.MethodPatch, Pattern: "/v1/identities/{id}", Access: AccessAuthenticated, Tag: "identities", Summary: "Update an identity", Request: updateIdentityRequest{}, Response: core.Identity{}, Status: http.StatusOK, handler: s.handleUpdateIdentity},
		Route{Method: http.MethodDelete, Pattern: "/v1/identities/{id}", Access: AccessAuthenticated, Tag: "identities", Summary: "Unlink an identity", Status: http.StatusNoContent, handler: s.handleUnlinkIdentity},

		// applications
		Route{Method: http.MethodGet, Pattern: "/v1/applications", Tag: "applications", Summary: "List membership applications", Query: withPage("status", "applicant_id"), Response: core.Application{}, List: true, Status: http.StatusOK, handler: s.handleListApplications},
		Route{Method: http.MethodPost, Pattern: "/v1/applications", Access: AccessAuthenticated, Tag: "applications", Summary: "Submit a membership application", Request: submitApplicationRequest{}, Response: core.Application{}, Status: http.StatusCreated, handler: s.handleSubmitApplication},
		Route{Method: http.MethodGet, Pattern: "/v1/applications/{id}", Tag: "applications", Summary: "Get an application", Response: core.Application{}, Status: http.StatusOK, handler: s.handleGetApplication},
		Route{Method: http.MethodDelete, Pattern: "/v1/applications/{id}", Access: AccessPrivileged, Tag: "applications", Summary: "Delete an application", Status: http.StatusNoContent, handler: s.handleDeleteApplication},
		Route{Method: http.MethodPost, Pattern: "/v1/applications/{id}/withdraw", Access: AccessAuthenticated, Tag: "applications", Summary: "Withdraw a pending application", Response: core.Application{}, Status: http.StatusOK, handler: s.handleWithdrawApplication},
		Route{Method: http.MethodPost, Pattern: "/v1/applications/{id}/decision", Access: AccessPrivileged, Tag: "applications", Summary: "Approve or reject an application", Request: decisionRequest{}, Response: core.Application{}, Status: http.StatusOK, handler: s.handleDecideApplication},
		Route{Method: http.MethodPost, Pattern: "/v1/applications/{id}/votes", Access: AccessAuthenticated, Tag: "applications", Summary: "Cast a vote", Request: voteRequest{}, Response: core.VoteResult{}, Status: http.StatusOK, handler: s.handleCastVote},
		Route{Method: http.MethodGet, Pattern: "/v1/applications/{id}/votes", Access: AccessAuthenticated, Tag: "applications", Summary: "List votes", Response: []core.Vote{}, Status: http.StatusOK, handler: s.handleListVotes},

		// practice
		Route{Method: http.MethodGet, Pattern: "/v1/practice-sessions", Access: AccessAuthenticated, Tag: "practice", Summary: "List practice sessions", Query: withPage("user_id", "from", "to"), Response: core.PracticeSession{}, List: true, Status: http.StatusOK, handler: s.handleListPractice},
		Route{Method: http.MethodPost, Pattern: "/v1/practice-sessions", Access: AccessAuthenticated, Tag: "practice", Summary: "Record a completed practice session", Request: logPracticeRequest{}, Response: core.PracticeSession{}, Status: http.StatusCreated, handler: s.handleLogPractice},
		Route{Method: http.MethodPost, Pattern: "/v1/practice-sessions/start", Access: AccessAuthenticated, Tag: "practice", Summary: "Start a practice session", Request: startPracticeRequest{}, Response: core.PracticeSession{}, Status: http.StatusCreated, handler: s.handleStartPractice},
		Route{Method: http.MethodGet, Pattern: "/v1/practice-sessions/summary", Access: AccessAuthenticated, Tag: "practice", Summary: "Summarize practice time", Query: []string{"user_id", "from", "to"}, Response: core.PracticeSummary{}, Status: http.StatusOK, handler: s.handlePracticeSummary},
		Route{Method: http.MethodGet, Pattern: "/v1/practice-sessions/{id}", Access: AccessAuthenticated, Tag: "practice", Summary: "Get a practice session", Response: core.PracticeSession{}, Status: http.StatusOK, handler: s.handleGetPractice},
		Route{Method: http.MethodPost, Pattern: "/v1/practice-sessions/{id}/stop", Access: AccessAuthenticated, Tag: "practice", Summary: "Stop an active practice session", Response: core.PracticeSession{}, Status: http.StatusOK, handler: s.handleStopPractice},
		Route{Method: http.MethodDelete, Pattern: "/v1/practice-sessions/{id}", Access: AccessAuthenticated, Tag: "practice", Summary: "Delete a practice session", Status: http.StatusNoContent, handler: s.handleDeletePractice},

		// projects
		Route{Method: http.MethodGet, Pattern: "/v1/projects", Tag: "projects", Summary: "List projects", Query: withPage("owner_id", "status", "tag", "q"), Response: core.Project{}, List: true, Status: http.StatusOK, handler: s.handleListProjects},
		Route{Method: http.MethodPost, Pattern: "/v1/projects", Access: AccessAuthenticated, Tag: "projects", Summary: "Create a project", Request: createProjectRequest{}, Response: core.Project{}, Status: http.StatusCreated, handler: s.handleCreateProject},
		Route{Method: http.MethodGet, Pattern: "/v1/projects/{idOrSlug}", Tag: "projects", Summary: "Get a project by id or slug", Response: core.Project{}, Status: http.StatusOK, handler: s.handleGetProject},
		Route{Method: http.MethodPatch, Pattern: "/v1/projects/{idOrSlug}", Access: AccessAuthenticated, Tag: "projects", Summary: "Update a project", Request: updateProjectRequest{}, Response: core.Project{}, Status: http.StatusOK, handler: s.handleUpdateProject},
		Route{Method: http.MethodDelete, Pattern: "/v1/projects/{idOrSlug}", Access: AccessAuthenticated, Tag: "projects", Summary: "Delete a project", Status: http.StatusNoContent, handler: s.handleDeleteProject},

		// treasuries
		Route{Method: http.MethodGet, Pattern: "/v1/treasuries", Tag: "treasuries", Summary: "List treasuries", Query: withPage("chain"), Response: core.Treasury{}, List: true, Status: http.StatusOK, handler: s.handleListTreasuries},
		Route{Method: http.MethodPost, Pattern: "/v1/treasuries", Access: AccessPrivileged, Tag: "treasuries", Summary: "Create a treasury", Request: createTreasuryRequest{}, Response: core.Treasury{}, Status: http.StatusCreated, handler: s.handleCreateTreasury},
		Route{Method: http.MethodGet, Pattern: "/v1/treasuries/{id}", Tag: "treasuries", Summary: "Get a treasury", Response: core.Treasury{}, Status: http.StatusOK, handler: s.handleGetTreasury},
		Route{Method: http.MethodPatch, Pattern: "/v1/treasuries/{id}", Access: AccessPrivileged, Tag: "treasuries", Summary: "Update a treasury", Request: updateTreasuryRequest{}, Response: core.Treasury{}, Status: http.StatusOK, handler: s.handleUpdateTreasury},
		Route{Method: http.MethodDelete, Pattern: "/v1/treasuries/{id}", Access: AccessPrivileged, Tag: "treasuries", Summary: "Delete a treasury", Status: http.StatusNoContent, handler: s.handleDeleteTreasury},

		// vanishing channels
		Route{Method: http.MethodGet, Pattern: "/v1/vanishing-channels", Tag: "vanishing-channels", Summary: "List vanishing channels", Query: withPage("guild_id"), Response: core.VanishingChannel{}, List: true, Status: http.StatusOK, handler: s.handleListVanishing},
		Route{Method: http.MethodPost, Pattern: "/v1/vanishing-channels", Access: AccessPrivileged, Tag: "vanishing-channels", Summary: "Create or replace a vanishing channel", Request: upsertVanishingRequest{}, Response: core.VanishingChannel{}, Status: http.StatusOK, handler: s.handleUpsertVanishing},
		Route{Method: http.MethodGet, Pattern: "/v1/vanishing-channels/by-channel/{channel_id}", Tag: "vanishing-channels", Summary: "Get the vanishing setting of a channel", Response: core.VanishingChannel{}, Status: http.StatusOK, handler: s.handleGetVanishingByChannel},
		Route{Method: http.MethodPut, Pattern: "/v1/vanishing-channels/by-channel/{channel_id}", Access: AccessPrivileged, Tag: "vanishing-channels", Summary: "Upsert the vanishing setting of a channel", Request: putVanishingRequest{}, Response: core.VanishingChannel{}, Status: http.StatusOK, handler: s.handlePutVanishingByChannel},
		Route{Method: http.MethodGet, Pattern: "/v1/vanishing-channels/{id}", Tag: "vanishing-channels", Summary: "Get a vanishing channel", Response: core.VanishingChannel{}, Status: http.StatusOK, handler: s.handleGetVanishing},
		Route{Method: http.MethodPatch, Pattern: "/v1/vanishing-channels/{id}", Access: AccessPrivileged, Tag: "vanishing-channels", Summary: "Update a vanishing channel", Request: updateVanishingRequest{}, Response: core.VanishingChannel{}, Status: http.StatusOK, handler: s.handleUpdateVanishing},
		Route{Method: http.MethodDelete, Pattern: "/v1/vanishing-channels/{id}", Access: AccessPrivileged, Tag: "vanishing-channels", Summary: "Delete a vanishing channel", Status: http.StatusNoContent, handler: s.handleDeleteVanishing},

		// webhooks
		Route{Method: http.MethodGet, Pattern: "/v1/webhooks", Access: AccessPrivileged, Tag: "webhooks", Summary: "List webhook subscriptions", Query: withPage("owner_id", "active"), Response: core.WebhookSubscription{}, List: true, Status: http.StatusOK, handler: s.handleListWebhooks},
		Route{Method: http.MethodPost, Pattern: "/v1/webhooks", Access: AccessPrivileged, Tag: "webhooks", Summary: "Create a webhook subscription", Request: createWebhookRequest{}, Response: core.WebhookSubscription{}, Status: http.StatusCreated, handler: s.handleCreateWebhook},
		Route{Method: http.MethodGet, Pattern: "/v1/webhooks/{id}", Access: AccessPrivileged, Tag: "webhooks", Summary: "Get a webhook subscription", Response: core.WebhookSubscription{}, Status: http.StatusOK, handler: s.handleGetWebhook},
		Route{Method: http.MethodPatch, Pattern: "/v1/webhooks/{id}", Access: AccessPrivileged, Tag: "webhooks", Summary: "Update a webhook subscription", Request: updateWebhookRequest{}, Response: core.WebhookSubscription{}, Status: http.StatusOK, handler: s.handleUpdateWebhook},
		Route{Method: http.MethodDelete, Pattern: "/v1/webhooks/{id}", Access: AccessPrivileged, Tag: "webhooks", Summary: "Delete a webhook subscription", Status: http.StatusNoContent, handler: s.handleDeleteWebhook},
		Route{Method: http.MethodGet, Pattern: "/v1/webhooks/{id}/deliveries", Access: AccessPrivileged, Tag: "webhooks", Summary: "List deliveries of a subscription", Query: pageQuery, Response: core.WebhookDelivery{}, List: true, Status: http.StatusOK, handler: s.handleListDeliveries},
		Route{Method: http.MethodPost, Pattern: "/v1/webhooks/{id}/ping", Access: AccessPrivileged, Tag: "webhooks", Summary: "Send a ping delivery", Response: core.WebhookDelivery{}, Status: http.StatusAccepted, handler: s.handlePingWebhook},
		Route{Method: http.MethodGet, Pattern: "/v1/webhook-deliveries/{id}", Access: AccessPrivileged, Tag: "webhooks", Summary: "Get a delivery", Response: core.WebhookDelivery{}, Status: http.StatusOK, handler: s.handleGetDelivery},
		Route{Method: http.MethodPost, Pattern: "/v1/webhook-deliveries/{id}/retry", Access: AccessPrivileged, Tag: "webhooks", Summary: "Retry a delivery now", Response: core.WebhookDelivery{}, Status: http.StatusAccepted, handler: s.handleRetryDelivery},

		// logs
		Route{Method: http.MethodPost, Pattern: "/v1/logs", Access: AccessAuthenticated, Tag: "logs", Summary: "Append a log entry", Request: appendLogRequest{}, Response: core.LogEntry{}, Status: http.StatusCreated, handler: s.handleAppendLog},
		Route{Method: http.MethodGet, Pattern: "/v1/logs", Access: AccessPrivileged, Tag: "logs", Summary: "Search log entries", Query: withPage("level", "source", "user_id", "since", "until"), Response: core.LogEntry{}, List: true, Status: http.StatusOK, handler: s.handleListLogs},
	)
	return routes
}
