package core

import (
	"context"
	"strings"
)

// Principal identifies the caller of a request.
type Principal struct {
	UserID string `json:"user_id,omitempty"`
	Role   Role   `json:"role"`
}

func (p Principal) Authenticated() bool {
	role := Role(strings.TrimSpace(string(p.Role)))
	return role != "" && role != RoleAnonymous
}

func (p Principal) Privileged() bool {
	return p.Role.Privileged()
}

// CanVote reports whether the principal may vote on membership applications.
func (p Principal) CanVote() bool {
	return p.Role == RoleMember || p.Role == RoleAdmin
}

func AnonymousPrincipal() Principal {
	return Principal{Role: RoleAnonymous}
}

// SystemPrincipal is used for side effects the service performs on behalf of
// a caller, such as promoting an applicant after a vote.
func SystemPrincipal() Principal {
	return Principal{Role: RoleService}
}

type principalContextKey struct{}

func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext returns the authenticated principal. Anonymous callers
// report false.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	principal, ok := ctx.Value(principalContextKey{}).(Principal)
	if !ok || !principal.Authenticated() {
		return Principal{}, false
	}
	return principal, true
}

func systemContext(ctx context.Context) context.Context {
	return WithPrincipal(ctx, SystemPrincipal())
}
