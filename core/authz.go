package core

import (
	"context"
	"strings"
)

func requireAuthenticated(ctx context.Context) (Principal, error) {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		return Principal{}, Unauthorized("authentication required")
	}
	return principal, nil
}

func requirePrivileged(ctx context.Context) (Principal, error) {
	principal, err := requireAuthenticated(ctx)
	if err != nil {
		return Principal{}, err
	}
	if !principal.Privileged() {
		return Principal{}, Forbidden("admin or service role required")
	}
	return principal, nil
}

// requireSelfOrPrivileged allows the owner of a resource or an admin/service caller.
func requireSelfOrPrivileged(ctx context.Context, ownerID string) (Principal, error) {
	principal, err := requireAuthenticated(ctx)
	if err != nil {
		return Principal{}, err
	}
	if principal.Privileged() {
		return principal, nil
	}
	if ownerID = strings.TrimSpace(ownerID); ownerID != "" && principal.UserID == ownerID {
		return principal, nil
	}
	return Principal{}, Forbidden("not allowed to modify this resource")
}
