package core

import (
	"context"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func TestAuth_IssueAndRotate(t *testing.T) {
	h, err := newTestHarness(DefaultConfig())
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	user := h.mustUser("rotator", RoleMember)

	if _, err = h.svc.IssueTokens(asUser(user), user.ID); !goerrors.IsCategory(err, goerrors.CategoryAuthz) {
		t.Fatalf("expected members to be unable to mint tokens, got %v", err)
	}

	pair, err := h.svc.IssueTokens(asService(), user.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if pair.TokenType != "Bearer" || pair.RefreshToken == "" || pair.ExpiresIn != int64((15*time.Minute)/time.Second) {
		t.Fatalf("unexpected pair: %+v", pair)
	}

	principal, err := h.svc.AuthenticateAccessToken(context.Background(), pair.AccessToken)
	if err != nil || principal.UserID != user.ID || principal.Role != RoleMember {
		t.Fatalf("authenticate: %+v / %v", principal, err)
	}

	h.advance(time.Minute)
	rotated, err := h.svc.RefreshTokens(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatalf("expected a new refresh token")
	}

	stored, err := h.stores.refreshTokens.GetByHash(context.Background(), HashRefreshToken(rotated.RefreshToken))
	if err != nil {
		t.Fatalf("lookup child: %v", err)
	}
	parent, _ := h.stores.refreshTokens.GetByHash(context.Background(), HashRefreshToken(pair.RefreshToken))
	if parent.Status != RefreshTokenUsed || stored.ParentID != parent.ID || stored.FamilyID != parent.FamilyID {
		t.Fatalf("unexpected lineage parent=%+v child=%+v", parent, stored)
	}
	if parent.TokenHash == pair.RefreshToken {
		t.Fatalf("raw refresh token must never be stored")
	}
}

func TestAuth_ReuseRevokesFamily(t *testing.T) {
	h, err := newTestHarness(DefaultConfig())
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	user := h.mustUser("victim", RoleMember)
	pair, err := h.svc.IssueTokens(asService(), user.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	rotated, err := h.svc.RefreshTokens(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	_, err = h.svc.RefreshTokens(context.Background(), pair.RefreshToken)
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != ErrorTokenReused {
		t.Fatalf("expected token reuse error, got %v", err)
	}

	current, _ := h.stores.refreshTokens.GetByHash(context.Background(), HashRefreshToken(rotated.RefreshToken))
	for _, token := range h.stores.refreshTokens.family(current.FamilyID) {
		if token.Status != RefreshTokenRevoked || token.RevokedReason != "reuse_detected" {
			t.Fatalf("expected family revoked, got %+v", token)
		}
	}

	if _, err = h.svc.RefreshTokens(context.Background(), rotated.RefreshToken); !goerrors.IsCategory(err, goerrors.CategoryAuth) {
		t.Fatalf("expected revoked child to be rejected, got %v", err)
	}
}

func TestAuth_ConcurrentRotationLoserRevokesFamily(t *testing.T) {
	h, err := newTestHarness(DefaultConfig())
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	user := h.mustUser("racer", RoleMember)
	pair, err := h.svc.IssueTokens(asService(), user.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	h.stores.refreshTokens.raceParent = true

	_, err = h.svc.RefreshTokens(context.Background(), pair.RefreshToken)
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != ErrorTokenReused {
		t.Fatalf("expected token reuse error, got %v", err)
	}
	stored, _ := h.stores.refreshTokens.GetByHash(context.Background(), HashRefreshToken(pair.RefreshToken))
	if stored.Status != RefreshTokenRevoked {
		t.Fatalf("expected family revoked after lost race, got %s", stored.Status)
	}
}

func TestAuth_ExpiredAndInactive(t *testing.T) {
	h, err := newTestHarness(DefaultConfig())
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	user := h.mustUser("sleepy", RoleMember)
	pair, err := h.svc.IssueTokens(asService(), user.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	h.advance(721 * time.Hour)
	if _, err = h.svc.RefreshTokens(context.Background(), pair.RefreshToken); !goerrors.IsCategory(err, goerrors.CategoryAuth) {
		t.Fatalf("expected expired refresh to fail, got %v", err)
	}

	second, err := h.svc.IssueTokens(asService(), user.ID)
	if err != nil {
		t.Fatalf("issue second: %v", err)
	}
	if err = h.svc.DeleteUser(asService(), user.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, err = h.svc.RefreshTokens(context.Background(), second.RefreshToken); !goerrors.IsCategory(err, goerrors.CategoryAuth) {
		t.Fatalf("expected refresh for deleted user to fail, got %v", err)
	}
	stored, _ := h.stores.refreshTokens.GetByHash(context.Background(), HashRefreshToken(second.RefreshToken))
	if stored.Status != RefreshTokenRevoked {
		t.Fatalf("expected family revoked for inactive user")
	}
	if _, err = h.svc.AuthenticateAccessToken(context.Background(), second.AccessToken); !goerrors.IsCategory(err, goerrors.CategoryAuth) {
		t.Fatalf("expected access token of deleted user to fail, got %v", err)
	}
}

func TestAuth_RevokeIsIdempotent(t *testing.T) {
	h, err := newTestHarness(DefaultConfig())
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	user := h.mustUser("logout", RoleMember)
	pair, err := h.svc.IssueTokens(asService(), user.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err = h.svc.RevokeTokens(context.Background(), pair.RefreshToken); err != nil {
			t.Fatalf("revoke %d: %v", i, err)
		}
	}
	if err = h.svc.RevokeTokens(context.Background(), "never-issued"); err != nil {
		t.Fatalf("revoke unknown: %v", err)
	}
	if _, err = h.svc.RefreshTokens(context.Background(), pair.RefreshToken); !goerrors.IsCategory(err, goerrors.CategoryAuth) {
		t.Fatalf("expected revoked token to fail, got %v", err)
	}
}

func TestAuth_APIKeyAndIdentityIssue(t *testing.T) {
	h, err := newTestHarness(DefaultConfig())
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	principal, err := h.svc.AuthenticateAPIKey(context.Background(), "svc-key")
	if err != nil || principal.Role != RoleService {
		t.Fatalf("api key: %+v / %v", principal, err)
	}
	if _, err = h.svc.AuthenticateAPIKey(context.Background(), "nope"); !goerrors.IsCategory(err, goerrors.CategoryAuth) {
		t.Fatalf("expected invalid key to fail, got %v", err)
	}

	user := h.mustUser("gamer", RoleMember)
	if _, err = h.svc.LinkIdentity(asUser(user), user.ID, LinkIdentityInput{Provider: "discord", ExternalID: "123456"}); err != nil {
		t.Fatalf("link: %v", err)
	}
	pair, err := h.svc.IssueForIdentity(WithPrincipal(context.Background(), principal), "discord", "123456")
	if err != nil || pair.UserID != user.ID {
		t.Fatalf("issue for identity: %+v / %v", pair, err)
	}
}

func TestAuth_PurgeExpired(t *testing.T) {
	h, err := newTestHarness(DefaultConfig())
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	user := h.mustUser("purgeable", RoleMember)
	if _, err = h.svc.IssueTokens(asService(), user.ID); err != nil {
		t.Fatalf("issue: %v", err)
	}
	h.advance(800 * time.Hour)
	purged, err := h.svc.PurgeExpiredTokens(asService(), time.Time{})
	if err != nil || purged != 1 {
		t.Fatalf("purge: %d / %v", purged, err)
	}
}
