package core

import (
	"context"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	tokenTypeBearer     = "Bearer"
	revokeReasonLogout  = "logout"
	revokeReasonReuse   = "reuse_detected"
	revokeReasonInvalid = "user_inactive"
)

func tokenReusedError() *goerrors.Error {
	return newServiceError("refresh token reuse detected", goerrors.CategoryAuth, ErrorTokenReused)
}

// IssueTokens issues a fresh access token and a refresh token that starts a
// new rotation family. Only admin and service callers may mint tokens.
func (s *Service) IssueTokens(ctx context.Context, userID string) (pair TokenPair, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": userID}
	defer func() {
		s.observeOperation(ctx, startedAt, "issue_tokens", err, fields)
	}()

	if _, err = requirePrivileged(ctx); err != nil {
		return TokenPair{}, err
	}
	if userID, err = requireID("user_id", userID); err != nil {
		return TokenPair{}, err
	}
	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return TokenPair{}, err
	}
	pair, err = s.issueFamily(ctx, user)
	if err != nil {
		err = s.mapError(err)
		return TokenPair{}, err
	}
	return pair, nil
}

// IssueForIdentity issues tokens for the user owning a provider identity.
func (s *Service) IssueForIdentity(ctx context.Context, provider, externalID string) (pair TokenPair, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"provider": provider}
	defer func() {
		s.observeOperation(ctx, startedAt, "issue_for_identity", err, fields)
	}()

	if _, err = requirePrivileged(ctx); err != nil {
		return TokenPair{}, err
	}
	user, err := s.LookupUser(ctx, provider, externalID)
	if err != nil {
		return TokenPair{}, err
	}
	fields["user_id"] = user.ID
	if !user.Active() {
		err = Unauthorized("user is not active")
		return TokenPair{}, err
	}
	pair, err = s.issueFamily(ctx, user)
	if err != nil {
		err = s.mapError(err)
		return TokenPair{}, err
	}
	return pair, nil
}

// RefreshTokens rotates a refresh token. Presenting a token that was already
// rotated revokes every token in its family.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (pair TokenPair, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		s.observeOperation(ctx, startedAt, "refresh_tokens", err, fields)
	}()

	if err = s.requireTokenStores(); err != nil {
		return TokenPair{}, err
	}
	sysCtx := systemContext(ctx)
	current, err := s.lookupRefreshToken(sysCtx, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	fields["user_id"] = current.UserID
	fields["token_family_id"] = current.FamilyID

	now := s.now()
	switch current.Status {
	case RefreshTokenRevoked:
		err = Unauthorized("refresh token revoked")
		return TokenPair{}, err
	case RefreshTokenUsed:
		err = s.revokeOnReuse(sysCtx, current.FamilyID, now)
		return TokenPair{}, err
	}
	if !now.Before(current.ExpiresAt) {
		err = Unauthorized("refresh token expired")
		return TokenPair{}, err
	}

	user, err := s.users.Get(sysCtx, current.UserID)
	if err != nil || !user.Active() {
		if _, revokeErr := s.refreshTokens.RevokeFamily(sysCtx, current.FamilyID, revokeReasonInvalid, now); revokeErr != nil {
			s.logError(ctx, "refresh family revoke failed", map[string]any{"token_family_id": current.FamilyID, "error": revokeErr.Error()})
		}
		err = Unauthorized("user is not active")
		return TokenPair{}, err
	}

	raw, hash, err := generateRefreshToken()
	if err != nil {
		err = s.mapError(err)
		return TokenPair{}, err
	}
	child, err := s.refreshTokens.MarkUsedAndCreateChild(sysCtx, current.ID, now, RefreshToken{
		ID:        s.newID(),
		UserID:    current.UserID,
		FamilyID:  current.FamilyID,
		ParentID:  current.ID,
		TokenHash: hash,
		Status:    RefreshTokenActive,
		ExpiresAt: now.Add(s.config.Auth.RefreshTTLDuration()),
		CreatedAt: now,
	})
	if err != nil {
		if errors.Is(err, ErrRefreshTokenReused) {
			err = s.revokeOnReuse(sysCtx, current.FamilyID, now)
			return TokenPair{}, err
		}
		err = s.mapError(err)
		return TokenPair{}, err
	}

	pair, err = s.buildPair(ctx, user, raw, child)
	if err != nil {
		err = s.mapError(err)
		return TokenPair{}, err
	}
	return pair, nil
}

// RevokeTokens revokes the family of the presented refresh token. Unknown and
// already revoked tokens succeed.
func (s *Service) RevokeTokens(ctx context.Context, refreshToken string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		s.observeOperation(ctx, startedAt, "revoke_tokens", err, fields)
	}()

	if err = s.requireTokenStores(); err != nil {
		return err
	}
	sysCtx := systemContext(ctx)
	current, lookupErr := s.lookupRefreshToken(sysCtx, refreshToken)
	if lookupErr != nil {
		if goerrors.IsCategory(lookupErr, goerrors.CategoryAuth) {
			return nil
		}
		err = lookupErr
		return err
	}
	fields["token_family_id"] = current.FamilyID
	if _, err = s.refreshTokens.RevokeFamily(sysCtx, current.FamilyID, revokeReasonLogout, s.now()); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

// AuthenticateAccessToken verifies an access token and resolves the caller.
// The role comes from the current user record, not the token.
func (s *Service) AuthenticateAccessToken(ctx context.Context, token string) (Principal, error) {
	if s.tokenSigner == nil {
		return Principal{}, Internal(nil, "core: token signer is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, Unauthorized("missing access token")
	}
	claims, err := s.tokenSigner.Verify(ctx, token)
	if err != nil {
		return Principal{}, Unauthorized("invalid access token")
	}
	user, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		return Principal{}, err
	}
	return Principal{UserID: user.ID, Role: user.Role}, nil
}

// AuthenticateAPIKey resolves a trusted service caller.
func (s *Service) AuthenticateAPIKey(ctx context.Context, key string) (Principal, error) {
	if s.apiKeyVerifier == nil {
		return Principal{}, Unauthorized("api keys are not enabled")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return Principal{}, Unauthorized("missing api key")
	}
	ok, err := s.apiKeyVerifier.Verify(ctx, key)
	if err != nil {
		return Principal{}, s.mapError(err)
	}
	if !ok {
		return Principal{}, Unauthorized("invalid api key")
	}
	return SystemPrincipal(), nil
}

// PurgeExpiredTokens deletes refresh tokens that expired before the cutoff.
func (s *Service) PurgeExpiredTokens(ctx context.Context, before time.Time) (purged int, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["purged"] = purged
		s.observeOperation(ctx, startedAt, "purge_expired_tokens", err, fields)
	}()

	if _, err = requirePrivileged(ctx); err != nil {
		return 0, err
	}
	if err = s.requireStore(s.refreshTokens, "refresh token"); err != nil {
		return 0, err
	}
	if before.IsZero() {
		before = s.now()
	}
	purged, err = s.refreshTokens.PurgeExpired(ctx, before.UTC())
	if err != nil {
		err = s.mapError(err)
		return 0, err
	}
	return purged, nil
}

func (s *Service) requireTokenStores() error {
	if err := s.requireStore(s.refreshTokens, "refresh token"); err != nil {
		return err
	}
	if err := s.requireStore(s.users, "user"); err != nil {
		return err
	}
	if s.tokenSigner == nil {
		return Internal(nil, "core: token signer is not configured")
	}
	return nil
}

func (s *Service) activeUser(ctx context.Context, userID string) (User, error) {
	if err := s.requireStore(s.users, "user"); err != nil {
		return User{}, err
	}
	user, err := s.users.Get(systemContext(ctx), strings.TrimSpace(userID))
	if err != nil {
		if IsNotFound(err) {
			return User{}, Unauthorized("user not found")
		}
		return User{}, s.mapError(err)
	}
	if !user.Active() {
		return User{}, Unauthorized("user is not active")
	}
	return user, nil
}

func (s *Service) lookupRefreshToken(ctx context.Context, raw string) (RefreshToken, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return RefreshToken{}, Unauthorized("missing refresh token")
	}
	token, err := s.refreshTokens.GetByHash(ctx, HashRefreshToken(raw))
	if err != nil {
		if IsNotFound(err) {
			return RefreshToken{}, Unauthorized("invalid refresh token")
		}
		return RefreshToken{}, s.mapError(err)
	}
	return token, nil
}

func (s *Service) revokeOnReuse(ctx context.Context, familyID string, now time.Time) error {
	revoked, err := s.refreshTokens.RevokeFamily(ctx, familyID, revokeReasonReuse, now)
	if err != nil {
		return s.mapError(err)
	}
	s.logWarn(ctx, "refresh token reuse detected", map[string]any{
		"token_family_id": familyID,
		"revoked":         revoked,
	})
	return tokenReusedError()
}

func (s *Service) issueFamily(ctx context.Context, user User) (TokenPair, error) {
	if err := s.requireTokenStores(); err != nil {
		return TokenPair{}, err
	}
	raw, hash, err := generateRefreshToken()
	if err != nil {
		return TokenPair{}, err
	}
	now := s.now()
	tokenID := s.newID()
	stored, err := s.refreshTokens.Create(systemContext(ctx), RefreshToken{
		ID:        tokenID,
		UserID:    user.ID,
		FamilyID:  s.newID(),
		TokenHash: hash,
		Status:    RefreshTokenActive,
		ExpiresAt: now.Add(s.config.Auth.RefreshTTLDuration()),
		CreatedAt: now,
	})
	if err != nil {
		return TokenPair{}, err
	}
	return s.buildPair(ctx, user, raw, stored)
}

func (s *Service) buildPair(ctx context.Context, user User, rawRefresh string, refresh RefreshToken) (TokenPair, error) {
	now := s.now()
	ttl := s.config.Auth.AccessTTLDuration()
	claims := AccessClaims{
		TokenID:   s.newID(),
		UserID:    user.ID,
		Role:      user.Role,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	access, err := s.tokenSigner.Sign(ctx, claims)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		TokenType:        tokenTypeBearer,
		ExpiresIn:        int64(ttl / time.Second),
		ExpiresAt:        claims.ExpiresAt,
		RefreshToken:     rawRefresh,
		RefreshExpiresAt: refresh.ExpiresAt,
		UserID:           user.ID,
		Role:             user.Role,
	}, nil
}
