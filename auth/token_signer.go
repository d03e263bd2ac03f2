package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-community/core"
)

const (
	MinSigningKeyLength = 32
	defaultLeeway       = 5 * time.Second
)

// accessClaims is the wire shape of an access token.
type accessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTSigner signs and verifies HS256 access tokens.
type JWTSigner struct {
	key      []byte
	issuer   string
	audience string
	leeway   time.Duration
	now      func() time.Time
}

type JWTSignerOption func(*JWTSigner)

func WithLeeway(leeway time.Duration) JWTSignerOption {
	return func(s *JWTSigner) {
		if leeway >= 0 {
			s.leeway = leeway
		}
	}
}

func WithSignerClock(now func() time.Time) JWTSignerOption {
	return func(s *JWTSigner) {
		if now != nil {
			s.now = now
		}
	}
}

func NewJWTSigner(signingKey string, issuer string, audience string, opts ...JWTSignerOption) (*JWTSigner, error) {
	signingKey = strings.TrimSpace(signingKey)
	if len(signingKey) < MinSigningKeyLength {
		return nil, fmt.Errorf("auth: signing key must be at least %d bytes", MinSigningKeyLength)
	}
	signer := &JWTSigner{
		key:      []byte(signingKey),
		issuer:   strings.TrimSpace(issuer),
		audience: strings.TrimSpace(audience),
		leeway:   defaultLeeway,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(signer)
		}
	}
	return signer, nil
}

// NewJWTSignerFromConfig builds a signer from the auth section of the service config.
func NewJWTSignerFromConfig(cfg core.AuthConfig, opts ...JWTSignerOption) (*JWTSigner, error) {
	return NewJWTSigner(cfg.SigningKey, cfg.Issuer, cfg.Audience, opts...)
}

func (s *JWTSigner) Sign(_ context.Context, claims core.AccessClaims) (string, error) {
	if strings.TrimSpace(claims.UserID) == "" {
		return "", fmt.Errorf("auth: access token subject is required")
	}
	if claims.ExpiresAt.IsZero() {
		return "", fmt.Errorf("auth: access token expiry is required")
	}
	issuedAt := claims.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = s.now()
	}
	registered := jwt.RegisteredClaims{
		Subject:   claims.UserID,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		ID:        claims.TokenID,
	}
	if s.audience != "" {
		registered.Audience = jwt.ClaimStrings{s.audience}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		Role:             string(claims.Role),
		RegisteredClaims: registered,
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("auth: sign access token: %w", err)
	}
	return signed, nil
}

func (s *JWTSigner) Verify(_ context.Context, raw string) (core.AccessClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return core.AccessClaims{}, core.Unauthorized("missing access token")
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(s.audience))
	}

	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	}, parserOpts...)
	if err != nil || !token.Valid {
		return core.AccessClaims{}, core.Unauthorized("invalid access token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return core.AccessClaims{}, core.Unauthorized("access token has no subject")
	}

	out := core.AccessClaims{
		TokenID: claims.ID,
		UserID:  claims.Subject,
		Role:    core.Role(claims.Role),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.UTC()
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.UTC()
	}
	return out, nil
}

var _ core.TokenSigner = (*JWTSigner)(nil)
