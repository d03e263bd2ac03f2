// Package identity validates and canonicalises external identity ids before
// they are linked to a community user.
package identity

import (
	"regexp"
	"strings"

	"github.com/goliatone/go-community/core"
	goerrors "github.com/goliatone/go-errors"
)

var (
	walletPattern    = regexp.MustCompile(`^0x[0-9a-f]{40}$`)
	snowflakePattern = regexp.MustCompile(`^[0-9]{5,20}$`)
	githubPattern    = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,38}$`)
	lensPattern      = regexp.MustCompile(`^[a-z0-9_]{5,26}$`)
	fidPattern       = regexp.MustCompile(`^[1-9][0-9]{0,19}$`)
)

// Normalizer implements core.IdentityNormalizer with per-provider rules.
type Normalizer struct{}

func NewNormalizer() Normalizer {
	return Normalizer{}
}

func (Normalizer) Normalize(provider core.IdentityProvider, externalID string) (string, error) {
	value := strings.TrimSpace(externalID)
	if value == "" {
		return "", invalid(provider, externalID, "external_id is required")
	}

	switch provider {
	case core.ProviderWallet:
		value = strings.ToLower(value)
		if !walletPattern.MatchString(value) {
			return "", invalid(provider, externalID, "must be 0x followed by 40 hex characters")
		}
	case core.ProviderDiscord, core.ProviderTelegram:
		if !snowflakePattern.MatchString(value) {
			return "", invalid(provider, externalID, "must be a numeric id of 5-20 digits")
		}
	case core.ProviderGitHub:
		value = strings.ToLower(value)
		if !githubPattern.MatchString(value) {
			return "", invalid(provider, externalID, "must be a github login")
		}
	case core.ProviderLens:
		handle := strings.ToLower(value)
		handle = strings.TrimPrefix(handle, "lens/")
		handle = strings.TrimSuffix(handle, ".lens")
		if !lensPattern.MatchString(handle) {
			return "", invalid(provider, externalID, "must be a lens handle")
		}
		value = "lens/" + handle
	case core.ProviderFarcaster:
		if !fidPattern.MatchString(value) {
			return "", invalid(provider, externalID, "must be a numeric farcaster id")
		}
	default:
		return "", core.BadInput("unknown identity provider", goerrors.FieldError{
			Field:   "provider",
			Message: "unsupported provider",
			Value:   string(provider),
		})
	}
	return value, nil
}

func invalid(provider core.IdentityProvider, value string, message string) error {
	return core.BadInput("invalid "+string(provider)+" identity", goerrors.FieldError{
		Field:   "external_id",
		Message: message,
		Value:   value,
	})
}

var _ core.IdentityNormalizer = Normalizer{}
