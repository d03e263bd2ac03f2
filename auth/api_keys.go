package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-community/core"
	"golang.org/x/crypto/bcrypt"
)

const MinAPIKeyLength = 24

// HashAPIKey returns the bcrypt hash stored in auth.service_api_key_hashes.
func HashAPIKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if len(key) < MinAPIKeyLength {
		return "", fmt.Errorf("auth: api key must be at least %d characters", MinAPIKeyLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash api key: %w", err)
	}
	return string(hash), nil
}

// BcryptKeyVerifier accepts any key matching one of the configured hashes.
type BcryptKeyVerifier struct {
	hashes [][]byte
}

func NewBcryptKeyVerifier(hashes []string) (*BcryptKeyVerifier, error) {
	verifier := &BcryptKeyVerifier{}
	for idx, hash := range hashes {
		hash = strings.TrimSpace(hash)
		if hash == "" {
			continue
		}
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("auth: api key hash %d is not a bcrypt hash: %w", idx, err)
		}
		verifier.hashes = append(verifier.hashes, []byte(hash))
	}
	return verifier, nil
}

func (v *BcryptKeyVerifier) Enabled() bool {
	return v != nil && len(v.hashes) > 0
}

func (v *BcryptKeyVerifier) Verify(ctx context.Context, key string) (bool, error) {
	if !v.Enabled() {
		return false, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return false, nil
	}
	for _, hash := range v.hashes {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		err := bcrypt.CompareHashAndPassword(hash, []byte(key))
		if err == nil {
			return true, nil
		}
		if err != bcrypt.ErrMismatchedHashAndPassword {
			return false, fmt.Errorf("auth: compare api key: %w", err)
		}
	}
	return false, nil
}

var _ core.APIKeyVerifier = (*BcryptKeyVerifier)(nil)
