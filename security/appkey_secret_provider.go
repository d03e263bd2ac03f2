// Package security encrypts webhook signing secrets at rest.
package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/goliatone/go-community/core"
)

const defaultKeyID = "app-key"

type Option func(*AppKeySecretProvider) error

// AppKeySecretProvider seals values with AES-256-GCM under the application
// key. Retired keys stay available for decryption so the key can be rotated
// without rewriting stored secrets first.
type AppKeySecretProvider struct {
	keyID   string
	aead    cipher.AEAD
	retired map[string]cipher.AEAD
}

func WithKeyID(id string) Option {
	return func(provider *AppKeySecretProvider) error {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			provider.keyID = trimmed
		}
		return nil
	}
}

// WithRetiredKey registers a previous key that can still decrypt envelopes
// stamped with keyID.
func WithRetiredKey(keyID string, keyMaterial []byte) Option {
	return func(provider *AppKeySecretProvider) error {
		keyID = strings.TrimSpace(keyID)
		if keyID == "" {
			return fmt.Errorf("security: retired key id is required")
		}
		aead, err := newAEAD(keyMaterial)
		if err != nil {
			return err
		}
		provider.retired[keyID] = aead
		return nil
	}
}

func NewAppKeySecretProvider(keyMaterial []byte, opts ...Option) (*AppKeySecretProvider, error) {
	aead, err := newAEAD(keyMaterial)
	if err != nil {
		return nil, err
	}
	provider := &AppKeySecretProvider{
		keyID:   defaultKeyID,
		aead:    aead,
		retired: map[string]cipher.AEAD{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(provider); err != nil {
			return nil, err
		}
	}
	if _, clash := provider.retired[provider.keyID]; clash {
		return nil, fmt.Errorf("security: key id %q is both active and retired", provider.keyID)
	}
	return provider, nil
}

// NewAppKeySecretProviderFromString accepts either raw key text or a
// "base64:" prefixed 32 byte key.
func NewAppKeySecretProviderFromString(key string, opts ...Option) (*AppKeySecretProvider, error) {
	material, err := decodeKeyString(key)
	if err != nil {
		return nil, err
	}
	return NewAppKeySecretProvider(material, opts...)
}

func (p *AppKeySecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: plaintext is required")
	}
	nonce := make([]byte, p.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("security: nonce generation failed: %w", err)
	}
	sealed := p.aead.Seal(nil, nonce, plaintext, []byte(p.keyID))
	return encodeEnvelope(p.keyID, nonce, sealed)
}

func (p *AppKeySecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	env, err := decodeEnvelope(ciphertext)
	if err != nil {
		return nil, err
	}
	aead := p.aead
	if env.KeyID != p.keyID {
		retired, ok := p.retired[env.KeyID]
		if !ok {
			return nil, fmt.Errorf("security: unknown key id %q", env.KeyID)
		}
		aead = retired
	}

	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, fmt.Errorf("security: decode nonce: %w", err)
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("security: invalid nonce length %d", len(nonce))
	}
	sealed, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("security: decode ciphertext payload: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, sealed, []byte(env.KeyID))
	if err != nil {
		return nil, fmt.Errorf("security: decrypt payload: %w", err)
	}
	return plaintext, nil
}

// NeedsRotation reports whether ciphertext was sealed with a retired key.
func (p *AppKeySecretProvider) NeedsRotation(ciphertext []byte) bool {
	meta, err := ParseEnvelopeMetadata(ciphertext)
	if err != nil {
		return false
	}
	return meta.KeyID != p.KeyID()
}

func (p *AppKeySecretProvider) KeyID() string {
	if p == nil {
		return ""
	}
	return p.keyID
}

func newAEAD(keyMaterial []byte) (cipher.AEAD, error) {
	key := bytes.TrimSpace(keyMaterial)
	if len(key) == 0 {
		return nil, fmt.Errorf("security: key material is required")
	}
	block, err := aes.NewCipher(normalizeKey(key))
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}
	return aead, nil
}

// normalizeKey always yields a 32 byte AES-256 key.
func normalizeKey(value []byte) []byte {
	if len(value) == 32 {
		key := make([]byte, len(value))
		copy(key, value)
		return key
	}
	sum := sha256.Sum256(value)
	return sum[:]
}

func decodeKeyString(key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	encoded, ok := strings.CutPrefix(key, "base64:")
	if !ok {
		return []byte(key), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("security: decode base64 key: %w", err)
	}
	return decoded, nil
}

var _ core.SecretProvider = (*AppKeySecretProvider)(nil)
