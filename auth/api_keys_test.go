package auth

import (
	"context"
	"testing"
)

func TestBcryptKeyVerifier(t *testing.T) {
	const key = "svc_0123456789abcdefghijklmn"
	hash, err := HashAPIKey(key)
	if err != nil {
		t.Fatalf("hash key: %v", err)
	}

	verifier, err := NewBcryptKeyVerifier([]string{"", hash})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if !verifier.Enabled() {
		t.Fatalf("expected verifier to be enabled")
	}

	ok, err := verifier.Verify(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("expected key to verify, ok=%v err=%v", ok, err)
	}
	ok, err = verifier.Verify(context.Background(), key+"x")
	if err != nil || ok {
		t.Fatalf("expected mismatched key to fail, ok=%v err=%v", ok, err)
	}
}

func TestBcryptKeyVerifier_Disabled(t *testing.T) {
	verifier, err := NewBcryptKeyVerifier(nil)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	ok, err := verifier.Verify(context.Background(), "anything-at-all-goes-here")
	if err != nil || ok {
		t.Fatalf("expected disabled verifier to reject, ok=%v err=%v", ok, err)
	}
}

func TestNewBcryptKeyVerifier_RejectsPlaintext(t *testing.T) {
	if _, err := NewBcryptKeyVerifier([]string{"plaintext-key"}); err == nil {
		t.Fatalf("expected plaintext entry to be rejected")
	}
	if _, err := HashAPIKey("short"); err == nil {
		t.Fatalf("expected short key to be rejected")
	}
}
