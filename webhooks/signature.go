package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderEvent     = "X-Community-Event"
	HeaderDelivery  = "X-Community-Delivery"
	HeaderTimestamp = "X-Community-Timestamp"
	HeaderSignature = "X-Community-Signature"

	signaturePrefix = "sha256="
)

// Sign returns the X-Community-Signature value for body sent at timestamp.
func Sign(secret []byte, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a received signature. Receivers should pass a tolerance to
// reject replays of old payloads; zero disables the timestamp check.
func Verify(secret []byte, timestampHeader string, signatureHeader string, body []byte, tolerance time.Duration, now time.Time) error {
	if len(secret) == 0 {
		return fmt.Errorf("webhooks: signature secret is required")
	}
	timestamp, err := strconv.ParseInt(strings.TrimSpace(timestampHeader), 10, 64)
	if err != nil {
		return fmt.Errorf("webhooks: invalid %s header", HeaderTimestamp)
	}
	if tolerance > 0 {
		sent := time.Unix(timestamp, 0)
		if now.Sub(sent) > tolerance || sent.Sub(now) > tolerance {
			return fmt.Errorf("webhooks: signature timestamp outside tolerance")
		}
	}
	signature, ok := strings.CutPrefix(strings.TrimSpace(signatureHeader), signaturePrefix)
	if !ok || signature == "" {
		return fmt.Errorf("webhooks: %s header must start with %s", HeaderSignature, signaturePrefix)
	}
	decoded, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("webhooks: decode hex signature: %w", err)
	}
	expected, _ := hex.DecodeString(strings.TrimPrefix(Sign(secret, timestamp, body), signaturePrefix))
	if subtle.ConstantTimeCompare(decoded, expected) != 1 {
		return fmt.Errorf("webhooks: signature verification failed")
	}
	return nil
}
