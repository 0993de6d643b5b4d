package util

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/fitforge/wearable-sync-go/internal/errors"
	"github.com/fitforge/wearable-sync-go/internal/model"
)

// StateSigner issues and verifies the tamper-evident tokens that carry OAuth
// session data through the provider redirect. Tokens are not encrypted, only
// signed: token = base64(json payload + "." + hex hmac-sha256).
type StateSigner struct {
	secret string
	ttl    time.Duration
}

func NewStateSigner(secret string, ttl time.Duration) *StateSigner {
	return &StateSigner{secret: secret, ttl: ttl}
}

func (s *StateSigner) Sign(claims model.StateClaims) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal state claims: %w", err)
	}

	sig := HmacSHA256(s.secret, string(payload))
	return base64.StdEncoding.EncodeToString([]byte(string(payload) + "." + sig)), nil
}

// Verify checks the signature and expiry window, then returns the parsed
// claims. The payload/signature split anchors on the last "." because the
// JSON payload itself may contain dots.
func (s *StateSigner) Verify(token string) (*model.StateClaims, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, apperrors.InvalidSignature().WithCause(err)
	}

	idx := strings.LastIndex(string(raw), ".")
	if idx < 0 {
		return nil, apperrors.InvalidSignature()
	}
	payload, sig := string(raw[:idx]), string(raw[idx+1:])

	expected := HmacSHA256(s.secret, payload)
	if !ConstantTimeEqual(expected, sig) {
		return nil, apperrors.InvalidSignature()
	}

	var claims model.StateClaims
	if err := json.Unmarshal([]byte(payload), &claims); err != nil {
		return nil, apperrors.InvalidSignature().WithCause(err)
	}

	issued := time.UnixMilli(claims.Timestamp)
	if time.Since(issued) > s.ttl {
		return nil, apperrors.StateExpired()
	}

	return &claims, nil
}
