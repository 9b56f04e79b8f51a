// Package approval issues and verifies signed, time-boxed consent tokens
// that let an occupant approve or decline a proposed appointment without
// a full session.
package approval

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Token rejection reasons. Invariant violations are rejected with a
// specific error, never silently accepted.
var (
	ErrMalformedToken = errors.New("approval: malformed token")
	ErrBadSignature   = errors.New("approval: signature mismatch")
	ErrTokenExpired   = errors.New("approval: token expired")
)

// Claims is the signed token payload.
type Claims struct {
	AppointmentID string
	OrgID         string
	ExpiresAt     time.Time
	IssuedAt      time.Time
}

// encodeToken serializes and signs claims:
// base64url(appointment|org|exp|iat + "." + hex(HMAC-SHA256(payload))).
func encodeToken(secret []byte, c Claims) string {
	payload := fmt.Sprintf("%s|%s|%d|%d",
		c.AppointmentID, c.OrgID, c.ExpiresAt.Unix(), c.IssuedAt.Unix())
	sig := signPayload(secret, payload)
	return base64.RawURLEncoding.EncodeToString([]byte(payload + "." + sig))
}

// decodeToken verifies the signature and parses the claims. The expiry in
// the claims is informational; callers enforce the expiry stored with the
// appointment.
func decodeToken(secret []byte, token string) (Claims, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Claims{}, ErrMalformedToken
	}
	payload, sig, ok := strings.Cut(string(raw), ".")
	if !ok {
		return Claims{}, ErrMalformedToken
	}

	expected := signPayload(secret, payload)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return Claims{}, ErrBadSignature
	}

	parts := strings.Split(payload, "|")
	if len(parts) != 4 {
		return Claims{}, ErrMalformedToken
	}
	exp, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Claims{}, ErrMalformedToken
	}
	iat, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return Claims{}, ErrMalformedToken
	}
	return Claims{
		AppointmentID: parts[0],
		OrgID:         parts[1],
		ExpiresAt:     time.Unix(exp, 0),
		IssuedAt:      time.Unix(iat, 0),
	}, nil
}

// Decode verifies a token against a secret and returns its claims without
// touching the appointment. Used by the token inspection tooling.
func Decode(secret, token string) (Claims, error) {
	return decodeToken([]byte(secret), token)
}

// signPayload computes the hex keyed-hash of a serialized payload.
func signPayload(secret []byte, payload string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
