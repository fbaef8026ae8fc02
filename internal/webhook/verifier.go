// Package webhook verifies inbound Stripe webhook deliveries.
//
// A delivery is accepted only when the Stripe-Signature header carries a v1
// HMAC-SHA256 digest of "{timestamp}.{body}" computed with the endpoint's
// signing secret, and the timestamp lies within the replay tolerance. The
// checks run in a fixed order: header syntax, signature, timestamp, body.
// The body is never parsed before its signature has been checked.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"stripefacility/internal/types"
)

// DefaultTolerance is the maximum accepted distance between the signed
// timestamp and the verifier's clock.
const DefaultTolerance = 300 * time.Second

// HeaderName is the request header carrying the signature.
const HeaderName = "Stripe-Signature"

// Verify checks payload against header using secret and returns the decoded
// event. It is a pure function of its inputs.
func Verify(payload []byte, header string, secret string, tolerance time.Duration, now time.Time) (*Event, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if strings.TrimSpace(header) == "" {
		return nil, ErrMissingSignatureHeader
	}

	sh, err := ParseHeader(header)
	if err != nil {
		return nil, err
	}

	expected := computeSignature(sh.Timestamp, payload, secret)
	if !matchesAny(expected, sh.Signatures) {
		return nil, ErrSignatureMismatch
	}

	if !withinTolerance(sh.Timestamp, now, tolerance) {
		return nil, newError(ReasonStaleTimestamp, "timestamp %d outside %s of %d", sh.Timestamp, tolerance, now.Unix())
	}

	return parseEvent(payload)
}

// Verifier binds one endpoint's signing secret and tolerance. It holds no
// per-request state and is safe for concurrent use.
type Verifier struct {
	secret    types.SecretString
	tolerance time.Duration
	now       func() time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithTolerance overrides DefaultTolerance. Zero requires an exact timestamp
// match; negative values are rejected by NewVerifier.
func WithTolerance(d time.Duration) Option {
	return func(v *Verifier) {
		v.tolerance = d
	}
}

// WithClock replaces time.Now, for tests and replay tooling.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// NewVerifier returns a Verifier for secret. A missing secret is a
// configuration error and is reported here instead of on every request.
func NewVerifier(secret types.SecretString, opts ...Option) (*Verifier, error) {
	if secret.IsZero() {
		return nil, ErrMissingSecret
	}

	v := &Verifier{
		secret:    secret,
		tolerance: DefaultTolerance,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}

	if v.tolerance < 0 {
		return nil, fmt.Errorf("webhook: tolerance must not be negative, got %s", v.tolerance)
	}
	return v, nil
}

// Verify checks one delivery against the bound secret at the current time.
func (v *Verifier) Verify(payload []byte, header string) (*Event, error) {
	return Verify(payload, header, v.secret.Unmask(), v.tolerance, v.now())
}

// Tolerance returns the configured replay window.
func (v *Verifier) Tolerance() time.Duration {
	return v.tolerance
}

// ReasonOf extracts the rejection reason from err, or "" when err is not a
// verification failure.
func ReasonOf(err error) Reason {
	var verr *VerificationError
	if errors.As(err, &verr) {
		return verr.Reason
	}
	return ""
}

func computeSignature(timestamp int64, payload []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

// matchesAny compares every candidate so the time taken does not depend on
// which one matched.
func matchesAny(expected []byte, candidates [][]byte) bool {
	matched := false
	for _, sig := range candidates {
		if hmac.Equal(expected, sig) {
			matched = true
		}
	}
	return matched
}

func withinTolerance(timestamp int64, now time.Time, tolerance time.Duration) bool {
	if tolerance < 0 {
		return false
	}
	window := int64(tolerance / time.Second)
	n := now.Unix()
	return timestamp >= n-window && timestamp <= n+window
}

// hexSignature is the header form of a digest.
func hexSignature(timestamp int64, payload []byte, secret string) string {
	return hex.EncodeToString(computeSignature(timestamp, payload, secret))
}
