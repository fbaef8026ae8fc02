package webhook

import "fmt"

// Reason classifies why a payload was rejected.
type Reason string

const (
	ReasonMissingSignatureHeader Reason = "missing_signature_header"
	ReasonMalformedHeader        Reason = "malformed_header"
	ReasonSignatureMismatch      Reason = "signature_mismatch"
	ReasonStaleTimestamp         Reason = "stale_timestamp"
	ReasonMalformedPayload       Reason = "malformed_payload"
	ReasonMissingSecret          Reason = "missing_secret"
)

// IsAuthentication reports whether the rejection means the sender could not
// prove it holds the secret, as opposed to sending an unreadable request.
func (r Reason) IsAuthentication() bool {
	return r == ReasonSignatureMismatch || r == ReasonStaleTimestamp
}

// VerificationError is returned for every rejected payload. Compare with the
// exported sentinels via errors.Is; two errors match when their Reason is equal.
type VerificationError struct {
	Reason Reason
	Detail string
	Err    error
}

func (e *VerificationError) Error() string {
	msg := "webhook: " + string(e.Reason)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// Is matches any *VerificationError with the same Reason.
func (e *VerificationError) Is(target error) bool {
	t, ok := target.(*VerificationError)
	if !ok {
		return false
	}
	return t.Reason == e.Reason
}

var (
	ErrMissingSignatureHeader = &VerificationError{Reason: ReasonMissingSignatureHeader}
	ErrMalformedHeader        = &VerificationError{Reason: ReasonMalformedHeader}
	ErrSignatureMismatch      = &VerificationError{Reason: ReasonSignatureMismatch}
	ErrStaleTimestamp         = &VerificationError{Reason: ReasonStaleTimestamp}
	ErrMalformedPayload       = &VerificationError{Reason: ReasonMalformedPayload}
	ErrMissingSecret          = &VerificationError{Reason: ReasonMissingSecret}
)

func newError(reason Reason, format string, args ...any) *VerificationError {
	return &VerificationError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}
