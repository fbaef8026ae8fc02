package webhook

import (
	"encoding/hex"
	"strconv"
	"strings"
)

const (
	timestampKey = "t"
	// SignatureScheme is the only scheme whose digests are checked.
	// Fields with any other key (v0, future schemes) are ignored.
	SignatureScheme = "v1"
)

// SignatureHeader is the parsed form of "t=<unix>,v1=<hex>[,v1=<hex>...]".
type SignatureHeader struct {
	Timestamp int64
	// Signatures holds the decoded v1 digests in header order. Values that
	// are not valid hex are dropped here, so they can never match.
	Signatures [][]byte
}

// ParseHeader parses a signature header. It fails with ErrMalformedHeader when
// a field is not key=value, when t is missing, repeated or non-numeric, or
// when no v1 field is present.
func ParseHeader(header string) (*SignatureHeader, error) {
	var (
		parsed       SignatureHeader
		sawTimestamp bool
		v1Fields     int
	)

	for _, segment := range strings.Split(header, ",") {
		segment = strings.TrimSpace(segment)
		key, value, ok := strings.Cut(segment, "=")
		if !ok || key == "" {
			return nil, newError(ReasonMalformedHeader, "field %q is not key=value", segment)
		}

		switch key {
		case timestampKey:
			if sawTimestamp {
				return nil, newError(ReasonMalformedHeader, "timestamp given more than once")
			}
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, &VerificationError{Reason: ReasonMalformedHeader, Detail: "timestamp is not an integer", Err: err}
			}
			parsed.Timestamp = ts
			sawTimestamp = true
		case SignatureScheme:
			v1Fields++
			sig, err := hex.DecodeString(value)
			if err != nil {
				continue
			}
			parsed.Signatures = append(parsed.Signatures, sig)
		}
	}

	if !sawTimestamp {
		return nil, newError(ReasonMalformedHeader, "no timestamp")
	}
	if v1Fields == 0 {
		return nil, newError(ReasonMalformedHeader, "no %s signature", SignatureScheme)
	}
	return &parsed, nil
}
