package webhook

import (
	"fmt"
	"strings"
	"time"

	"stripefacility/internal/types"
)

// Sign builds a signature header for payload at time ts. One v1 field is
// emitted per secret, in order, which is how the provider signs during a
// secret rotation (current secret first).
func Sign(payload []byte, ts time.Time, secrets ...types.SecretString) (string, error) {
	if len(secrets) == 0 {
		return "", ErrMissingSecret
	}

	timestamp := ts.Unix()
	var b strings.Builder
	fmt.Fprintf(&b, "%s=%d", timestampKey, timestamp)
	for _, secret := range secrets {
		if secret.IsZero() {
			return "", ErrMissingSecret
		}
		fmt.Fprintf(&b, ",%s=%s", SignatureScheme, hexSignature(timestamp, payload, secret.Unmask()))
	}
	return b.String(), nil
}
