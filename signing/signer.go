// Package signing turns serialized metadata into compact JWS tokens,
// either with keys held in process or by delegating to a remote signing service.
package signing

import (
	"context"
	"errors"

	"github.com/lestrrat-go/jwx/v2/jws"
)

// AlgNone produces an unsecured token
const AlgNone = "none"

var (
	// ErrSigningFailed is the only error a Signer surfaces, the cause is logged, never returned
	ErrSigningFailed = errors.New("failed to sign")
)

// Signer signs a payload with the requested algorithm
type Signer interface {
	Sign(ctx context.Context, payload []byte, alg string) ([]byte, error)
	// Algorithms lists every algorithm Sign accepts, including none
	Algorithms() []string
}

// unsecured builds a compact JWS with alg none and an empty signature
func unsecured(payload []byte) ([]byte, error) {
	signed, err := jws.Sign(payload, jws.WithInsecureNoSignature())
	if err != nil {
		return nil, ErrSigningFailed
	}
	return signed, nil
}
