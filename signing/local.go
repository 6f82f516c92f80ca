package signing

import (
	"context"
	"sort"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"go.uber.org/zap"
)

type curved interface {
	Crv() jwa.EllipticCurveAlgorithm
}

// LocalSigner signs with keys held in process. The key list is fixed at construction.
type LocalSigner struct {
	log  *zap.Logger
	keys []jwk.Key
	algs []string
}

// NewLocalSigner creates a signer for the given private keys
func NewLocalSigner(log *zap.Logger, keys ...jwk.Key) *LocalSigner {
	own := make([]jwk.Key, len(keys))
	copy(own, keys)
	seen := map[string]struct{}{AlgNone: {}}
	for _, k := range own {
		for _, alg := range keyAlgorithms(k) {
			seen[alg] = struct{}{}
		}
	}
	algs := make([]string, 0, len(seen))
	for alg := range seen {
		algs = append(algs, alg)
	}
	sort.Strings(algs)
	return &LocalSigner{log: log, keys: own, algs: algs}
}

// Algorithms implements Signer
func (s *LocalSigner) Algorithms() []string {
	out := make([]string, len(s.algs))
	copy(out, s.algs)
	return out
}

// Sign implements Signer
func (s *LocalSigner) Sign(_ context.Context, payload []byte, alg string) ([]byte, error) {
	if alg == AlgNone {
		return unsecured(payload)
	}
	key := s.keyFor(alg)
	if key == nil {
		s.log.Warn("Failed to sign: no suitable key", zap.String("alg", alg))
		return nil, ErrSigningFailed
	}
	hdrs := jws.NewHeaders()
	if kid := key.KeyID(); kid != "" {
		_ = hdrs.Set(jws.KeyIDKey, kid)
	}
	signed, err := jws.Sign(payload, jws.WithKey(jwa.SignatureAlgorithm(alg), key, jws.WithProtectedHeaders(hdrs)))
	if err != nil {
		s.log.Error("Failed to sign", zap.String("alg", alg), zap.String("kid", key.KeyID()), zap.Error(err))
		return nil, ErrSigningFailed
	}
	return signed, nil
}

// PublicKeys returns the public parts of all asymmetric keys
func (s *LocalSigner) PublicKeys() (jwk.Set, error) {
	set := jwk.NewSet()
	for _, k := range s.keys {
		if k.KeyType() == jwa.OctetSeq {
			continue
		}
		pub, err := k.PublicKey()
		if err != nil {
			return nil, err
		}
		if err := set.AddKey(pub); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// keyFor prefers keys explicitly bound to alg, then unbound keys of a compatible type
func (s *LocalSigner) keyFor(alg string) jwk.Key {
	for _, k := range s.keys {
		if boundAlgorithm(k) == alg {
			return k
		}
	}
	for _, k := range s.keys {
		if boundAlgorithm(k) != "" {
			continue
		}
		for _, a := range keyAlgorithms(k) {
			if a == alg {
				return k
			}
		}
	}
	return nil
}

func boundAlgorithm(k jwk.Key) string {
	if a := k.Algorithm(); a != nil {
		return a.String()
	}
	return ""
}

// keyAlgorithms lists the signature algorithms a key can be used with
func keyAlgorithms(k jwk.Key) []string {
	if alg := boundAlgorithm(k); alg != "" {
		return []string{alg}
	}
	switch k.KeyType() {
	case jwa.RSA:
		return []string{"RS256", "RS384", "RS512", "PS256", "PS384", "PS512"}
	case jwa.OctetSeq:
		return []string{"HS256", "HS384", "HS512"}
	case jwa.OKP:
		return []string{"EdDSA"}
	case jwa.EC:
		c, ok := k.(curved)
		if !ok {
			return nil
		}
		switch c.Crv() {
		case jwa.P256:
			return []string{"ES256"}
		case jwa.P384:
			return []string{"ES384"}
		case jwa.P521:
			return []string{"ES512"}
		}
	}
	return nil
}

func isHMAC(alg string) bool {
	return strings.HasPrefix(alg, "HS")
}
