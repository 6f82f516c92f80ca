package signing

import (
	"bytes"
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/eisenwinter/mdqd/config"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.uber.org/zap"
)

func checkForWeakHMAC(log *zap.Logger, alg string, key []byte) {
	if (alg == "HS256" && len(key) <= 31) ||
		(alg == "HS384" && len(key) <= 47) ||
		(alg == "HS512" && len(key) <= 63) {
		log.Warn("weak secret, consider choosing another secret", zap.String("alg", alg))
	}
}

// LoadKeys reads every configured key, files may hold PEM encoded private keys or a JWK
func LoadKeys(log *zap.Logger, cfgs []config.SigningKeyConfiguration) ([]jwk.Key, error) {
	keys := make([]jwk.Key, 0, len(cfgs))
	for i, cfg := range cfgs {
		key, err := loadKey(log, cfg)
		if err != nil {
			return nil, fmt.Errorf("signing key %d: %w", i, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func loadKey(log *zap.Logger, cfg config.SigningKeyConfiguration) (jwk.Key, error) {
	var key jwk.Key
	var err error
	switch {
	case cfg.Secret != "":
		checkForWeakHMAC(log, cfg.Alg, []byte(cfg.Secret))
		key, err = jwk.FromRaw([]byte(cfg.Secret))
	case cfg.File != "":
		key, err = parseKeyFile(cfg.File)
	default:
		return nil, errors.New("either file or secret must be set")
	}
	if err != nil {
		return nil, err
	}
	if key.KeyType() != jwa.OctetSeq {
		if _, err := key.PublicKey(); err != nil {
			return nil, err
		}
		if !isPrivate(key) {
			return nil, errors.New("supplied key is not a private key")
		}
	}
	if cfg.Alg != "" {
		if isHMAC(cfg.Alg) != (key.KeyType() == jwa.OctetSeq) {
			return nil, fmt.Errorf("algorithm %s does not fit key type %s", cfg.Alg, key.KeyType())
		}
		_ = key.Set(jwk.AlgorithmKey, jwa.SignatureAlgorithm(cfg.Alg))
	}
	kid := cfg.Kid
	if kid == "" {
		kid = key.KeyID()
	}
	if kid == "" {
		sha, err := key.Thumbprint(crypto.SHA256)
		if err != nil {
			return nil, err
		}
		kid = base64.RawURLEncoding.EncodeToString(sha)
	}
	_ = key.Set(jwk.KeyIDKey, kid)
	_ = key.Set(jwk.KeyUsageKey, "sig")
	log.Debug("signing key loaded", zap.String("kid", kid), zap.String("kty", key.KeyType().String()))
	return key, nil
}

func parseKeyFile(path string) (jwk.Key, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not load key file: %w", err)
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, errors.New("read empty key file")
	}
	if bytes.HasPrefix(bytes.TrimSpace(content), []byte("-----BEGIN")) {
		return jwk.ParseKey(content, jwk.WithPEM(true))
	}
	return jwk.ParseKey(content)
}

func isPrivate(key jwk.Key) bool {
	switch key.(type) {
	case jwk.RSAPrivateKey, jwk.ECDSAPrivateKey, jwk.OKPPrivateKey:
		return true
	}
	return false
}
