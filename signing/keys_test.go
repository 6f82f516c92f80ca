package signing

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/eisenwinter/mdqd/config"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeKey(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0600))
	return path
}

func TestLoadKeysPEM(t *testing.T) {
	rsaRaw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	rsaPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(rsaRaw)})

	ecRaw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	ecDER, err := x509.MarshalECPrivateKey(ecRaw)
	require.NoError(t, err)
	ecPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: ecDER})

	keys, err := LoadKeys(zaptest.NewLogger(t), []config.SigningKeyConfiguration{
		{File: writeKey(t, "rsa.pem", rsaPEM), Alg: "RS256", Kid: "rsa"},
		{File: writeKey(t, "ec.pem", ecPEM)},
	})
	require.NoError(t, err)
	require.Len(t, keys, 2)

	assert.Equal(t, "rsa", keys[0].KeyID())
	assert.Equal(t, jwa.RS256.String(), keys[0].Algorithm().String())
	assert.Equal(t, jwa.EC, keys[1].KeyType())
	assert.NotEmpty(t, keys[1].KeyID())
	assert.Equal(t, []string{"ES256"}, keyAlgorithms(keys[1]))
}

func TestLoadKeysJWK(t *testing.T) {
	raw, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	key, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, "from-jwk"))
	buf, err := json.Marshal(key)
	require.NoError(t, err)

	keys, err := LoadKeys(zaptest.NewLogger(t), []config.SigningKeyConfiguration{{File: writeKey(t, "key.json", buf)}})
	require.NoError(t, err)
	assert.Equal(t, "from-jwk", keys[0].KeyID())
	assert.Equal(t, []string{"ES384"}, keyAlgorithms(keys[0]))
}

func TestLoadKeysSecret(t *testing.T) {
	keys, err := LoadKeys(zaptest.NewLogger(t), []config.SigningKeyConfiguration{{Secret: "short", Alg: "HS256", Kid: "hmac"}})
	require.NoError(t, err)
	assert.Equal(t, jwa.OctetSeq, keys[0].KeyType())
	assert.Equal(t, "hmac", keys[0].KeyID())
}

func TestLoadKeysRejects(t *testing.T) {
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pubDER, err := x509.MarshalPKIXPublicKey(&raw.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	cases := map[string]config.SigningKeyConfiguration{
		"nothing":     {},
		"missing":     {File: filepath.Join(t.TempDir(), "missing.pem")},
		"empty":       {File: writeKey(t, "empty.pem", []byte("  \n"))},
		"garbage":     {File: writeKey(t, "garbage.pem", []byte("-----BEGIN NOTHING-----"))},
		"public only": {File: writeKey(t, "pub.pem", pubPEM)},
		"alg misfit":  {Secret: "0123456789abcdef0123456789abcdef", Alg: "RS256"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadKeys(zaptest.NewLogger(t), []config.SigningKeyConfiguration{cfg})
			assert.Error(t, err)
		})
	}
}
