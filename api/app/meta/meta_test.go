package meta

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eisenwinter/mdqd/metadata"
	"github.com/eisenwinter/mdqd/signing"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func serve(t *testing.T, m *MetaRessource, target string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return rec, string(body)
}

func TestIndexListsClients(t *testing.T) {
	store := metadata.NewStore()
	store.Update(map[string]any{"c1": map[string]any{"client_name": "<script>alert(1)</script>"}})
	m := NewMetaRessource(zaptest.NewLogger(t), store, nil)

	rec, body := serve(t, m, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, "Known clients")
	assert.Contains(t, body, "1 clients")
	assert.Contains(t, body, "c1")
	assert.NotContains(t, body, "<script>")
}

func TestIndexBeforeFirstUpdate(t *testing.T) {
	m := NewMetaRessource(zaptest.NewLogger(t), metadata.NewStore(), nil)
	_, body := serve(t, m, "/")
	assert.Contains(t, body, "never")
}

func TestStatus(t *testing.T) {
	m := NewMetaRessource(zaptest.NewLogger(t), metadata.NewStore(), nil)
	rec, body := serve(t, m, "/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body)
}

func TestJWKSWithoutSigner(t *testing.T) {
	m := NewMetaRessource(zaptest.NewLogger(t), metadata.NewStore(), nil)
	rec, _ := serve(t, m, "/.well-known/jwks")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJWKS(t *testing.T) {
	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	key, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, "ec-1"))

	m := NewMetaRessource(zaptest.NewLogger(t), metadata.NewStore(), signing.NewLocalSigner(zaptest.NewLogger(t), key))
	rec, body := serve(t, m, "/.well-known/jwks")
	require.Equal(t, http.StatusOK, rec.Code)

	set, err := jwk.Parse([]byte(body))
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())
	parsed, ok := set.LookupKeyID("ec-1")
	require.True(t, ok)
	_, isPrivate := parsed.(jwk.ECDSAPrivateKey)
	assert.False(t, isPrivate)
}
