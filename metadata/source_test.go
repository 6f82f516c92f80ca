package metadata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeFile(t *testing.T, name string, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestFileSourceJSON(t *testing.T) {
	path := writeFile(t, "clients.json", `{"c1": {"redirect_uris": ["https://x"]}}`)
	md, err := NewFileSource(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"c1": map[string]any{"redirect_uris": []any{"https://x"}}}, md)
}

func TestFileSourceFileScheme(t *testing.T) {
	path := writeFile(t, "clients.json", `{}`)
	md, err := NewSource("file://"+path, time.Second).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, md)
}

func TestFileSourceYAML(t *testing.T) {
	path := writeFile(t, "clients.yaml", "c1:\n  redirect_uris:\n    - https://x\n  client_name: one\n")
	md, err := NewFileSource(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"c1": map[string]any{
		"redirect_uris": []any{"https://x"},
		"client_name":   "one",
	}}, md)
}

func TestFileSourceYAMLNonStringKeys(t *testing.T) {
	path := writeFile(t, "clients.yaml", "c1:\n  ports:\n    80: http\n    443: https\n  scopes:\n    - true: yes\n")
	md, err := NewFileSource(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"c1": map[string]any{
		"ports":  map[string]any{"80": "http", "443": "https"},
		"scopes": []any{map[string]any{"true": "yes"}},
	}}, md)

	body, err := json.Marshal(md)
	require.NoError(t, err)
	assert.JSONEq(t, `{"c1":{"ports":{"80":"http","443":"https"},"scopes":[{"true":"yes"}]}}`, string(body))
}

func TestFileSourceMalformed(t *testing.T) {
	cases := map[string]string{
		"broken":     `{"c1": `,
		"not object": `["c1"]`,
		"null":       `null`,
		"scalar md":  `{"c1": "https://x"}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, "clients.json", content)
			_, err := NewFileSource(path).Load(context.Background())
			assert.ErrorIs(t, err, ErrMalformedDocument)
		})
	}
}

func TestFileSourceMissing(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "nope.json")).Load(context.Background())
	assert.Error(t, err)
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"c1": {"client_name": "one"}}`))
	}))
	defer srv.Close()

	source := NewSource(srv.URL+"/clients", time.Second)
	require.IsType(t, &HTTPSource{}, source)
	md, err := source.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"c1": map[string]any{"client_name": "one"}}, md)

	_, err = NewHTTPSource(srv.URL+"/missing", time.Second).Load(context.Background())
	assert.Error(t, err)
}

func TestHTTPSourceTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewHTTPSource(srv.URL, 50*time.Millisecond).Load(context.Background())
	assert.Error(t, err)
}

func openSqlite(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE client_metadata (client_id TEXT PRIMARY KEY, metadata TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func TestSQLSource(t *testing.T) {
	db := openSqlite(t)
	_, err := db.Exec(`INSERT INTO client_metadata (client_id, metadata) VALUES (?, ?), (?, ?)`,
		"c1", `{"redirect_uris": ["https://x"]}`,
		"c2", `{"client_name": "two"}`)
	require.NoError(t, err)

	source := newSQLSource(zaptest.NewLogger(t), db, "", sq.StatementBuilder)
	md, err := source.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"c1": map[string]any{"redirect_uris": []any{"https://x"}},
		"c2": map[string]any{"client_name": "two"},
	}, md)
	assert.Equal(t, "sqlite3:client_metadata", source.String())
}

func TestSQLSourceMalformedRow(t *testing.T) {
	db := openSqlite(t)
	_, err := db.Exec(`INSERT INTO client_metadata (client_id, metadata) VALUES (?, ?)`, "c1", `not json`)
	require.NoError(t, err)

	_, err = newSQLSource(zaptest.NewLogger(t), db, "", sq.StatementBuilder).Load(context.Background())
	assert.ErrorIs(t, err, ErrMalformedDocument)
}

func TestSQLSourceUnknownType(t *testing.T) {
	_, err := NewSQLSource(zaptest.NewLogger(t), "oracle", "dsn", "")
	assert.Error(t, err)
}
