package meta

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/google/safehtml/template"
	"go.uber.org/zap"
)

const indexTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Known clients</title></head>
<body>
<h1>Known clients</h1>
<p>{{.Count}} clients, last updated {{.LastModified}}</p>
<pre>{{.Clients}}</pre>
</body>
</html>
`

var index = template.Must(template.New("index").Parse(indexTemplate))

type indexData struct {
	Count        int
	LastModified string
	Clients      string
}

// MetaRessource contains the index, status and .well-known endpoints
type MetaRessource struct {
	log      *zap.Logger
	snapshot SnapshotSupplier
	keys     JwkSupplier
}

func (m *MetaRessource) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Get("/", m.index)
	r.Get("/status", m.status)
	r.Route("/.well-known", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"https://*", "http://*"},
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Accept"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
		r.Get("/jwks", m.jwks)
	})
	return r
}

// index lists all known metadata for humans
func (m *MetaRessource) index(w http.ResponseWriter, _ *http.Request) {
	entry := m.snapshot.All()
	clients, err := json.MarshalIndent(entry.Metadata, "", "  ")
	if err != nil {
		m.log.Error("unable to serialize metadata", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	data := indexData{
		Count:   len(entry.Metadata),
		Clients: string(clients),
	}
	if entry.LastModified.IsZero() {
		data.LastModified = "never"
	} else {
		data.LastModified = entry.LastModified.UTC().Format(http.TimeFormat)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := index.Execute(w, data); err != nil {
		m.log.Error("unable to render index", zap.Error(err))
	}
}

// status answers 200 as long as the process is alive
func (m *MetaRessource) status(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (m *MetaRessource) jwks(w http.ResponseWriter, r *http.Request) {
	if m.keys == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	set, err := m.keys.PublicKeys()
	if err != nil {
		m.log.Error("unable to export public keys", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	render.JSON(w, r, set)
}

// NewMetaRessource creates the ressource, keys may be nil when no local signer is configured
func NewMetaRessource(
	log *zap.Logger,
	snapshot SnapshotSupplier,
	keys JwkSupplier,
) *MetaRessource {
	return &MetaRessource{log: log, snapshot: snapshot, keys: keys}
}
