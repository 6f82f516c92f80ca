package entities

import (
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/eisenwinter/mdqd/mdq"
)

// EntitiesRessource serves the metadata query endpoint
type EntitiesRessource struct {
	log      *zap.Logger
	handler  QueryHandler
	recorder QueryRecorder

	// weakETags is set when responses may be re-encoded (compressed) after the tag was computed
	weakETags bool
}

func (e *EntitiesRessource) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "If-None-Match"},
		ExposedHeaders:   []string{"ETag", "Last-Modified", "Cache-Control"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// every method is routed, the validator decides what is allowed
	r.HandleFunc("/", e.entities)
	r.HandleFunc("/{entityID}", e.entities)
	return r
}

func (e *EntitiesRessource) entities(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityID")
	if entityID != "" {
		unescaped, err := url.PathUnescape(entityID)
		if err == nil {
			entityID = unescaped
		}
	}

	resp, err := e.handler.Query(r, entityID)
	if err != nil {
		status := mdq.StatusCode(err)
		e.recorder.QueryCompleted(status)
		if status == http.StatusMethodNotAllowed {
			w.Header().Set("Allow", http.MethodGet)
		}
		if status >= http.StatusInternalServerError && status != http.StatusHTTPVersionNotSupported {
			e.log.Error("query failed", zap.Error(err))
		}
		render.Status(r, status)
		render.PlainText(w, r, mdq.Message(err))
		return
	}

	etag := entityTag(resp.Body, e.weakETags)
	w.Header().Set("Content-Type", resp.ContentType)
	w.Header().Set("Cache-Control", resp.CacheControl())
	w.Header().Set("ETag", etag)
	w.Header().Add("Vary", "Accept")
	if !resp.LastModified.IsZero() {
		w.Header().Set("Last-Modified", resp.LastModified.UTC().Format(http.TimeFormat))
	}
	if matchesETag(r.Header.Get("If-None-Match"), etag) {
		e.recorder.QueryCompleted(http.StatusNotModified)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	e.recorder.QueryCompleted(http.StatusOK)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp.Body); err != nil {
		e.log.Warn("unable to write response", zap.Error(err))
	}
}

func entityTag(body []byte, weak bool) string {
	sum := blake3.Sum256(body)
	tag := `"` + hex.EncodeToString(sum[:16]) + `"`
	if weak {
		return "W/" + tag
	}
	return tag
}

func matchesETag(header string, etag string) bool {
	if header == "" {
		return false
	}
	etag = strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

type noopRecorder struct{}

func (noopRecorder) QueryCompleted(int) {}

func NewEntitiesRessource(log *zap.Logger, handler QueryHandler, recorder QueryRecorder) *EntitiesRessource {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &EntitiesRessource{log: log, handler: handler, recorder: recorder}
}

// WithWeakETags marks entity tags as weak, required when responses are compressed
// since the tag is computed over the uncompressed body
func (e *EntitiesRessource) WithWeakETags() *EntitiesRessource {
	e.weakETags = true
	return e
}
