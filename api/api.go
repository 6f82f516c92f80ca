package api

import (
	"net/http"
	"time"

	"github.com/eisenwinter/mdqd/api/app/entities"
	"github.com/eisenwinter/mdqd/api/app/meta"
	"github.com/eisenwinter/mdqd/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Dependencies are the collaborators the http api is composed of
type Dependencies struct {
	Handler  entities.QueryHandler
	Snapshot meta.SnapshotSupplier
	// Keys may be nil if no local signer is configured
	Keys meta.JwkSupplier
	// Recorder may be nil
	Recorder entities.QueryRecorder
	// Metrics is mounted on /metrics if metrics are enabled
	Metrics http.Handler
}

func compose(logger *zap.Logger, cfg *config.Configuration, deps Dependencies) (*chi.Mux, error) {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Use(loggerMiddleware(logger))

	r.Use(middleware.Recoverer)

	r.Use(middleware.Timeout(50 * time.Second))
	if cfg.Server.CompressionLevel > 0 {
		r.Use(middleware.Compress(cfg.Server.CompressionLevel, "application/json", "application/jwt"))
	}

	entitiesRessource := entities.NewEntitiesRessource(
		logger.Named("entities_ressource"),
		deps.Handler,
		deps.Recorder,
	)
	if cfg.Server.CompressionLevel > 0 {
		entitiesRessource = entitiesRessource.WithWeakETags()
	}
	metaRessource := meta.NewMetaRessource(
		logger.Named("meta_ressource"),
		deps.Snapshot,
		deps.Keys,
	)

	r.Mount("/entities", entitiesRessource.Router())

	if cfg.MetricsEnabled() && deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Mount("/", metaRessource.Router())

	return r, nil
}
