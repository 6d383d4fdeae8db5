// Package api provides the REST API server for catalog access.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	v1 "github.com/squadfinder/game-catalog-server/internal/api/v1"
	"github.com/squadfinder/game-catalog-server/internal/catalog"
	"github.com/squadfinder/game-catalog-server/internal/status"
	"github.com/squadfinder/game-catalog-server/internal/versions"
)

// Pinger checks connectivity to the durable store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps bundles the collaborators the API server routes to.
type Deps struct {
	Catalog      catalog.Service
	Synchronizer v1.Synchronizer
	Tracker      *status.Tracker
	Counter      v1.Counter
	Pinger       Pinger
}

// ServerOption configures the catalog API server.
type ServerOption func(*serverConfig)

// serverConfig holds the server configuration.
type serverConfig struct {
	middlewares []func(http.Handler) http.Handler
}

// WithMiddlewares adds middleware to the server.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// NewServer creates and configures the HTTP router with the given
// collaborators and options.
func NewServer(deps Deps, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{
		middlewares: []func(http.Handler) http.Handler{},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Mount("/", HealthRouter(deps.Pinger))
	r.Mount("/api/v1", v1.Router(deps.Catalog, deps.Synchronizer, deps.Tracker, deps.Counter))

	return r
}

// HealthRouter creates a router for health check endpoints.
func HealthRouter(pinger Pinger) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(pinger))
	r.Get("/version", versionHandler)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// readinessHandler reports ready only when the durable store answers a ping.
// The fast cache and the upstream API are optional: the read path degrades
// without them.
func readinessHandler(pinger Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := pinger.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			if encodeErr := json.NewEncoder(w).Encode(v1.ErrorResponse{
				Error: "catalog store not ready: " + err.Error(),
			}); encodeErr != nil {
				slog.Error("failed to encode readiness error response", "error", encodeErr)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	}
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(versions.GetVersionInfo()); err != nil {
		slog.Error("failed to encode version info", "error", err)
	}
}

// LoggingMiddleware logs HTTP requests.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
