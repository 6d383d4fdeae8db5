// Package v1 provides the REST API handlers for catalog access.
package v1

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/squadfinder/game-catalog-server/internal/catalog"
	"github.com/squadfinder/game-catalog-server/internal/status"
	syncer "github.com/squadfinder/game-catalog-server/internal/sync"
)

// ErrorResponse is the standardized error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is the payload for GET /status.
type StatusResponse struct {
	status.Snapshot
	RecordCount int64 `json:"recordCount"`
}

// Synchronizer triggers full catalog syncs.
type Synchronizer interface {
	SyncAll(ctx context.Context) (syncer.Result, error)
	Running() bool
}

// Counter reports how many records the catalog holds.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// Routes defines the routes for the catalog API with dependency injection.
type Routes struct {
	catalog      catalog.Service
	synchronizer Synchronizer
	tracker      *status.Tracker
	counter      Counter
}

// NewRoutes creates a new Routes instance with the provided collaborators.
func NewRoutes(svc catalog.Service, synchronizer Synchronizer, tracker *status.Tracker, counter Counter) *Routes {
	return &Routes{
		catalog:      svc,
		synchronizer: synchronizer,
		tracker:      tracker,
		counter:      counter,
	}
}

// Router creates a new router for the catalog API.
func Router(svc catalog.Service, synchronizer Synchronizer, tracker *status.Tracker, counter Counter) http.Handler {
	routes := NewRoutes(svc, synchronizer, tracker, counter)

	r := chi.NewRouter()

	r.Get("/search", routes.searchGames)
	r.Get("/games/{id}", routes.getGame)
	r.Post("/sync", routes.triggerSync)
	r.Get("/status", routes.getStatus)

	return r
}

// searchGames handles GET /api/v1/search?q=term
func (rr *Routes) searchGames(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		rr.writeErrorResponse(w, "missing query parameter: q", http.StatusBadRequest)
		return
	}

	result, err := rr.catalog.Search(r.Context(), term)
	if err != nil {
		slog.Error("search failed", "term", term, "error", err)
		rr.writeErrorResponse(w, "catalog search failed", http.StatusInternalServerError)
		return
	}

	rr.writeJSONResponse(w, result)
}

// getGame handles GET /api/v1/games/{id}
func (rr *Routes) getGame(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		rr.writeErrorResponse(w, "invalid game identifier", http.StatusBadRequest)
		return
	}

	game, err := rr.catalog.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("game lookup failed", "igdb_id", id, "error", err)
		rr.writeErrorResponse(w, "catalog lookup failed", http.StatusInternalServerError)
		return
	}
	if game == nil {
		rr.writeErrorResponse(w, "game not found", http.StatusNotFound)
		return
	}

	rr.writeJSONResponse(w, game)
}

// triggerSync handles POST /api/v1/sync. The sync runs in the background;
// the response only acknowledges that it was started.
func (rr *Routes) triggerSync(w http.ResponseWriter, r *http.Request) {
	if rr.synchronizer.Running() {
		rr.writeErrorResponse(w, "sync already in progress", http.StatusConflict)
		return
	}

	// Detach from the request context so the sync outlives this response.
	ctx := context.WithoutCancel(r.Context())
	go func() {
		if _, err := rr.synchronizer.SyncAll(ctx); err != nil {
			slog.Warn("manually triggered sync did not run", "error", err)
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte(`{"status":"sync started"}`))
}

// getStatus handles GET /api/v1/status
func (rr *Routes) getStatus(w http.ResponseWriter, r *http.Request) {
	count, err := rr.counter.Count(r.Context())
	if err != nil {
		slog.Error("record count failed", "error", err)
		rr.writeErrorResponse(w, "failed to read catalog status", http.StatusInternalServerError)
		return
	}

	rr.writeJSONResponse(w, StatusResponse{
		Snapshot:    rr.tracker.Snapshot(),
		RecordCount: count,
	})
}

// writeJSONResponse writes a JSON response with the given data.
func (*Routes) writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a standardized error response.
func (*Routes) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
