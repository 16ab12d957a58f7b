package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/region-sentinel/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegionService is the slice of the scheduler the region endpoints need.
type RegionService interface {
	sharedobs.ReadinessChecker
	RegionStatus(ctx context.Context, regionID string) (*domain.RegionVersion, error)
	TriggerSync(ctx context.Context, regionID string) (bool, error)
}

// Server exposes health, readiness, metrics, and region HTTP endpoints.
type Server struct {
	httpServer *http.Server
	regions    RegionService
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and
// /regions routes.
func NewServer(addr string, regions RegionService, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			// Manual syncs hold the request open for a full Overpass round trip.
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		regions: regions,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(regions))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /regions/{id}", s.handleRegionStatus)
	mux.HandleFunc("POST /regions/{id}/sync", s.handleRegionSync)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleRegionStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	v, err := s.regions.RegionStatus(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrUnknownRegion):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		s.logger.Error("region status failed", "region_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, err)
	case v == nil:
		writeError(w, http.StatusNotFound, errors.New("region has not synced yet"))
	default:
		sharedobs.WriteJSON(w, http.StatusOK, v)
	}
}

type syncResponse struct {
	RegionID string `json:"region_id"`
	OK       bool   `json:"ok"`
}

func (s *Server) handleRegionSync(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	// The pass outlives a dropped client; the store must not be left half-written.
	ok, err := s.regions.TriggerSync(context.WithoutCancel(r.Context()), id)
	switch {
	case errors.Is(err, domain.ErrUnknownRegion):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrSyncInProgress):
		writeError(w, http.StatusConflict, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		sharedobs.WriteJSON(w, http.StatusOK, syncResponse{RegionID: id, OK: ok})
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
