// Package api provides the HTTP server for tally. It is a thin surface over
// the ledger core: ingestion, collapsed listing, group inspection, and
// settlement reads.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tallyhq/tally/internal/domain"
	"github.com/tallyhq/tally/internal/ingest"
	"github.com/tallyhq/tally/internal/settle"
)

// Server is the tally HTTP API server.
type Server struct {
	store          domain.EntryStore
	pipeline       *ingest.Pipeline
	calculator     *settle.Calculator
	metricsEnabled bool
}

// NewServer creates a new API server over the given core services.
func NewServer(store domain.EntryStore, pipeline *ingest.Pipeline, calculator *settle.Calculator) *Server {
	return &Server{store: store, pipeline: pipeline, calculator: calculator}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/ingest", s.handleIngest)

		r.Route("/entries", func(r chi.Router) {
			r.Get("/", s.handleListEntries)
			r.Delete("/{id}", s.handleDeleteEntry)
			r.Post("/{id}/restore", s.handleRestoreEntry)
			r.Post("/group", s.handleMakeGroup)
			r.Get("/group/{groupID}", s.handleGetGroup)
		})

		r.Route("/settlement", func(r chi.Router) {
			r.Get("/", s.handleSettlementSummary)
			r.Get("/{participant}", s.handleSettlementDetail)
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
