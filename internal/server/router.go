// Package server wires the monitor API routes.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/driftwatch-systems/driftwatch/internal/handlers"
	"github.com/driftwatch-systems/driftwatch/internal/middleware"
)

// NewRouter constructs a ServeMux with monitor API routes registered.
// When auth is enabled the ingestion and report endpoints require a
// bearer token; health, readiness, version, and metrics stay open.
func NewRouter(h *handlers.Handler, auth *middleware.AuthMiddleware) http.Handler {
	mux := http.NewServeMux()

	protected := func(fn http.HandlerFunc) http.HandlerFunc {
		if auth != nil && auth.Enabled() {
			return auth.RequireAuth(fn)
		}
		return fn
	}

	mux.HandleFunc("POST /api/v1/predictions", protected(h.IngestPrediction))
	mux.HandleFunc("POST /api/v1/feedback", protected(h.IngestFeedback))
	mux.HandleFunc("GET /api/v1/reports/{kind}/latest", protected(h.LatestReport))
	mux.HandleFunc("GET /api/v1/status", h.Status)

	// Operational endpoints
	mux.HandleFunc("GET /healthz", h.HealthCheck)
	mux.HandleFunc("GET /readyz", h.ReadyCheck)
	mux.HandleFunc("GET /version", h.VersionInfo)
	mux.Handle("GET /metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
