// Package handlers implements the monitor HTTP API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/driftwatch-systems/driftwatch/internal/httputil"
	"github.com/driftwatch-systems/driftwatch/internal/logging"
	"github.com/driftwatch-systems/driftwatch/internal/models"
	"github.com/driftwatch-systems/driftwatch/internal/service"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// ComponentChecker reports per-component readiness for the status and
// readiness endpoints.
type ComponentChecker func() map[string]string

// Handler holds the API dependencies.
type Handler struct {
	monitor    *service.Monitor
	logger     *logging.Logger
	components ComponentChecker
	startedAt  time.Time
}

// NewHandler creates the API handler. components may be nil.
func NewHandler(monitor *service.Monitor, logger *logging.Logger, components ComponentChecker) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		monitor:    monitor,
		logger:     logger,
		components: components,
		startedAt:  time.Now().UTC(),
	}
}

type ingestPredictionRequest struct {
	PredictionID    string                 `json:"prediction_id,omitempty"`
	ModelVersion    string                 `json:"model_version"`
	PredictionValue float64                `json:"prediction"`
	Features        map[string]interface{} `json:"features,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

type ingestFeedbackRequest struct {
	PredictionID string                 `json:"prediction_id"`
	ActualValue  float64                `json:"actual"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// IngestPrediction handles POST /api/v1/predictions.
func (h *Handler) IngestPrediction(w http.ResponseWriter, r *http.Request) {
	var req ingestPredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ModelVersion == "" {
		httputil.WriteError(w, http.StatusBadRequest, "model_version is required")
		return
	}

	id, err := h.monitor.IngestPrediction(r.Context(), &models.PredictionRecord{
		ID:              req.PredictionID,
		ModelVersion:    req.ModelVersion,
		PredictionValue: req.PredictionValue,
		Features:        req.Features,
		Metadata:        req.Metadata,
	})
	if err != nil {
		h.writeDomainError(w, r, err, "failed to ingest prediction")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]string{
		"prediction_id": id,
		"status":        "accepted",
	})
}

// IngestFeedback handles POST /api/v1/feedback.
func (h *Handler) IngestFeedback(w http.ResponseWriter, r *http.Request) {
	var req ingestFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PredictionID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "prediction_id is required")
		return
	}

	err := h.monitor.IngestFeedback(r.Context(), &models.FeedbackRecord{
		PredictionID: req.PredictionID,
		ActualValue:  req.ActualValue,
		Metadata:     req.Metadata,
	})
	if err != nil {
		h.writeDomainError(w, r, err, "failed to ingest feedback")
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// LatestReport handles GET /api/v1/reports/{kind}/latest.
func (h *Handler) LatestReport(w http.ResponseWriter, r *http.Request) {
	kind := models.ReportKind(r.PathValue("kind"))
	if !kind.Valid() {
		httputil.WriteError(w, http.StatusNotFound, "unknown report kind")
		return
	}

	report, err := h.monitor.LatestReport(r.Context(), kind)
	if err != nil {
		h.writeDomainError(w, r, err, "failed to fetch report")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// Status handles GET /api/v1/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{}
	if h.components != nil {
		components = h.components()
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"service":    "driftwatch-monitor",
		"version":    Version,
		"uptime":     time.Since(h.startedAt).Round(time.Second).String(),
		"components": components,
	})
}

// HealthCheck handles GET /healthz.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ReadyCheck handles GET /readyz. Ready means every component reports
// ok; otherwise 503 with the failing components.
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{}
	if h.components != nil {
		components = h.components()
	}
	for _, status := range components {
		if !strings.EqualFold(status, "ok") {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status":     "not ready",
				"components": components,
			})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ready",
		"components": components,
	})
}

// VersionInfo handles GET /version.
func (h *Handler) VersionInfo(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"service": "driftwatch-monitor",
		"version": Version,
	})
}

// writeDomainError maps pipeline sentinel errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, models.ErrDuplicateIdentity), errors.Is(err, models.ErrDuplicateFeedback):
		httputil.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrUnknownPrediction):
		httputil.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, "not found")
	case errors.Is(err, models.ErrStorageTimeout):
		httputil.WriteError(w, http.StatusGatewayTimeout, "storage timeout")
	default:
		h.logger.ErrorContext(r.Context(), fallback, logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, fallback)
	}
}
