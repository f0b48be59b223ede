package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch-systems/driftwatch/internal/analysis"
	"github.com/driftwatch-systems/driftwatch/internal/dispatch"
	"github.com/driftwatch-systems/driftwatch/internal/handlers"
	"github.com/driftwatch-systems/driftwatch/internal/logging"
	"github.com/driftwatch-systems/driftwatch/internal/middleware"
	"github.com/driftwatch-systems/driftwatch/internal/models"
	"github.com/driftwatch-systems/driftwatch/internal/repository"
	"github.com/driftwatch-systems/driftwatch/internal/server"
	"github.com/driftwatch-systems/driftwatch/internal/service"
)

func newTestServer(t *testing.T) (http.Handler, *repository.MemoryRepository) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	cfg := dispatch.DefaultConfig()
	cfg.Workers = 2
	d := dispatch.New(cfg, dispatch.Stores{Predictions: repo, Feedback: repo, Reports: repo, Jobs: repo},
		&dispatch.NoOpRegistry{}, analysis.NewBuiltinSuite(analysis.DefaultThresholds()), nil, logging.Default())
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(d.Stop)

	monitor := service.New(repo, d, 5*time.Second, logging.Default())
	h := handlers.NewHandler(monitor, logging.Default(), func() map[string]string {
		return map[string]string{"storage": "ok"}
	})
	return server.NewRouter(h, nil), repo
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestIngestPredictionEndpoint(t *testing.T) {
	router, repo := newTestServer(t)

	rec := postJSON(t, router, "/api/v1/predictions", map[string]interface{}{
		"model_version": "v1",
		"prediction":    0.42,
		"features":      map[string]interface{}{"age": 30},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "accepted", body["status"])
	id, _ := body["prediction_id"].(string)
	require.NotEmpty(t, id)

	_, err := repo.GetPrediction(context.Background(), id)
	assert.NoError(t, err)
}

func TestIngestPredictionValidation(t *testing.T) {
	router, _ := newTestServer(t)

	rec := postJSON(t, router, "/api/v1/predictions", map[string]interface{}{
		"prediction": 0.42,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/predictions", bytes.NewReader([]byte("{not json")))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestPredictionDuplicateConflict(t *testing.T) {
	router, _ := newTestServer(t)

	payload := map[string]interface{}{
		"prediction_id": "fixed",
		"model_version": "v1",
		"prediction":    0.1,
	}
	require.Equal(t, http.StatusCreated, postJSON(t, router, "/api/v1/predictions", payload).Code)
	assert.Equal(t, http.StatusConflict, postJSON(t, router, "/api/v1/predictions", payload).Code)
}

func TestIngestFeedbackEndpoint(t *testing.T) {
	router, _ := newTestServer(t)

	rec := postJSON(t, router, "/api/v1/predictions", map[string]interface{}{
		"prediction_id": "p-1",
		"model_version": "v1",
		"prediction":    0.4,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, router, "/api/v1/feedback", map[string]interface{}{
		"prediction_id": "p-1",
		"actual":        0.5,
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	// Unknown prediction → 404.
	rec = postJSON(t, router, "/api/v1/feedback", map[string]interface{}{
		"prediction_id": "nope",
		"actual":        0.5,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Second feedback → 409.
	rec = postJSON(t, router, "/api/v1/feedback", map[string]interface{}{
		"prediction_id": "p-1",
		"actual":        0.9,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLatestReportEndpoint(t *testing.T) {
	router, repo := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/data_drift/latest", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, repo.AppendReport(context.Background(), &models.Report{
		ID:           "r-1",
		Kind:         models.ReportDataDrift,
		PredictionID: "p-1",
		GeneratedAt:  time.Now().UTC(),
		Body:         map[string]interface{}{"drift_detected": false},
	}))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/reports/data_drift/latest", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "r-1", body["id"])

	req = httptest.NewRequest(http.MethodGet, "/api/v1/reports/bogus/latest", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOperationalEndpoints(t *testing.T) {
	router, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz", "/version", "/api/v1/status", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "path %s", path)
	}
}

func TestAuthProtectsIngestion(t *testing.T) {
	repo := repository.NewMemoryRepository()
	d := dispatch.New(dispatch.DefaultConfig(),
		dispatch.Stores{Predictions: repo, Feedback: repo, Reports: repo, Jobs: repo},
		&dispatch.NoOpRegistry{}, analysis.NewBuiltinSuite(analysis.DefaultThresholds()), nil, logging.Default())
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(d.Stop)

	monitor := service.New(repo, d, 5*time.Second, logging.Default())
	h := handlers.NewHandler(monitor, logging.Default(), nil)
	router := server.NewRouter(h, middleware.NewAuthMiddleware("test-secret"))

	rec := postJSON(t, router, "/api/v1/predictions", map[string]interface{}{
		"model_version": "v1",
		"prediction":    0.1,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Health stays open.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	openRec := httptest.NewRecorder()
	router.ServeHTTP(openRec, req)
	assert.Equal(t, http.StatusOK, openRec.Code)
}
