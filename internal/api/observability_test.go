package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"twinforge/backend/internal/ai"
	"twinforge/backend/internal/config"
)

func TestMetricsEndpointIncludesHTTPRequestsTotal(t *testing.T) {
	cfg := config.Load()
	cfg.JWTSecret = "observability-test-secret"

	server := New(cfg, nil, ai.NewMockClient())
	router := server.Router()

	healthReq := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	healthRecorder := httptest.NewRecorder()
	router.ServeHTTP(healthRecorder, healthReq)
	if healthRecorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected /healthz 503 without db, got %d", healthRecorder.Code)
	}

	metricsReq := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsRecorder := httptest.NewRecorder()
	router.ServeHTTP(metricsRecorder, metricsReq)
	if metricsRecorder.Code != http.StatusOK {
		t.Fatalf("expected /metrics 200, got %d", metricsRecorder.Code)
	}

	body := metricsRecorder.Body.String()
	if !strings.Contains(body, "http_requests_total") {
		t.Fatalf("expected metrics output to include http_requests_total, got: %s", body)
	}
	if !strings.Contains(body, `route="/healthz"`) {
		t.Fatalf("expected metrics output to label the healthz route, got: %s", body)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	cfg := config.Load()
	cfg.JWTSecret = "observability-test-secret"

	server := New(cfg, nil, ai.NewMockClient())
	router := server.Router()

	req := httptest.NewRequest(http.MethodGet, "/v1/twins", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", recorder.Code)
	}
}
