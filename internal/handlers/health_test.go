package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/farmstand/api/internal/domain"
	"github.com/farmstand/api/internal/services"
)

func TestHealthzAlwaysOK(t *testing.T) {
	handler := NewHealthHandlers(nil)

	rr := httptest.NewRecorder()
	handler.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("unexpected status %v", payload["status"])
	}
}

func TestReadyzReportsChecks(t *testing.T) {
	system := &stubSystemService{
		healthFunc: func(ctx context.Context) (services.SystemHealthReport, error) {
			return domain.SystemHealthReport{
				Status: domain.HealthStatusDegraded,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusOK},
					"pubsub":    {Status: domain.HealthStatusDegraded, Detail: "publish latency elevated"},
				},
				GeneratedAt: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	handler := NewHealthHandlers(system)

	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("degraded should still report ready, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload["status"] != "degraded" {
		t.Fatalf("unexpected status %v", payload["status"])
	}
	checks, ok := payload["checks"].(map[string]any)
	if !ok || len(checks) != 2 {
		t.Fatalf("expected 2 checks, got %v", payload["checks"])
	}
}

func TestReadyzErrorStatusIsUnavailable(t *testing.T) {
	system := &stubSystemService{
		healthFunc: func(ctx context.Context) (services.SystemHealthReport, error) {
			return domain.SystemHealthReport{Status: domain.HealthStatusError}, nil
		},
	}
	handler := NewHealthHandlers(system)

	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestReadyzCollectionFailure(t *testing.T) {
	system := &stubSystemService{
		healthFunc: func(ctx context.Context) (services.SystemHealthReport, error) {
			return domain.SystemHealthReport{}, errors.New("collect failed")
		},
	}
	handler := NewHealthHandlers(system)

	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
