package handlers

import (
	"net/http"
	"time"

	domain "github.com/farmstand/api/internal/domain"
	"github.com/farmstand/api/internal/services"
)

// HealthHandlers serves liveness and readiness probes. Liveness always
// succeeds once the process accepts requests; readiness consults the system
// service's dependency checks.
type HealthHandlers struct {
	system services.SystemService
	start  time.Time
}

// NewHealthHandlers constructs probe handlers. A nil system service leaves
// readiness reporting liveness only.
func NewHealthHandlers(system services.SystemService) *HealthHandlers {
	return &HealthHandlers{
		system: system,
		start:  time.Now(),
	}
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(h.start).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Readyz reports dependency readiness collected by the system service.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.system == nil {
		h.Healthz(w, r)
		return
	}

	report, err := h.system.HealthReport(r.Context())
	if err != nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, map[string]any{
			"status": string(domain.HealthStatusError),
			"error":  "health collection failed",
		})
		return
	}

	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}

	checks := make(map[string]any, len(report.Checks))
	for name, check := range report.Checks {
		entry := map[string]any{"status": string(check.Status)}
		if check.Detail != "" {
			entry["detail"] = check.Detail
		}
		checks[name] = entry
	}

	writeJSONResponse(w, status, map[string]any{
		"status":       string(report.Status),
		"checks":       checks,
		"generated_at": formatTime(report.GeneratedAt),
	})
}
