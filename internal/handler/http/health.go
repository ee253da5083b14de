package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"crawl-dashboard/internal/usecase/poll"
)

// Health check states.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthResponse is the body of the detailed health endpoint.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
	Version   string                 `json:"version"`
}

// CheckStatus is the result of one health check.
type CheckStatus struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// PollerStatus reports the refresh loop state.
type PollerStatus interface {
	Status() poll.Status
}

// BreakerStatus reports whether a circuit breaker is open.
type BreakerStatus interface {
	BreakerOpen() bool
}

// HealthHandler reports the poller, the crawl API circuit breaker and the
// CSP configuration. Only a poller that never loaded the source list makes
// the dashboard unhealthy; everything else degrades it.
type HealthHandler struct {
	Poller  PollerStatus
	Backend BreakerStatus
	Version string

	// StaleAfter marks the poller degraded when the last successful list
	// refresh is older. Zero disables the check.
	StaleAfter time.Duration

	CSPEnabled    bool
	CSPReportOnly bool

	Now func() time.Time
}

func (h *HealthHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// ServeHTTP returns 200 when healthy or degraded, 503 when unhealthy.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := map[string]CheckStatus{
		"poller": h.checkPoller(),
	}
	if h.Backend != nil {
		checks["backend"] = h.checkBackend()
	}
	if h.CSPEnabled {
		checks["csp"] = CheckStatus{
			Status:  StatusHealthy,
			Details: map[string]any{"enabled": true, "report_only": h.CSPReportOnly},
		}
	}

	status := StatusHealthy
	for _, c := range checks {
		if c.Status == StatusUnhealthy {
			status = StatusUnhealthy
			break
		}
		if c.Status == StatusDegraded {
			status = StatusDegraded
		}
	}
	code := http.StatusOK
	if status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(code)
	resp := HealthResponse{
		Status:    status,
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Version:   h.Version,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Default().Error("health: failed to encode response", slog.Any("error", err))
	}
}

func (h *HealthHandler) checkPoller() CheckStatus {
	if h.Poller == nil {
		return CheckStatus{Status: StatusUnhealthy, Message: "not configured"}
	}
	st := h.Poller.Status()
	details := map[string]any{
		"ready":   st.Ready,
		"loading": st.Loading,
	}
	if !st.LastSuccess.IsZero() {
		details["last_success"] = st.LastSuccess.UTC().Format(time.RFC3339)
		details["last_success_age_seconds"] = int64(h.now().Sub(st.LastSuccess).Seconds())
	}
	if st.LastError != "" {
		details["last_error"] = st.LastError
		details["last_error_at"] = st.LastErrorAt.UTC().Format(time.RFC3339)
	}

	switch {
	case !st.Ready:
		return CheckStatus{Status: StatusUnhealthy, Message: "source list not loaded", Details: details}
	case st.LastError != "":
		return CheckStatus{Status: StatusDegraded, Message: "last refresh failed", Details: details}
	case h.StaleAfter > 0 && h.now().Sub(st.LastSuccess) > h.StaleAfter:
		return CheckStatus{Status: StatusDegraded, Message: "source list is stale", Details: details}
	}
	return CheckStatus{Status: StatusHealthy, Details: details}
}

func (h *HealthHandler) checkBackend() CheckStatus {
	if h.Backend.BreakerOpen() {
		return CheckStatus{
			Status:  StatusDegraded,
			Message: "circuit breaker open",
			Details: map[string]any{"circuit_breaker": "open"},
		}
	}
	return CheckStatus{
		Status:  StatusHealthy,
		Details: map[string]any{"circuit_breaker": "closed"},
	}
}

// LiveHandler always answers 200 while the process can serve requests.
type LiveHandler struct{}

func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}
