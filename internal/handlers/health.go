package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/HammerMeetNail/tokengate/internal/auth"
)

type HealthChecker interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	db       HealthChecker
	redis    HealthChecker
	settings auth.SettingsSource
}

func NewHealthHandler(db, redis HealthChecker, settings auth.SettingsSource) *HealthHandler {
	return &HealthHandler{
		db:       db,
		redis:    redis,
		settings: settings,
	}
}

type HealthResponse struct {
	Status          string            `json:"status"`
	Checks          map[string]string `json:"checks"`
	MaintenanceMode bool              `json:"maintenance_mode"`
	Timestamp       string            `json:"timestamp"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Checks:    make(map[string]string),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	for name, checker := range map[string]HealthChecker{"postgres": h.db, "redis": h.redis} {
		if err := checker.Health(ctx); err != nil {
			response.Status = "unhealthy"
			response.Checks[name] = "unhealthy: " + err.Error()
		} else {
			response.Checks[name] = "healthy"
		}
	}

	// Maintenance mode keeps serving reads; it is reported, not failed.
	if h.settings != nil {
		response.MaintenanceMode = h.settings.Snapshot(ctx).MaintenanceMode
	}

	status := http.StatusOK
	if response.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	dbErr := h.db.Health(ctx)
	redisErr := h.redis.Health(ctx)

	if dbErr != nil || redisErr != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready"))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("alive"))
}
