package handlers

import (
	"net/http"

	"github.com/HammerMeetNail/tokengate/internal/auth"
)

type StatusHandler struct {
	settings auth.SettingsSource
	version  string
}

func NewStatusHandler(settings auth.SettingsSource, version string) *StatusHandler {
	return &StatusHandler{settings: settings, version: version}
}

type StatusResponse struct {
	Version         string  `json:"version"`
	MaintenanceMode bool    `json:"maintenance_mode"`
	LoginRequired   bool    `json:"login_required"`
	User            *string `json:"user"`
}

func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	settings := h.settings.Snapshot(r.Context())
	response := StatusResponse{
		Version:         h.version,
		MaintenanceMode: settings.MaintenanceMode,
		LoginRequired:   settings.LoginRequired,
	}
	if user := GetUserFromContext(r.Context()); user != nil {
		response.User = &user.Username
	}
	writeJSON(w, http.StatusOK, response)
}
