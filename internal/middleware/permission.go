package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/HammerMeetNail/tokengate/internal/auth"
	"github.com/HammerMeetNail/tokengate/internal/handlers"
	"github.com/HammerMeetNail/tokengate/internal/logging"
)

// PermissionMiddleware runs the write permission gate for a resource type.
// The gate is rebuilt per request from the current settings snapshot.
type PermissionMiddleware struct {
	checker  auth.CapabilityChecker
	settings auth.SettingsSource
	logger   *logging.Logger
}

func NewPermissionMiddleware(checker auth.CapabilityChecker, settings auth.SettingsSource, logger *logging.Logger) *PermissionMiddleware {
	if logger == nil {
		logger = logging.Default
	}
	return &PermissionMiddleware{checker: checker, settings: settings, logger: logger.Named("permissions")}
}

// Require gates next on the collection-level check for appLabel.modelName
// and leaves the gate in the context for object-level checks.
func (m *PermissionMiddleware) Require(appLabel, modelName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			settings := m.settings.Snapshot(r.Context())
			gate := auth.NewWritePermissionGate(settings.LoginRequired, m.checker)
			req := auth.Request{
				Method:    r.Method,
				User:      handlers.GetUserFromContext(r.Context()),
				Token:     handlers.GetTokenFromContext(r.Context()),
				AppLabel:  appLabel,
				ModelName: modelName,
			}

			ok, err := gate.HasPermission(r.Context(), req)
			if errors.Is(err, auth.ErrMethodNotAllowed) {
				w.Header().Set("Allow", "GET, HEAD, OPTIONS, POST, PUT, PATCH, DELETE")
				handlers.WriteError(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method %q not allowed.", r.Method))
				return
			}
			if err != nil {
				m.logger.Error("Permission check failed", map[string]interface{}{"error": err.Error()})
				handlers.WriteError(w, http.StatusInternalServerError, handlers.MsgInternalError)
				return
			}
			if !ok {
				fields := map[string]interface{}{
					"method": r.Method,
					"model":  appLabel + "." + modelName,
				}
				if req.Token != nil {
					fields["token_id"] = req.Token.ID.String()
					fields["write_enabled"] = req.Token.WriteEnabled
				}
				m.logger.Debug("Permission denied", fields)
				handlers.WritePermissionDenied(w, r)
				return
			}

			ctx := handlers.SetGateInContext(r.Context(), &handlers.GateContext{Gate: gate, Request: req})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
