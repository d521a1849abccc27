package main

import (
	"net/http"
	"sort"
	"strings"

	"github.com/HammerMeetNail/tokengate/internal/handlers"
	"github.com/HammerMeetNail/tokengate/internal/middleware"
)

type routerDeps struct {
	health        *handlers.HealthHandler
	status        *handlers.StatusHandler
	tokens        *handlers.TokenHandler
	provision     *handlers.ProvisionHandler
	auth          *middleware.AuthMiddleware
	permissions   *middleware.PermissionMiddleware
	security      *middleware.SecurityHeaders
	requestLogger *middleware.RequestLogger
}

// methods dispatches on the request method once the permission gate has run,
// so unsupported-but-known methods still get a 405 with an Allow header.
type methods map[string]http.HandlerFunc

func (m methods) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h, ok := m[r.Method]; ok {
		h(w, r)
		return
	}
	allowed := make([]string, 0, len(m)+1)
	for method := range m {
		allowed = append(allowed, method)
	}
	allowed = append(allowed, http.MethodOptions)
	sort.Strings(allowed)
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	handlers.WriteError(w, http.StatusMethodNotAllowed, `Method "`+r.Method+`" not allowed.`)
}

func newRouter(d routerDeps) http.Handler {
	requireToken := d.permissions.Require("users", "token")

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", d.health.Health)
	mux.HandleFunc("GET /ready", d.health.Ready)
	mux.HandleFunc("GET /live", d.health.Live)

	mux.Handle("GET /api/status/", d.auth.RequireLogin(http.HandlerFunc(d.status.Status)))

	mux.HandleFunc("POST /api/users/tokens/provision/", d.provision.Provision)
	mux.Handle("/api/users/tokens/{$}", requireToken(methods{
		http.MethodGet:  d.tokens.List,
		http.MethodHead: d.tokens.List,
		http.MethodPost: d.tokens.Create,
	}))
	mux.Handle("/api/users/tokens/{id}/", requireToken(methods{
		http.MethodGet:    d.tokens.Get,
		http.MethodHead:   d.tokens.Get,
		http.MethodPut:    d.tokens.Update,
		http.MethodPatch:  d.tokens.Update,
		http.MethodDelete: d.tokens.Delete,
	}))

	// Outermost first: logging sees the final status and resolved caller.
	var handler http.Handler = mux
	handler = d.auth.Authenticate(handler)
	handler = d.security.Apply(handler)
	handler = d.requestLogger.Apply(handler)
	return handler
}
