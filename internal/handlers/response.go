package handlers

import (
	"encoding/json"
	"net/http"
)

const (
	MsgNotAuthenticated = "Authentication credentials were not provided."
	MsgPermissionDenied = "You do not have permission to perform this action."
	MsgNotFound         = "Not found."
	MsgInternalError    = "Internal server error"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// WriteError writes {"error": message}.
func WriteError(w http.ResponseWriter, status int, message string) {
	writeError(w, status, message)
}

// WriteUnauthenticated writes a 401 carrying the Token challenge.
func WriteUnauthenticated(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Token")
	writeError(w, http.StatusUnauthorized, message)
}

// WritePermissionDenied answers a failed permission check: 401 for an
// anonymous caller, 403 otherwise.
func WritePermissionDenied(w http.ResponseWriter, r *http.Request) {
	if GetUserFromContext(r.Context()) == nil {
		WriteUnauthenticated(w, MsgNotAuthenticated)
		return
	}
	writeError(w, http.StatusForbidden, MsgPermissionDenied)
}
