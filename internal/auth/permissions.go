package auth

import (
	"fmt"
	"net/http"
)

var permissionActions = map[string][]string{
	http.MethodGet:     {"view"},
	http.MethodHead:    {"view"},
	http.MethodOptions: {},
	http.MethodPost:    {"add"},
	http.MethodPut:     {"change"},
	http.MethodPatch:   {"change"},
	http.MethodDelete:  {"delete"},
}

// IsSafeMethod reports whether method has no mutating side effects.
func IsSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// Capability formats a capability string: "<app>.<action>_<model>".
func Capability(appLabel, action, modelName string) string {
	return fmt.Sprintf("%s.%s_%s", appLabel, action, modelName)
}

// RequiredPermissions returns the capabilities a request with method needs
// against appLabel.modelName. Unknown methods yield ErrMethodNotAllowed.
func RequiredPermissions(method, appLabel, modelName string) ([]string, error) {
	actions, ok := permissionActions[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotAllowed, method)
	}
	perms := make([]string, 0, len(actions))
	for _, action := range actions {
		perms = append(perms, Capability(appLabel, action, modelName))
	}
	return perms, nil
}
