package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/HammerMeetNail/tokengate/internal/auth"
	"github.com/HammerMeetNail/tokengate/internal/handlers"
	"github.com/HammerMeetNail/tokengate/internal/logging"
	"github.com/HammerMeetNail/tokengate/internal/models"
)

// Authorization schemes accepted for token authentication.
var tokenKeywords = []string{"token", "bearer"}

var (
	errNoCredentials = &auth.AuthFailure{Kind: auth.MalformedHeader, Reason: "Invalid token header. No credentials provided."}
	errKeyHasSpaces  = &auth.AuthFailure{Kind: auth.MalformedHeader, Reason: "Invalid token header. Token string should not contain spaces."}
	errKeyNotText    = &auth.AuthFailure{Kind: auth.MalformedHeader, Reason: "Invalid token header. Token string should not contain invalid characters."}
)

// TokenResolver resolves a presented key to its owner and token.
type TokenResolver interface {
	Resolve(ctx context.Context, key string) (*models.User, *models.Token, error)
}

type AuthMiddleware struct {
	resolver TokenResolver
	settings auth.SettingsSource
	logger   *logging.Logger
}

func NewAuthMiddleware(resolver TokenResolver, settings auth.SettingsSource, logger *logging.Logger) *AuthMiddleware {
	if logger == nil {
		logger = logging.Default
	}
	return &AuthMiddleware{resolver: resolver, settings: settings, logger: logger.Named("auth")}
}

// parseTokenHeader extracts the key from an Authorization header. An empty
// key with a nil error means the header does not carry a token.
func parseTokenHeader(header string) (string, error) {
	parts := strings.Fields(header)
	if len(parts) == 0 {
		return "", nil
	}
	scheme := strings.ToLower(parts[0])
	matched := false
	for _, kw := range tokenKeywords {
		if scheme == kw {
			matched = true
			break
		}
	}
	if !matched {
		return "", nil
	}

	switch len(parts) {
	case 1:
		return "", errNoCredentials
	case 2:
		if !utf8.ValidString(parts[1]) {
			return "", errKeyNotText
		}
		return parts[1], nil
	default:
		return "", errKeyHasSpaces
	}
}

// Authenticate resolves a token from the Authorization header and puts the
// user and token in the request context. Requests without a token continue
// anonymously; a presented but unusable token is rejected with 401.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := parseTokenHeader(r.Header.Get("Authorization"))
		if err == nil && key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if err == nil {
			var user *models.User
			var token *models.Token
			user, token, err = m.resolver.Resolve(r.Context(), key)
			if err == nil {
				if caller := callerInfoFrom(r.Context()); caller != nil {
					caller.username = user.Username
					caller.tokenPrefix = token.KeyPrefix
				}
				ctx := handlers.SetUserInContext(r.Context(), user)
				ctx = handlers.SetTokenInContext(ctx, token)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}

		var failure *auth.AuthFailure
		if errors.As(err, &failure) {
			m.logger.Debug("Token authentication failed", map[string]interface{}{
				"reason": failure.Kind.String(),
				"path":   r.URL.Path,
			})
			handlers.WriteUnauthenticated(w, failure.Reason)
			return
		}

		m.logger.Error("Token authentication error", map[string]interface{}{"error": err.Error()})
		handlers.WriteError(w, http.StatusInternalServerError, handlers.MsgInternalError)
	})
}

// RequireLogin applies the anonymous access policy: anonymous callers pass
// only while login is not required.
func (m *AuthMiddleware) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		policy := auth.AnonymousAccessPolicy{LoginRequired: m.settings.Snapshot(r.Context()).LoginRequired}
		if !policy.Allow(handlers.GetUserFromContext(r.Context()) != nil) {
			handlers.WriteUnauthenticated(w, handlers.MsgNotAuthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}
