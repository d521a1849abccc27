package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/tokengate/internal/logging"
	"github.com/HammerMeetNail/tokengate/internal/models"
)

// DefaultLastUsedInterval bounds how often a token's last_used is written.
const DefaultLastUsedInterval = 6 * time.Second

// ErrTokenNotFound is returned by a TokenStore when no token matches a key.
var ErrTokenNotFound = errors.New("token not found")

// Settings is a snapshot of the runtime-mutable global configuration.
type Settings struct {
	MaintenanceMode bool
	LoginRequired   bool
}

// SettingsSource yields the settings in effect for the current request.
type SettingsSource interface {
	Snapshot(ctx context.Context) Settings
}

// StaticSettings is a SettingsSource that never changes.
type StaticSettings Settings

func (s StaticSettings) Snapshot(context.Context) Settings { return Settings(s) }

// TokenStore looks tokens up by their presented key. The returned token must
// carry its owning user.
type TokenStore interface {
	GetByKey(ctx context.Context, key string) (*models.Token, error)
	UpdateLastUsed(ctx context.Context, tokenID uuid.UUID, at time.Time) error
}

// IdentityProvider re-resolves a user from an external directory. A nil user
// with a nil error means no match.
type IdentityProvider interface {
	Lookup(ctx context.Context, username string) (*models.User, error)
}

// TokenResolver turns a presented token key into a user and token.
type TokenResolver struct {
	tokens           TokenStore
	settings         SettingsSource
	identities       IdentityProvider
	lastUsedInterval time.Duration
	now              func() time.Time
	logger           *logging.Logger
}

func NewTokenResolver(tokens TokenStore, settings SettingsSource, logger *logging.Logger) *TokenResolver {
	if logger == nil {
		logger = logging.Default
	}
	return &TokenResolver{
		tokens:           tokens,
		settings:         settings,
		lastUsedInterval: DefaultLastUsedInterval,
		now:              time.Now,
		logger:           logger.Named("auth.login"),
	}
}

// WithIdentityProvider enables the directory override step. Passing nil
// disables it.
func (r *TokenResolver) WithIdentityProvider(p IdentityProvider) *TokenResolver {
	r.identities = p
	return r
}

func (r *TokenResolver) WithLastUsedInterval(d time.Duration) *TokenResolver {
	r.lastUsedInterval = d
	return r
}

func (r *TokenResolver) WithClock(now func() time.Time) *TokenResolver {
	r.now = now
	return r
}

// Resolve authenticates key. Failures the caller should surface as 401 are
// *AuthFailure values; any other error is a backend failure.
func (r *TokenResolver) Resolve(ctx context.Context, key string) (*models.User, *models.Token, error) {
	token, err := r.tokens.GetByKey(ctx, key)
	if errors.Is(err, ErrTokenNotFound) {
		return nil, nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, nil, fmt.Errorf("looking up token: %w", err)
	}
	if token.User == nil {
		return nil, nil, fmt.Errorf("token %s has no owner loaded", token.ID)
	}

	now := r.now()

	// Expired tokens are rejected before last_used is touched.
	if token.IsExpired(now) {
		return nil, nil, ErrExpired
	}

	if token.LastUsed == nil || now.Sub(*token.LastUsed) > r.lastUsedInterval {
		if r.settings.Snapshot(ctx).MaintenanceMode {
			r.logger.Warn("Maintenance mode enabled: disabling update of token's last used timestamp", map[string]interface{}{
				"token_id": token.ID.String(),
			})
		} else {
			if err := r.tokens.UpdateLastUsed(ctx, token.ID, now); err != nil {
				return nil, nil, fmt.Errorf("updating token last used: %w", err)
			}
			token.LastUsed = &now
		}
	}

	if !token.User.IsActive {
		return nil, nil, ErrInactiveUser
	}

	if r.identities != nil {
		user, err := r.identities.Lookup(ctx, token.User.Username)
		if err != nil {
			r.logger.Warn("Directory lookup failed; using local user", map[string]interface{}{
				"username": token.User.Username,
				"error":    err.Error(),
			})
		} else if user != nil {
			return user, token, nil
		}
	}

	return token.User, token, nil
}
