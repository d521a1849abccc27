package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/HammerMeetNail/tokengate/internal/config"
	"github.com/HammerMeetNail/tokengate/internal/logging"
	"github.com/HammerMeetNail/tokengate/internal/models"
	"github.com/HammerMeetNail/tokengate/internal/services"
)

type superuserStore interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, params models.CreateUserParams) (*models.User, error)
}

type bootstrapTokenStore interface {
	GetByKey(ctx context.Context, key string) (*models.Token, error)
	Create(ctx context.Context, params models.CreateTokenParams) (*models.Token, string, error)
}

type passwordHasher interface {
	HashPassword(password string) (string, error)
}

// bootstrapSuperuser creates the configured superuser and its API token when
// they do not exist yet. Both steps are idempotent across restarts.
func bootstrapSuperuser(ctx context.Context, cfg config.AuthConfig, users superuserStore, tokens bootstrapTokenStore, passwords passwordHasher, logger *logging.Logger) error {
	if cfg.SuperuserName == "" {
		return nil
	}

	user, err := users.GetByUsername(ctx, cfg.SuperuserName)
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		hash := ""
		if cfg.SuperuserPassword != "" {
			if hash, err = passwords.HashPassword(cfg.SuperuserPassword); err != nil {
				return fmt.Errorf("hashing superuser password: %w", err)
			}
		}
		user, err = users.Create(ctx, models.CreateUserParams{
			Username:     cfg.SuperuserName,
			Email:        cfg.SuperuserEmail,
			PasswordHash: hash,
			IsSuperuser:  true,
		})
		if err != nil {
			return fmt.Errorf("creating superuser: %w", err)
		}
		logger.Info("Superuser created", map[string]interface{}{"username": user.Username})
	case err != nil:
		return fmt.Errorf("loading superuser: %w", err)
	}

	if cfg.SuperuserAPIToken == "" {
		return nil
	}
	_, err = tokens.GetByKey(ctx, cfg.SuperuserAPIToken)
	if err == nil {
		return nil
	}
	if !errors.Is(err, services.ErrTokenNotFound) {
		return fmt.Errorf("loading superuser token: %w", err)
	}

	token, _, err := tokens.Create(ctx, models.CreateTokenParams{
		UserID:       user.ID,
		Key:          cfg.SuperuserAPIToken,
		Description:  "Superuser bootstrap token",
		WriteEnabled: true,
	})
	if err != nil {
		return fmt.Errorf("creating superuser token: %w", err)
	}
	logger.Info("Superuser token created", map[string]interface{}{
		"username":   user.Username,
		"key_prefix": token.KeyPrefix,
	})
	return nil
}
