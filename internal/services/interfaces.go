package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/tokengate/internal/models"
)

// UserServiceInterface defines the contract for user operations.
type UserServiceInterface interface {
	Create(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	SyncDirectoryAttributes(ctx context.Context, username string, attrs models.DirectoryAttributes) (*models.User, error)
}

// TokenServiceInterface defines the contract for token operations used by handlers.
type TokenServiceInterface interface {
	Create(ctx context.Context, params models.CreateTokenParams) (*models.Token, string, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Token, error)
	List(ctx context.Context, owner *uuid.UUID) ([]models.Token, error)
	Update(ctx context.Context, id uuid.UUID, params models.UpdateTokenParams) (*models.Token, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PasswordVerifier checks a password against a stored hash.
type PasswordVerifier interface {
	VerifyPassword(hash, password string) bool
}
