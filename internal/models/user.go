package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	IsSuperuser  bool      `json:"is_superuser"`
	Groups       []string  `json:"groups"`
	DateJoined   time.Time `json:"date_joined"`
}

type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	IsSuperuser  bool
}

// DirectoryAttributes are the user fields mirrored from the directory service.
type DirectoryAttributes struct {
	Email     string
	FirstName string
	LastName  string
}
