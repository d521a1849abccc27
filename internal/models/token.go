package models

import (
	"time"

	"github.com/google/uuid"
)

// Token is a long-lived API credential owned by a user. Only the SHA-256
// hash of the key is stored.
type Token struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	User         *User      `json:"user,omitempty"`
	KeyHash      string     `json:"-"` // Never expose hash in JSON
	KeyPrefix    string     `json:"key_prefix"`
	Description  string     `json:"description"`
	Created      time.Time  `json:"created"`
	Expires      *time.Time `json:"expires,omitempty"`
	LastUsed     *time.Time `json:"last_used,omitempty"`
	WriteEnabled bool       `json:"write_enabled"`
}

// IsExpired reports whether the token has an expiry that lies before now.
func (t *Token) IsExpired(now time.Time) bool {
	return t.Expires != nil && now.After(*t.Expires)
}

// ObjectRef returns the reference used for object-level permission checks.
func (t *Token) ObjectRef() ObjectRef {
	return ObjectRef{AppLabel: "users", ModelName: "token", ID: t.ID.String()}
}

type CreateTokenParams struct {
	UserID       uuid.UUID
	Key          string // generated when empty
	Description  string
	Expires      *time.Time
	WriteEnabled bool
}

type UpdateTokenParams struct {
	Description  *string
	Expires      *time.Time
	ClearExpires bool
	WriteEnabled *bool
}
