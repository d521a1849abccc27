package auth

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a token could not authenticate a request.
type FailureKind int

const (
	InvalidCredential FailureKind = iota + 1
	Expired
	InactiveUser
	MalformedHeader
)

func (k FailureKind) String() string {
	switch k {
	case InvalidCredential:
		return "invalid_credential"
	case Expired:
		return "expired"
	case InactiveUser:
		return "inactive_user"
	case MalformedHeader:
		return "malformed_header"
	default:
		return "unknown"
	}
}

// AuthFailure is returned for every unauthenticated outcome. Reason is safe to
// show to the caller.
type AuthFailure struct {
	Kind   FailureKind
	Reason string
}

func (e *AuthFailure) Error() string {
	return fmt.Sprintf("authentication failed (%s): %s", e.Kind, e.Reason)
}

// Is matches another *AuthFailure of the same kind, so callers can write
// errors.Is(err, auth.ErrExpired).
func (e *AuthFailure) Is(target error) bool {
	var other *AuthFailure
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

var (
	ErrInvalidCredential = &AuthFailure{Kind: InvalidCredential, Reason: "Invalid token"}
	ErrExpired           = &AuthFailure{Kind: Expired, Reason: "Token expired"}
	ErrInactiveUser      = &AuthFailure{Kind: InactiveUser, Reason: "User inactive"}
)

var (
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrObjectNotFound   = errors.New("object not found")
)
