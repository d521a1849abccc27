package handlers

import (
	"context"

	"github.com/HammerMeetNail/tokengate/internal/auth"
	"github.com/HammerMeetNail/tokengate/internal/models"
)

type contextKey string

const (
	userContextKey  contextKey = "user"
	tokenContextKey contextKey = "token"
	gateContextKey  contextKey = "gate"
)

func SetUserInContext(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func GetUserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}

// SetTokenInContext records the token that authenticated the request.
func SetTokenInContext(ctx context.Context, token *models.Token) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

func GetTokenFromContext(ctx context.Context) *models.Token {
	token, _ := ctx.Value(tokenContextKey).(*models.Token)
	return token
}

// GateContext is the permission gate that admitted a request, kept for the
// object-level checks a handler runs once it has loaded the object.
type GateContext struct {
	Gate    *auth.WritePermissionGate
	Request auth.Request
}

func SetGateInContext(ctx context.Context, gc *GateContext) context.Context {
	return context.WithValue(ctx, gateContextKey, gc)
}

func GetGateFromContext(ctx context.Context) *GateContext {
	gc, _ := ctx.Value(gateContextKey).(*GateContext)
	return gc
}
