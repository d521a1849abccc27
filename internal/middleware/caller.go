package middleware

import "context"

type callerKey struct{}

type callerInfo struct {
	username    string
	tokenPrefix string
}

func withCallerInfo(ctx context.Context, c *callerInfo) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

func callerInfoFrom(ctx context.Context) *callerInfo {
	c, _ := ctx.Value(callerKey{}).(*callerInfo)
	return c
}
