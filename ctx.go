package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

var userCtxKey = &contextKey{"user"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}

// WithClaimsContext sets the session claims in the given context
func WithClaimsContext(r context.Context, claims *SessionClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the session claims from the standard context
func GetClaims(ctx context.Context) (*SessionClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*SessionClaims)
	return raw, ok && raw != nil
}

// GetRouterUser extracts the authenticated user from the router context.
// It checks the locals set by the gate middleware first, then the request context.
func GetRouterUser(ctx router.Context, key string) (*User, bool) {
	if key == "" {
		key = DefaultContextKey
	}
	if user, ok := ctx.Locals(key).(*User); ok && user != nil {
		return user, true
	}
	return FromContext(ctx.Context())
}

// GetRouterClaims extracts the session claims from the router context
func GetRouterClaims(ctx router.Context, key string) (*SessionClaims, bool) {
	if key == "" {
		key = DefaultContextKey
	}
	if claims, ok := ctx.Locals(key + "_claims").(*SessionClaims); ok && claims != nil {
		return claims, true
	}
	return GetClaims(ctx.Context())
}

// attachIdentity stores user and claims both in the router locals and the request context.
func attachIdentity(ctx router.Context, key string, user *User, claims *SessionClaims) {
	if key == "" {
		key = DefaultContextKey
	}
	ctx.Locals(key, user)
	ctx.Locals(key+"_claims", claims)

	c := WithContext(ctx.Context(), user)
	c = WithClaimsContext(c, claims)
	ctx.SetContext(c)
}
