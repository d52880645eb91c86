// Package identity models the authenticated caller. Request handlers only
// see an Identity; how the bearer credential is verified is up to the
// Provider plugged into the auth middleware.
package identity

import (
	"context"
	"errors"
)

// ErrUnauthenticated is returned when a credential cannot be verified.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is a verified caller.
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Provider turns a presented credential into an Identity.
type Provider interface {
	Authenticate(ctx context.Context, credential string) (Identity, error)
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored by the auth middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}
