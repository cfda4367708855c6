// ABOUTME: Authentication context for tracking identity through request handlers
// ABOUTME: Provides WithClaims/ClaimsFromContext for propagating auth info via context

package auth

import (
	"context"

	"github.com/2389/escape-gateway/internal/store"
)

// IsAdmin reports whether the claims carry the admin role.
func (c *Claims) IsAdmin() bool {
	return c.Role == store.RoleAdmin
}

// claimsContextKey is the key type for storing Claims in context.Context.
type claimsContextKey struct{}

// WithClaims returns a new context with the verified Claims attached.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext retrieves the Claims from the context, returning nil if not present.
func ClaimsFromContext(ctx context.Context) *Claims {
	val := ctx.Value(claimsContextKey{})
	if val == nil {
		return nil
	}
	claims, ok := val.(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// MustClaimsFromContext retrieves the Claims from the context, panicking if not present.
func MustClaimsFromContext(ctx context.Context) *Claims {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		panic("auth: Claims not found in context")
	}
	return claims
}
