// ABOUTME: Request context helpers for tracking the authenticated user
// ABOUTME: Provides WithUser/UserFromContext for propagating identity via context

package auth

import (
	"context"
)

// userContextKey is the key type for storing the user ID in context.Context.
type userContextKey struct{}

// WithUser returns a new context with the authenticated user ID attached.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey{}, userID)
}

// UserFromContext retrieves the authenticated user ID from the context.
// Returns an empty string if no user is attached.
func UserFromContext(ctx context.Context) string {
	val := ctx.Value(userContextKey{})
	if val == nil {
		return ""
	}
	userID, ok := val.(string)
	if !ok {
		return ""
	}
	return userID
}
