// ABOUTME: Tests for request context user propagation
// ABOUTME: Covers WithUser/UserFromContext round-trips and absent values

package auth

import (
	"context"
	"testing"
)

func TestWithUser_RoundTrip(t *testing.T) {
	ctx := WithUser(context.Background(), "user-123")

	if got := UserFromContext(ctx); got != "user-123" {
		t.Errorf("UserFromContext() = %q, want %q", got, "user-123")
	}
}

func TestUserFromContext_Absent(t *testing.T) {
	if got := UserFromContext(context.Background()); got != "" {
		t.Errorf("UserFromContext() on empty context = %q, want empty", got)
	}
}

func TestWithUser_Overwrite(t *testing.T) {
	ctx := WithUser(context.Background(), "first")
	ctx = WithUser(ctx, "second")

	if got := UserFromContext(ctx); got != "second" {
		t.Errorf("UserFromContext() = %q, want %q", got, "second")
	}
}
