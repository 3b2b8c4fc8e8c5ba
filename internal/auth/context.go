package auth

import (
	"context"

	"github.com/shelfkit/shelfkit/internal/model"
)

type contextKey string

const authContextKey contextKey = "auth_context"

// ContextWithAuth adds AuthContext to the context.
func ContextWithAuth(ctx context.Context, auth *model.AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, auth)
}

// AuthFromContext retrieves AuthContext from the context.
// Returns nil for anonymous requests.
func AuthFromContext(ctx context.Context) *model.AuthContext {
	auth, _ := ctx.Value(authContextKey).(*model.AuthContext)
	return auth
}

// AccountIDFromContext returns the caller's account id, or "" when anonymous.
func AccountIDFromContext(ctx context.Context) string {
	if auth := AuthFromContext(ctx); auth != nil {
		return auth.AccountID
	}
	return ""
}
