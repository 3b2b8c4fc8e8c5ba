package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shelfkit/shelfkit/internal/auth"
	"github.com/shelfkit/shelfkit/internal/model"
)

// KeyStore looks up API keys.
type KeyStore interface {
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
}

// AuthCache caches verified keys so Argon2 runs once per TTL.
type AuthCache interface {
	GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error)
	SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger *slog.Logger
	Keys   KeyStore
	Cache  AuthCache // optional
	// MinDuration pads failed attempts so they take the same time.
	MinDuration time.Duration
}

// RequireAuth rejects requests without a valid API key with 401.
func RequireAuth(cfg AuthConfig) func(http.Handler) http.Handler {
	return authenticate(cfg, true)
}

// OptionalAuth attaches the caller when a valid key is present. Missing or
// invalid keys continue anonymously.
func OptionalAuth(cfg AuthConfig) func(http.Handler) http.Handler {
	return authenticate(cfg, false)
}

func authenticate(cfg AuthConfig, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			key := extractAPIKey(r)
			if key == "" && !required {
				next.ServeHTTP(w, r)
				return
			}

			authCtx, reason := resolveKey(r.Context(), cfg, key)
			if authCtx == nil {
				cfg.Logger.Warn("authentication_failed",
					slog.String("reason", reason),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				if !required {
					next.ServeHTTP(w, r)
					return
				}
				if wait := cfg.MinDuration - time.Since(start); wait > 0 {
					time.Sleep(wait)
				}
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing API key")
				return
			}

			ctx := auth.ContextWithAuth(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveKey verifies key and returns the auth context, or nil and a reason.
func resolveKey(ctx context.Context, cfg AuthConfig, key string) (*model.AuthContext, string) {
	if key == "" {
		return nil, "missing_key"
	}
	parsed, err := auth.ParseAPIKey(key)
	if err != nil {
		return nil, "invalid_format"
	}

	cacheKey := auth.CacheKey(key)
	if cfg.Cache != nil {
		if cached, _ := cfg.Cache.GetAuthContext(ctx, cacheKey); cached != nil {
			return cached, ""
		}
	}

	keys, err := cfg.Keys.GetAPIKeysByPrefix(ctx, parsed.Prefix)
	if err != nil {
		cfg.Logger.Error("auth_lookup_failed", slog.String("error", err.Error()))
		return nil, "lookup_error"
	}

	// Several keys may share a prefix.
	var matched *model.APIKey
	for _, k := range keys {
		if ok, err := auth.VerifySecret(key, k.KeyHash); err == nil && ok {
			matched = k
			break
		}
	}
	if matched == nil {
		return nil, "invalid_key"
	}

	authCtx := &model.AuthContext{
		KeyID:     matched.ID,
		KeyPrefix: matched.KeyPrefix,
		AccountID: matched.AccountID,
	}
	if cfg.Cache != nil {
		_ = cfg.Cache.SetAuthContext(ctx, cacheKey, authCtx)
	}

	// Detached from the request so cancellation does not drop the write.
	go func(id string) {
		bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = cfg.Keys.UpdateAPIKeyLastUsed(bg, id)
	}(matched.ID)

	return authCtx, ""
}

// extractAPIKey reads "Authorization: Bearer <key>" or "X-API-Key: <key>".
func extractAPIKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}
