package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shelfkit/shelfkit/internal/model"
)

func TestGenerateAPIKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env        string
		wantPrefix string
	}{
		{EnvLive, "mk_live_"},
		{EnvTest, "mk_test_"},
		{"", "mk_live_"},
		{"staging", "mk_live_"},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Parallel()

			key, err := GenerateAPIKey(tt.env)
			if err != nil {
				t.Fatalf("GenerateAPIKey failed: %v", err)
			}
			if !strings.HasPrefix(key.Plaintext, tt.wantPrefix) {
				t.Errorf("Plaintext = %s, want prefix %s", key.Plaintext, tt.wantPrefix)
			}
			if len(key.Prefix) != KeyPrefixLen {
				t.Errorf("Prefix length = %d, want %d", len(key.Prefix), KeyPrefixLen)
			}

			parsed, err := ParseAPIKey(key.Plaintext)
			if err != nil {
				t.Fatalf("generated key does not parse: %v", err)
			}
			if parsed.Prefix != key.Prefix || len(parsed.Secret) != KeySecretLen {
				t.Errorf("parsed = %+v", parsed)
			}

			ok, err := VerifySecret(key.Plaintext, key.Hash)
			if err != nil || !ok {
				t.Errorf("hash does not verify: %v, %v", ok, err)
			}
		})
	}
}

func TestParseAPIKey_Invalid(t *testing.T) {
	t.Parallel()

	tests := []string{
		"",
		"mk_live_abc123",
		"pk_live_abc123_0123456789abcdef0123456789abcdef",
		"mk_prod_abc123_0123456789abcdef0123456789abcdef",
		"mk_live_ABC123_0123456789abcdef0123456789abcdef",
		"mk_live_abc123_0123456789abcdef0123456789abcde",
	}

	for _, key := range tests {
		if _, err := ParseAPIKey(key); !errors.Is(err, ErrInvalidKeyFormat) {
			t.Errorf("ParseAPIKey(%q) err = %v, want ErrInvalidKeyFormat", key, err)
		}
	}
}

func TestAuthContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if AuthFromContext(ctx) != nil || AccountIDFromContext(ctx) != "" {
		t.Error("empty context should be anonymous")
	}

	ctx = ContextWithAuth(ctx, &model.AuthContext{KeyID: "k", AccountID: "acc"})
	if got := AccountIDFromContext(ctx); got != "acc" {
		t.Errorf("AccountIDFromContext = %q, want acc", got)
	}
}
