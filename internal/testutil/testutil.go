// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/shelfkit/shelfkit/internal/model"
	"github.com/shelfkit/shelfkit/migrations"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema drops every table and reapplies all embedded migrations.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	ups, downs, err := migrationFiles()
	if err != nil {
		return err
	}

	for i := len(downs) - 1; i >= 0; i-- {
		if err := execFile(ctx, pool, downs[i]); err != nil {
			return err
		}
	}
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS schema_migrations"); err != nil {
		return fmt.Errorf("drop schema_migrations: %w", err)
	}
	for _, name := range ups {
		if err := execFile(ctx, pool, name); err != nil {
			return err
		}
	}

	return nil
}

func migrationFiles() (ups, downs []string, err error) {
	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return nil, nil, fmt.Errorf("read migrations: %w", err)
	}
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups = append(ups, e.Name())
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs = append(downs, e.Name())
		}
	}
	sort.Strings(ups)
	sort.Strings(downs)
	return ups, downs, nil
}

func execFile(ctx context.Context, pool *pgxpool.Pool, name string) error {
	body, err := fs.ReadFile(migrations.FS, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if _, err := pool.Exec(ctx, string(body)); err != nil {
		return fmt.Errorf("apply %s: %w", name, err)
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestAccount creates an account with a unique email and username.
func NewTestAccount(t testing.TB) *model.Account {
	t.Helper()
	now := time.Now().UTC()
	id := ulid.Make().String()
	return &model.Account{
		ID:        id,
		Email:     strings.ToLower(id) + "@example.com",
		Username:  "user" + strings.ToLower(id[len(id)-10:]),
		Name:      "Test User",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestProduct creates an active product owned by ownerID.
func NewTestProduct(t testing.TB, ownerID string) *model.Product {
	t.Helper()
	now := time.Now().UTC()
	id := ulid.Make().String()
	return &model.Product{
		ID:           id,
		OwnerID:      ownerID,
		Name:         "Test Product",
		Description:  "A product for tests",
		Slug:         "p-" + strings.ToLower(id),
		CallToAction: model.CallToActionBuy,
		ContentURL:   "https://files.example.com/" + id,
		Price:        decimal.RequireFromString("12.50"),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewTestAPIKey creates an API key row for accountID.
func NewTestAPIKey(t testing.TB, accountID string) *model.APIKey {
	t.Helper()
	return &model.APIKey{
		ID:        ulid.Make().String(),
		AccountID: accountID,
		KeyHash:   fmt.Sprintf("hash-%d", time.Now().UnixNano()),
		KeyPrefix: "abc123",
		CreatedAt: time.Now().UTC(),
	}
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
