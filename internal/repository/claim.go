package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/shelfkit/shelfkit/internal/model"
)

// CreatePendingClaim records a purchase for an email with no account.
func (r *Repository) CreatePendingClaim(ctx context.Context, claim *model.PendingClaim) error {
	query := `
		INSERT INTO pending_claims (id, email, product_id, event_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Exec(ctx, query,
		claim.ID,
		model.NormalizeEmail(claim.Email),
		claim.ProductID,
		claim.EventID,
		claim.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create pending claim: %w", err)
	}

	return nil
}

// ListOpenClaimsByEmail returns unconsumed claims for an email, oldest first.
// Rows are locked so concurrent registrations cannot consume the same claim twice.
func (r *Repository) ListOpenClaimsByEmail(ctx context.Context, email string) ([]*model.PendingClaim, error) {
	query := `
		SELECT id, email, product_id, event_id, consumed_at, consumed_by, created_at
		FROM pending_claims
		WHERE email = $1 AND consumed_at IS NULL
		ORDER BY created_at, id
	`
	if _, inTx := r.db.(pgx.Tx); inTx {
		query += ` FOR UPDATE`
	}

	rows, err := r.db.Query(ctx, query, model.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending claims: %w", err)
	}
	defer rows.Close()

	claims := make([]*model.PendingClaim, 0)
	for rows.Next() {
		var (
			claim      model.PendingClaim
			consumedBy *string
		)
		if err := rows.Scan(
			&claim.ID,
			&claim.Email,
			&claim.ProductID,
			&claim.EventID,
			&claim.ConsumedAt,
			&consumedBy,
			&claim.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pending claim: %w", err)
		}
		claim.ConsumedBy = deref(consumedBy)
		claims = append(claims, &claim)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending claims: %w", err)
	}

	return claims, nil
}

// ConsumeClaim marks a claim as granted to an account.
func (r *Repository) ConsumeClaim(ctx context.Context, claimID, accountID string, at time.Time) error {
	query := `
		UPDATE pending_claims
		SET consumed_at = $3, consumed_by = $2
		WHERE id = $1 AND consumed_at IS NULL
	`

	result, err := r.db.Exec(ctx, query, claimID, accountID, at)
	if err != nil {
		return fmt.Errorf("failed to consume pending claim: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrClaimNotFound
	}

	return nil
}
