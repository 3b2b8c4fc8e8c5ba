package repository

import (
	"context"
	"fmt"

	"github.com/shelfkit/shelfkit/internal/model"
)

// CreateLibrary creates the empty library for an account. Idempotent.
func (r *Repository) CreateLibrary(ctx context.Context, accountID string) error {
	query := `
		INSERT INTO libraries (account_id) VALUES ($1)
		ON CONFLICT (account_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, accountID); err != nil {
		return fmt.Errorf("failed to create library: %w", err)
	}
	return nil
}

// AddToLibrary grants a product to an account.
func (r *Repository) AddToLibrary(ctx context.Context, accountID, productID string) (bool, error) {
	query := `
		INSERT INTO library_products (account_id, product_id) VALUES ($1, $2)
		ON CONFLICT (account_id, product_id) DO NOTHING
	`

	result, err := r.db.Exec(ctx, query, accountID, productID)
	if err != nil {
		return false, fmt.Errorf("failed to add product to library: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// LibraryHasProduct reports whether the account owns the product.
func (r *Repository) LibraryHasProduct(ctx context.Context, accountID, productID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM library_products WHERE account_id = $1 AND product_id = $2)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, accountID, productID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check library: %w", err)
	}
	return exists, nil
}

// ListLibraryProducts returns the products in an account's library, most recently added first.
func (r *Repository) ListLibraryProducts(ctx context.Context, accountID string) ([]*model.Product, error) {
	query := `
		SELECT p.id, p.owner_id, p.name, p.description, p.slug, p.cover_url, p.call_to_action, p.summary,
		       p.content_url, p.price::text, p.active, p.created_at, p.updated_at
		FROM library_products lp
		JOIN products p ON p.id = lp.product_id
		WHERE lp.account_id = $1
		ORDER BY lp.added_at DESC, p.id
	`
	return r.queryProducts(ctx, query, accountID)
}
