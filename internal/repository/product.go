package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/shelfkit/shelfkit/internal/model"
)

// price is read as text so decimal keeps the exact NUMERIC value.
const productColumns = `id, owner_id, name, description, slug, cover_url, call_to_action, summary, content_url, price::text, active, created_at, updated_at`

// CreateProduct inserts a new product.
func (r *Repository) CreateProduct(ctx context.Context, product *model.Product) error {
	query := `
		INSERT INTO products (id, owner_id, name, description, slug, cover_url, call_to_action, summary, content_url, price, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::numeric, $11, $12, $13)
	`

	_, err := r.db.Exec(ctx, query,
		product.ID,
		product.OwnerID,
		product.Name,
		product.Description,
		product.Slug,
		nullable(product.CoverURL),
		string(product.CallToAction),
		nullable(product.Summary),
		nullable(product.ContentURL),
		product.Price.String(),
		product.Active,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		if _, ok := isUniqueViolation(err); ok {
			return ErrSlugExists
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// GetProductByID retrieves a product by its ID.
func (r *Repository) GetProductByID(ctx context.Context, id string) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	return scanProduct(r.db.QueryRow(ctx, query, id))
}

// GetProductBySlug retrieves a product by its public slug.
func (r *Repository) GetProductBySlug(ctx context.Context, slug string) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE slug = $1`
	return scanProduct(r.db.QueryRow(ctx, query, slug))
}

// UpdateProduct writes every mutable field of a product.
func (r *Repository) UpdateProduct(ctx context.Context, product *model.Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, slug = $4, cover_url = $5, call_to_action = $6,
		    summary = $7, content_url = $8, price = $9::numeric, active = $10, updated_at = $11
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query,
		product.ID,
		product.Name,
		product.Description,
		product.Slug,
		nullable(product.CoverURL),
		string(product.CallToAction),
		nullable(product.Summary),
		nullable(product.ContentURL),
		product.Price.String(),
		product.Active,
		product.UpdatedAt,
	)
	if err != nil {
		if _, ok := isUniqueViolation(err); ok {
			return ErrSlugExists
		}
		return fmt.Errorf("failed to update product: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrProductNotFound
	}

	return nil
}

// DeleteProduct removes a product. Library entries and open claims cascade.
func (r *Repository) DeleteProduct(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrProductNotFound
	}

	return nil
}

// ListActiveProducts returns the newest active products.
func (r *Repository) ListActiveProducts(ctx context.Context, limit int) ([]*model.Product, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE active ORDER BY created_at DESC, id DESC LIMIT $1`
	return r.queryProducts(ctx, query, limit)
}

// ListProductsByOwner returns all of a creator's products, newest first.
func (r *Repository) ListProductsByOwner(ctx context.Context, ownerID string) ([]*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`
	return r.queryProducts(ctx, query, ownerID)
}

func (r *Repository) queryProducts(ctx context.Context, query string, args ...any) ([]*model.Product, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := make([]*model.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// scanProduct accepts pgx.Row; pgx.Rows satisfies it too.
func scanProduct(row pgx.Row) (*model.Product, error) {
	var (
		product    model.Product
		coverURL   *string
		summary    *string
		contentURL *string
		cta        string
		price      string
	)

	err := row.Scan(
		&product.ID,
		&product.OwnerID,
		&product.Name,
		&product.Description,
		&product.Slug,
		&coverURL,
		&cta,
		&summary,
		&contentURL,
		&price,
		&product.Active,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}

	product.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price %q: %w", price, err)
	}
	product.CoverURL = deref(coverURL)
	product.Summary = deref(summary)
	product.ContentURL = deref(contentURL)
	product.CallToAction = model.CallToAction(cta)
	return &product, nil
}
