package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shelfkit/shelfkit/internal/model"
)

// CreateProductRequest is the body of POST /products.
type CreateProductRequest struct {
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Slug         string           `json:"slug,omitempty"`
	CoverURL     string           `json:"cover_url,omitempty"`
	CallToAction string           `json:"call_to_action,omitempty"`
	Summary      string           `json:"summary,omitempty"`
	ContentURL   string           `json:"content_url,omitempty"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	Active       *bool            `json:"active,omitempty"`
}

// UpdateProductRequest is the body of PATCH /p/{slug}.
type UpdateProductRequest struct {
	Name         *string          `json:"name,omitempty"`
	Description  *string          `json:"description,omitempty"`
	CoverURL     *string          `json:"cover_url,omitempty"`
	CallToAction *string          `json:"call_to_action,omitempty"`
	Summary      *string          `json:"summary,omitempty"`
	ContentURL   *string          `json:"content_url,omitempty"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	Active       *bool            `json:"active,omitempty"`
}

// ProductResponse is a product in API responses. ContentURL is only set for
// callers with access.
type ProductResponse struct {
	ID           string          `json:"id"`
	OwnerID      string          `json:"owner_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Slug         string          `json:"slug"`
	CoverURL     string          `json:"cover_url,omitempty"`
	CallToAction string          `json:"call_to_action"`
	Summary      string          `json:"summary,omitempty"`
	ContentURL   string          `json:"content_url,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ProductDetailResponse is the body of GET /p/{slug}.
type ProductDetailResponse struct {
	ProductResponse
	HasAccess bool `json:"has_access"`
}

// ToProductResponse converts a product. withContent exposes ContentURL.
func ToProductResponse(p *model.Product, withContent bool) ProductResponse {
	resp := ProductResponse{
		ID:           p.ID,
		OwnerID:      p.OwnerID,
		Name:         p.Name,
		Description:  p.Description,
		Slug:         p.Slug,
		CoverURL:     p.CoverURL,
		CallToAction: string(p.CallToAction),
		Summary:      p.Summary,
		Price:        p.Price,
		Active:       p.Active,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if withContent {
		resp.ContentURL = p.ContentURL
	}
	return resp
}

// ToProductList converts products for list responses.
func ToProductList(products []*model.Product, withContent bool) *ListResponse[ProductResponse] {
	data := make([]ProductResponse, len(products))
	for i, p := range products {
		data[i] = ToProductResponse(p, withContent)
	}
	return &ListResponse[ProductResponse]{Data: data}
}

// CheckoutResponse is the body of POST /p/{slug}/checkout.
type CheckoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}
