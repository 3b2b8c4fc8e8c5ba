package model

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// CallToAction is the label shown on a product's buy button.
type CallToAction string

const (
	CallToActionWant CallToAction = "I want this"
	CallToActionBuy  CallToAction = "Buy this"
	CallToActionPay  CallToAction = "Pay"
)

// ValidCallsToAction lists the accepted button labels.
var ValidCallsToAction = []CallToAction{CallToActionWant, CallToActionBuy, CallToActionPay}

// IsValid reports whether c is one of the accepted labels.
func (c CallToAction) IsValid() bool {
	return slices.Contains(ValidCallsToAction, c)
}

// DefaultPrice is applied when a product is created without a price.
var DefaultPrice = decimal.NewFromInt(10)

// Product is a sellable digital item owned by one creator account.
type Product struct {
	ID           string          `json:"id"`
	OwnerID      string          `json:"owner_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Slug         string          `json:"slug"`
	CoverURL     string          `json:"cover_url,omitempty"`
	CallToAction CallToAction    `json:"call_to_action"`
	Summary      string          `json:"summary,omitempty"`
	ContentURL   string          `json:"-"`
	Price        decimal.Decimal `json:"price"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// PriceInMinorUnits converts the price to cents, truncating sub-cent digits.
func (p *Product) PriceInMinorUnits() int64 {
	return p.Price.Shift(2).IntPart()
}

// IsOwnedBy reports whether the account created the product.
func (p *Product) IsOwnedBy(accountID string) bool {
	return accountID != "" && p.OwnerID == accountID
}
