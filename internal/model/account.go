// Package model defines domain entities for the application.
package model

import (
	"strings"
	"time"
)

// Account is a user identity. It may be a buyer, a creator, or both.
type Account struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`

	// CustomerID is the payment processor's customer identifier.
	// Set once, on the first purchase reconciled by email.
	CustomerID string `json:"-"`

	// PayeeID is the payment processor's connected account used for payouts.
	// Set once, right after registration.
	PayeeID               string `json:"-"`
	PayeeDetailsSubmitted bool   `json:"payee_details_submitted"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCustomerID reports whether the account is linked to a processor customer.
func (a *Account) HasCustomerID() bool {
	return a.CustomerID != ""
}

// HasPayee reports whether a payout account has been created.
func (a *Account) HasPayee() bool {
	return a.PayeeID != ""
}

// NormalizeEmail returns the canonical form used for storage and matching.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
