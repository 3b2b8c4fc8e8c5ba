package dto

import (
	"time"

	"github.com/shelfkit/shelfkit/internal/model"
)

// RegisterRequest is the body of POST /accounts.
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
}

// AccountResponse is an account in API responses.
type AccountResponse struct {
	ID                    string    `json:"id"`
	Email                 string    `json:"email"`
	Username              string    `json:"username"`
	Name                  string    `json:"name,omitempty"`
	PayoutsConfigured     bool      `json:"payouts_configured"`
	PayeeDetailsSubmitted bool      `json:"payee_details_submitted"`
	CreatedAt             time.Time `json:"created_at"`
}

// RegisterResponse includes the API key. It is never shown again.
type RegisterResponse struct {
	Account      AccountResponse `json:"account"`
	APIKey       string          `json:"api_key"`
	ClaimsLinked int             `json:"claims_linked"`
}

// PayoutLinkResponse is the body of POST /accounts/me/payouts/link.
type PayoutLinkResponse struct {
	URL string `json:"url"`
}

// PayoutStatusResponse is the body of GET /accounts/me/payouts.
type PayoutStatusResponse struct {
	DetailsSubmitted bool `json:"details_submitted"`
}

// ToAccountResponse converts an account.
func ToAccountResponse(a *model.Account) AccountResponse {
	return AccountResponse{
		ID:                    a.ID,
		Email:                 a.Email,
		Username:              a.Username,
		Name:                  a.Name,
		PayoutsConfigured:     a.HasPayee(),
		PayeeDetailsSubmitted: a.PayeeDetailsSubmitted,
		CreatedAt:             a.CreatedAt,
	}
}
