package payments

import (
	"context"

	"github.com/stripe/stripe-go/v76"
)

// Account types accepted by CreateAccount.
const (
	AccountTypeExpress  = string(stripe.AccountTypeExpress)
	AccountTypeStandard = string(stripe.AccountTypeStandard)
)

// AccountLinkOnboarding is the only link type used here.
const AccountLinkOnboarding = string(stripe.AccountLinkTypeAccountOnboarding)

// Account is a connected payout account.
type Account struct {
	ID               string
	Type             string
	Email            string
	DetailsSubmitted bool
	ChargesEnabled   bool
	PayoutsEnabled   bool
}

func accountFromSDK(a *stripe.Account) *Account {
	return &Account{
		ID:               a.ID,
		Type:             string(a.Type),
		Email:            a.Email,
		DetailsSubmitted: a.DetailsSubmitted,
		ChargesEnabled:   a.ChargesEnabled,
		PayoutsEnabled:   a.PayoutsEnabled,
	}
}

// AccountLink is a one-time onboarding URL.
type AccountLink struct {
	URL       string
	ExpiresAt int64
}

// AccountLinkParams configures an onboarding link.
type AccountLinkParams struct {
	Account    string
	RefreshURL string
	ReturnURL  string
	Type       string
}

// CreateAccount creates a connected account of the given type.
func (c *Client) CreateAccount(ctx context.Context, accountType, email string) (*Account, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	params := &stripe.AccountParams{Type: stripe.String(accountType)}
	params.Context = ctx
	if email != "" {
		params.Email = stripe.String(email)
	}

	acct, err := c.api.Accounts.New(params)
	if err != nil {
		return nil, wrapError("create account", err)
	}
	return accountFromSDK(acct), nil
}

// GetAccount retrieves a connected account.
func (c *Client) GetAccount(ctx context.Context, id string) (*Account, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	params := &stripe.AccountParams{}
	params.Context = ctx

	acct, err := c.api.Accounts.GetByID(id, params)
	if err != nil {
		return nil, wrapError("get account", err)
	}
	return accountFromSDK(acct), nil
}

// CreateAccountLink creates an onboarding link for a connected account.
func (c *Client) CreateAccountLink(ctx context.Context, params AccountLinkParams) (*AccountLink, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if params.Type == "" {
		params.Type = AccountLinkOnboarding
	}

	sdkParams := &stripe.AccountLinkParams{
		Account:    stripe.String(params.Account),
		RefreshURL: stripe.String(params.RefreshURL),
		ReturnURL:  stripe.String(params.ReturnURL),
		Type:       stripe.String(params.Type),
	}
	sdkParams.Context = ctx

	link, err := c.api.AccountLinks.New(sdkParams)
	if err != nil {
		return nil, wrapError("create account link", err)
	}
	return &AccountLink{URL: link.URL, ExpiresAt: link.ExpiresAt}, nil
}
