package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/shelfkit/shelfkit/internal/auth"
	"github.com/shelfkit/shelfkit/internal/metrics"
	"github.com/shelfkit/shelfkit/internal/model"
	"github.com/shelfkit/shelfkit/internal/payments"
	"github.com/shelfkit/shelfkit/internal/repository"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)

// PayeeProvider manages connected payout accounts at the processor.
type PayeeProvider interface {
	CreateAccount(ctx context.Context, accountType, email string) (*payments.Account, error)
	GetAccount(ctx context.Context, id string) (*payments.Account, error)
	CreateAccountLink(ctx context.Context, params payments.AccountLinkParams) (*payments.AccountLink, error)
}

// AccountService handles registration and payout onboarding.
type AccountService struct {
	store   repository.Store
	payees  PayeeProvider
	logger  *slog.Logger
	metrics metrics.Recorder
	baseURL string
	keyEnv  string
	now     func() time.Time
}

// NewAccountService creates an AccountService. keyEnv selects the API key
// environment tag (auth.EnvLive or auth.EnvTest).
func NewAccountService(store repository.Store, payees PayeeProvider, baseURL, keyEnv string, logger *slog.Logger, recorder metrics.Recorder) *AccountService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &AccountService{
		store:   store,
		payees:  payees,
		logger:  logger.With("component", "account"),
		metrics: recorder,
		baseURL: baseURL,
		keyEnv:  keyEnv,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RegisterInput contains the fields for a new account.
type RegisterInput struct {
	Email    string
	Username string
	Name     string
}

// Registration is the result of Register. APIKey is only ever returned here.
type Registration struct {
	Account      *model.Account
	APIKey       string
	ClaimsLinked int
}

// Register creates the account, its library and first API key, and grants
// every open claim for the email, all in one transaction.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*Registration, error) {
	email := model.NormalizeEmail(in.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, ErrInvalidEmail
	}
	username := strings.TrimSpace(in.Username)
	if !usernameRegex.MatchString(username) {
		return nil, ErrInvalidUsername
	}

	key, err := auth.GenerateAPIKey(s.keyEnv)
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}

	now := s.now()
	account := &model.Account{
		ID:        generateULID(),
		Email:     email,
		Username:  username,
		Name:      strings.TrimSpace(in.Name),
		CreatedAt: now,
		UpdatedAt: now,
	}

	var linked int
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		if err := tx.CreateAccount(ctx, account); err != nil {
			return err
		}
		if err := tx.CreateLibrary(ctx, account.ID); err != nil {
			return fmt.Errorf("create library: %w", err)
		}
		if err := tx.CreateAPIKey(ctx, &model.APIKey{
			ID:        generateULID(),
			AccountID: account.ID,
			KeyHash:   key.Hash,
			KeyPrefix: key.Prefix,
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("create api key: %w", err)
		}

		n, err := s.LinkPendingClaims(ctx, tx, account)
		linked = n
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return nil, ErrEmailExists
		case errors.Is(err, repository.ErrUsernameExists):
			return nil, ErrUsernameExists
		}
		return nil, fmt.Errorf("register account: %w", err)
	}

	s.logger.Info("account_registered", "account_id", account.ID, "claims_linked", linked)

	if updated, err := s.EnsurePayee(ctx, account); err != nil {
		s.logger.Error("payee_create_failed", "account_id", account.ID, "error", err)
	} else {
		account = updated
	}

	return &Registration{Account: account, APIKey: key.Plaintext, ClaimsLinked: linked}, nil
}

// LinkPendingClaims grants every unconsumed claim for the account's email and
// marks each consumed. Call it inside the registration transaction.
func (s *AccountService) LinkPendingClaims(ctx context.Context, tx repository.Store, account *model.Account) (int, error) {
	claims, err := tx.ListOpenClaimsByEmail(ctx, account.Email)
	if err != nil {
		return 0, fmt.Errorf("list claims: %w", err)
	}

	now := s.now()
	for _, claim := range claims {
		if _, err := tx.AddToLibrary(ctx, account.ID, claim.ProductID); err != nil {
			return 0, fmt.Errorf("grant claim %s: %w", claim.ID, err)
		}
		if err := tx.ConsumeClaim(ctx, claim.ID, account.ID, now); err != nil {
			return 0, fmt.Errorf("consume claim %s: %w", claim.ID, err)
		}
	}

	if len(claims) > 0 {
		s.metrics.AddClaimsLinked(len(claims))
		s.logger.Info("claims_linked", "account_id", account.ID, "count", len(claims))
	}
	return len(claims), nil
}

// GetAccount returns the account by id.
func (s *AccountService) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	account, err := s.store.GetAccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

// EnsurePayee creates the processor payout account when the account has none.
func (s *AccountService) EnsurePayee(ctx context.Context, account *model.Account) (*model.Account, error) {
	if account.HasPayee() {
		return account, nil
	}
	if s.payees == nil {
		return nil, ErrPayeeUnavailable
	}

	acct, err := s.payees.CreateAccount(ctx, payments.AccountTypeExpress, account.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayeeUnavailable, err)
	}

	set, err := s.store.SetAccountPayeeID(ctx, account.ID, acct.ID)
	if err != nil {
		return nil, fmt.Errorf("store payee id: %w", err)
	}
	if !set {
		// Another request won; use what is stored.
		return s.GetAccount(ctx, account.ID)
	}

	updated := *account
	updated.PayeeID = acct.ID
	s.logger.Info("payee_created", "account_id", account.ID, "payee_id", acct.ID)
	return &updated, nil
}

// PayoutLink returns a one-time onboarding URL, creating the payee first
// when registration could not.
func (s *AccountService) PayoutLink(ctx context.Context, accountID string) (string, error) {
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return "", err
	}
	account, err = s.EnsurePayee(ctx, account)
	if err != nil {
		return "", err
	}

	link, err := s.payees.CreateAccountLink(ctx, payments.AccountLinkParams{
		Account:    account.PayeeID,
		RefreshURL: joinURL(s.baseURL, "/accounts/me/payouts/link"),
		ReturnURL:  joinURL(s.baseURL, "/accounts/me/payouts"),
		Type:       payments.AccountLinkOnboarding,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPayeeUnavailable, err)
	}
	return link.URL, nil
}

// PayoutStatus reports whether onboarding details were submitted, refreshing
// the stored flag from the processor.
func (s *AccountService) PayoutStatus(ctx context.Context, accountID string) (bool, error) {
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return false, err
	}
	if !account.HasPayee() {
		return false, nil
	}
	if s.payees == nil {
		return account.PayeeDetailsSubmitted, nil
	}

	acct, err := s.payees.GetAccount(ctx, account.PayeeID)
	if err != nil {
		s.logger.Warn("payee_fetch_failed", "account_id", accountID, "error", err)
		return account.PayeeDetailsSubmitted, nil
	}

	if acct.DetailsSubmitted != account.PayeeDetailsSubmitted {
		if _, err := s.store.SetPayeeDetailsSubmitted(ctx, account.PayeeID, acct.DetailsSubmitted); err != nil {
			return false, fmt.Errorf("update payee status: %w", err)
		}
	}
	return acct.DetailsSubmitted, nil
}
