package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shelfkit/shelfkit/internal/model"
)

// Common errors for repository operations.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailExists     = errors.New("email already exists")
	ErrUsernameExists  = errors.New("username already exists")
	ErrCustomerIDTaken = errors.New("customer id already linked to another account")
	ErrProductNotFound = errors.New("product not found")
	ErrSlugExists      = errors.New("slug already exists")
	ErrLibraryNotFound = errors.New("library not found")
	ErrClaimNotFound   = errors.New("pending claim not found")
	ErrAPIKeyNotFound  = errors.New("API key not found")
)

// AccountStore persists accounts.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	GetAccountByCustomerID(ctx context.Context, customerID string) (*model.Account, error)
	GetAccountByPayeeID(ctx context.Context, payeeID string) (*model.Account, error)
	// SetAccountCustomerID links a processor customer. It only writes when the
	// account has no customer id yet and reports whether it wrote.
	SetAccountCustomerID(ctx context.Context, accountID, customerID string) (bool, error)
	// SetAccountPayeeID stores the payout account. Same set-once rule.
	SetAccountPayeeID(ctx context.Context, accountID, payeeID string) (bool, error)
	SetPayeeDetailsSubmitted(ctx context.Context, payeeID string, submitted bool) (bool, error)
}

// ProductStore persists catalog entries.
type ProductStore interface {
	CreateProduct(ctx context.Context, product *model.Product) error
	GetProductByID(ctx context.Context, id string) (*model.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*model.Product, error)
	UpdateProduct(ctx context.Context, product *model.Product) error
	DeleteProduct(ctx context.Context, id string) error
	ListActiveProducts(ctx context.Context, limit int) ([]*model.Product, error)
	ListProductsByOwner(ctx context.Context, ownerID string) ([]*model.Product, error)
}

// LibraryStore persists per-account product sets.
type LibraryStore interface {
	CreateLibrary(ctx context.Context, accountID string) error
	// AddToLibrary has set semantics: adding a product already present is a
	// no-op and reports added=false.
	AddToLibrary(ctx context.Context, accountID, productID string) (bool, error)
	LibraryHasProduct(ctx context.Context, accountID, productID string) (bool, error)
	ListLibraryProducts(ctx context.Context, accountID string) ([]*model.Product, error)
}

// ClaimStore persists purchases awaiting an account.
type ClaimStore interface {
	CreatePendingClaim(ctx context.Context, claim *model.PendingClaim) error
	ListOpenClaimsByEmail(ctx context.Context, email string) ([]*model.PendingClaim, error)
	ConsumeClaim(ctx context.Context, claimID, accountID string, at time.Time) error
}

// APIKeyStore persists account credentials.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
}

// Store is the full persistence surface used by the services.
type Store interface {
	AccountStore
	ProductStore
	LibraryStore
	ClaimStore
	APIKeyStore

	// InTx runs fn atomically against a transaction-bound Store.
	InTx(ctx context.Context, fn func(Store) error) error
}
